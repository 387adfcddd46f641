package pipeline

import (
	"context"

	"wenjuan/qtype"
)

// ValidateSubmission 答案校验阶段
//
// 先按题型规整答案值，再整卷校验；校验错误按题目归集后一次性
// 返回。依赖前一阶段已加载问卷聚合。
type ValidateSubmission struct {
	validator *qtype.Validator
}

// NewValidateSubmission 创建答案校验阶段
func NewValidateSubmission(validator *qtype.Validator) *ValidateSubmission {
	return &ValidateSubmission{validator: validator}
}

func (s *ValidateSubmission) Name() string { return "validate_submission" }

func (s *ValidateSubmission) Execute(ctx context.Context, sub *Submission, next Next) error {
	transformed, err := s.validator.TransformAnswers(sub.Questionnaire, sub.Answers)
	if err != nil {
		return err
	}
	sub.Answers = transformed

	if result := s.validator.ValidateAnswers(sub.Questionnaire, sub.Answers); !result.Valid() {
		return result.Error()
	}
	return next(ctx)
}

var _ IStage = (*ValidateSubmission)(nil)
