package qtype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"wenjuan/errors"
	"wenjuan/questionnaire"
	"wenjuan/response"
)

// ValidationResult 整卷校验结果，错误按题目ID归集
type ValidationResult struct {
	Errors map[string]string
}

// Valid 是否通过校验
func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Error 汇总为单个错误（按题目ID字典序稳定输出），通过时返回 nil
func (r ValidationResult) Error() error {
	if r.Valid() {
		return nil
	}
	keys := make([]string, 0, len(r.Errors))
	for k := range r.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	err := errors.NewValidationError("答卷校验失败")
	for _, k := range keys {
		err = err.WithDetail(k, r.Errors[k])
	}
	return err
}

// Validator 按题型校验整卷答案
type Validator struct {
	registry *Registry
}

// NewValidator 创建校验器
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// ValidateAnswers 校验答案集合与问卷题目定义的一致性
//
// 逐题归集错误而非快速失败，便于一次性反馈全部问题：
//   - 答案必须对应存在的题目
//   - 必答题必须有答案
//   - 答案值须通过对应题型的校验
func (v *Validator) ValidateAnswers(q *questionnaire.Questionnaire, answers []response.Answer) ValidationResult {
	result := ValidationResult{Errors: make(map[string]string)}

	answered := make(map[uuid.UUID]bool, len(answers))
	for _, a := range answers {
		question, ok := q.Question(a.QuestionID)
		if !ok {
			result.Errors[a.QuestionID.String()] = "题目不存在"
			continue
		}
		answered[a.QuestionID] = true

		qt, err := v.registry.Resolve(question.Type)
		if err != nil {
			result.Errors[a.QuestionID.String()] = "未知题型: " + question.Type
			continue
		}
		if err := qt.Validate(question, a.Value); err != nil {
			result.Errors[a.QuestionID.String()] = err.Error()
		}
	}

	for _, question := range q.Questions() {
		if question.Required && !answered[question.ID] {
			result.Errors[question.ID.String()] = "必答题未作答"
		}
	}
	return result
}

// TransformAnswers 按题型规整答案值，返回新切片
func (v *Validator) TransformAnswers(q *questionnaire.Questionnaire, answers []response.Answer) ([]response.Answer, error) {
	transformed := make([]response.Answer, 0, len(answers))
	for _, a := range answers {
		question, ok := q.Question(a.QuestionID)
		if !ok {
			return nil, errors.NewValidationError("题目不存在: " + a.QuestionID.String())
		}
		qt, err := v.registry.Resolve(question.Type)
		if err != nil {
			return nil, err
		}
		value, err := qt.Transform(question, a.Value)
		if err != nil {
			return nil, fmt.Errorf("transform answer for question %s: %w", a.QuestionID, err)
		}
		a.Value = value
		transformed = append(transformed, a)
	}
	return transformed, nil
}

// FormatAnswer 格式化答案为展示文本，未知题型时退回原始值表示
func (v *Validator) FormatAnswer(question questionnaire.Question, value response.Value) string {
	qt, err := v.registry.Resolve(question.Type)
	if err != nil {
		return strings.TrimSpace(fmt.Sprintf("%v", value.Raw()))
	}
	return qt.Format(value)
}
