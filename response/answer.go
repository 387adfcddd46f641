package response

import (
	"github.com/google/uuid"

	"wenjuan/errors"
)

// Answer 单题答案
type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      Value     `json:"value"`
}

// NewAnswer 创建答案并校验
func NewAnswer(id, questionID uuid.UUID, value Value) (Answer, error) {
	a := Answer{ID: id, QuestionID: questionID, Value: value}
	if err := a.Validate(); err != nil {
		return Answer{}, err
	}
	return a, nil
}

// Validate 校验答案
func (a Answer) Validate() error {
	if a.ID == uuid.Nil {
		return errors.NewValidationError("答案ID不能为空")
	}
	if a.QuestionID == uuid.Nil {
		return errors.NewValidationError("答案必须关联题目ID")
	}
	if a.Value.Kind() == "" {
		return errors.NewValidationError("答案值不能为空")
	}
	return nil
}
