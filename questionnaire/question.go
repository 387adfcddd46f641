package questionnaire

import (
	"strings"

	"github.com/google/uuid"

	"wenjuan/errors"
	"wenjuan/validation"
)

// MaxQuestionTextLength 题干最大长度
const MaxQuestionTextLength = 1000

// Question 题目实体（由问卷聚合持有，不独立持久化）
type Question struct {
	ID uuid.UUID `json:"id"`

	// Text 题干，去首尾空白后 1..1000 字符
	Text string `json:"text"`

	// Type 题型标签（qtype 包注册表的键）
	Type string `json:"type"`

	// Options 选项列表，保序；仅选择类题型使用
	Options []string `json:"options,omitempty"`

	// Required 是否必答
	Required bool `json:"required"`

	// Order 展示顺序
	Order int `json:"order"`

	Description string `json:"description,omitempty"`

	// Settings 题型相关的自由键值设置
	Settings map[string]any `json:"settings,omitempty"`
}

// NewQuestion 创建题目并校验
//
// 选项会去首尾空白；空白选项被拒绝。重复选项由调用方负责。
func NewQuestion(id uuid.UUID, text, questionType string, options []string, required bool, order int) (Question, error) {
	q := Question{
		ID:       id,
		Text:     strings.TrimSpace(text),
		Type:     questionType,
		Required: required,
		Order:    order,
	}
	if len(options) > 0 {
		q.Options = make([]string, 0, len(options))
		for _, opt := range options {
			trimmed := strings.TrimSpace(opt)
			if trimmed == "" {
				return Question{}, errors.NewValidationError("选项不能为空白")
			}
			q.Options = append(q.Options, trimmed)
		}
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate 校验题目
func (q Question) Validate() error {
	if q.ID == uuid.Nil {
		return errors.NewValidationError("题目ID不能为空")
	}
	if err := validation.ValidateStringLength(q.Text, "题干", 1, MaxQuestionTextLength); err != nil {
		return err
	}
	if strings.TrimSpace(q.Type) == "" {
		return errors.NewValidationError("题型不能为空")
	}
	return nil
}

// HasOptions 判断题目是否带选项
func (q Question) HasOptions() bool { return len(q.Options) > 0 }
