package qtype

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wenjuan/errors"
	"wenjuan/questionnaire"
	"wenjuan/response"
)

// 内置题型标签
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeRadio    = "radio"
	TypeSelect   = "select"
	TypeCheckbox = "checkbox"
	TypeDate     = "date"
)

// dateLayout 日期题答案格式
const dateLayout = "2006-01-02"

// TextType 单行文本题
type TextType struct{}

func (TextType) Name() string { return TypeText }

func (TextType) Validate(q questionnaire.Question, v response.Value) error {
	s, ok := v.AsString()
	if !ok {
		return kindError(q, "文本", v.Kind())
	}
	maxLen := settingInt(q, "max_length", 500)
	return validateTextLength(q, s, maxLen)
}

func (TextType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	return trimStringValue(v)
}

func (TextType) Format(v response.Value) string {
	s, _ := v.AsString()
	return s
}

// TextareaType 多行文本题
type TextareaType struct{}

func (TextareaType) Name() string { return TypeTextarea }

func (TextareaType) Validate(q questionnaire.Question, v response.Value) error {
	s, ok := v.AsString()
	if !ok {
		return kindError(q, "文本", v.Kind())
	}
	maxLen := settingInt(q, "max_length", 5000)
	return validateTextLength(q, s, maxLen)
}

func (TextareaType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	return trimStringValue(v)
}

func (TextareaType) Format(v response.Value) string {
	s, _ := v.AsString()
	return s
}

// NumberType 数值题
type NumberType struct{}

func (NumberType) Name() string { return TypeNumber }

func (NumberType) Validate(q questionnaire.Question, v response.Value) error {
	n, ok := v.AsNumber()
	if !ok {
		return kindError(q, "数值", v.Kind())
	}
	if min, has := settingFloat(q, "min"); has && n < min {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 的答案不能小于 %v", q.ID, min))
	}
	if max, has := settingFloat(q, "max"); has && n > max {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 的答案不能大于 %v", q.ID, max))
	}
	return nil
}

func (NumberType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	return v, nil
}

func (NumberType) Format(v response.Value) string {
	n, _ := v.AsNumber()
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// BooleanType 是非题
type BooleanType struct{}

func (BooleanType) Name() string { return TypeBoolean }

func (BooleanType) Validate(q questionnaire.Question, v response.Value) error {
	if _, ok := v.AsBool(); !ok {
		return kindError(q, "布尔", v.Kind())
	}
	return nil
}

func (BooleanType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	return v, nil
}

func (BooleanType) Format(v response.Value) string {
	if b, _ := v.AsBool(); b {
		return "是"
	}
	return "否"
}

// RadioType 单选题（必须命中选项）
type RadioType struct{}

func (RadioType) Name() string { return TypeRadio }

func (RadioType) Validate(q questionnaire.Question, v response.Value) error {
	return validateSingleChoice(q, v)
}

func (RadioType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	return trimStringValue(v)
}

func (RadioType) Format(v response.Value) string {
	s, _ := v.AsString()
	return s
}

// SelectType 下拉单选题，校验语义与单选题一致
type SelectType struct{}

func (SelectType) Name() string { return TypeSelect }

func (SelectType) Validate(q questionnaire.Question, v response.Value) error {
	return validateSingleChoice(q, v)
}

func (SelectType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	return trimStringValue(v)
}

func (SelectType) Format(v response.Value) string {
	s, _ := v.AsString()
	return s
}

// CheckboxType 多选题
type CheckboxType struct{}

func (CheckboxType) Name() string { return TypeCheckbox }

func (CheckboxType) Validate(q questionnaire.Question, v response.Value) error {
	items, ok := v.AsList()
	if !ok {
		return kindError(q, "列表", v.Kind())
	}
	if minSel := settingInt(q, "min_selections", 1); len(items) < minSel {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 至少选择%d项", q.ID, minSel))
	}
	if maxSel := settingInt(q, "max_selections", 0); maxSel > 0 && len(items) > maxSel {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 最多选择%d项", q.ID, maxSel))
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			return errors.NewValidationError(
				fmt.Sprintf("题目 %s 选项重复: %s", q.ID, item))
		}
		seen[item] = true
		if !optionExists(q, item) {
			return errors.NewValidationError(
				fmt.Sprintf("题目 %s 不存在选项: %s", q.ID, item))
		}
	}
	return nil
}

func (CheckboxType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	items, ok := v.AsList()
	if !ok {
		return v, nil
	}
	trimmed := make([]string, 0, len(items))
	for _, item := range items {
		trimmed = append(trimmed, strings.TrimSpace(item))
	}
	return response.ListValue(trimmed), nil
}

func (CheckboxType) Format(v response.Value) string {
	items, _ := v.AsList()
	return strings.Join(items, ", ")
}

// DateType 日期题（YYYY-MM-DD）
type DateType struct{}

func (DateType) Name() string { return TypeDate }

func (DateType) Validate(q questionnaire.Question, v response.Value) error {
	s, ok := v.AsString()
	if !ok {
		return kindError(q, "日期文本", v.Kind())
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 的日期格式应为 %s: %s", q.ID, dateLayout, s))
	}
	return nil
}

func (DateType) Transform(q questionnaire.Question, v response.Value) (response.Value, error) {
	s, ok := v.AsString()
	if !ok {
		return v, nil
	}
	// 归一化为标准格式，兼容带时间部分的输入
	trimmed := strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return response.StringValue(t.Format(dateLayout)), nil
	}
	return response.StringValue(trimmed), nil
}

func (DateType) Format(v response.Value) string {
	s, _ := v.AsString()
	return s
}

func trimStringValue(v response.Value) (response.Value, error) {
	if s, ok := v.AsString(); ok {
		return response.StringValue(strings.TrimSpace(s)), nil
	}
	return v, nil
}

func validateTextLength(q questionnaire.Question, s string, maxLen int) error {
	if maxLen > 0 && len([]rune(s)) > maxLen {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 的答案长度不能超过%d个字符", q.ID, maxLen))
	}
	return nil
}

func validateSingleChoice(q questionnaire.Question, v response.Value) error {
	s, ok := v.AsString()
	if !ok {
		return kindError(q, "文本", v.Kind())
	}
	if !optionExists(q, s) {
		return errors.NewValidationError(
			fmt.Sprintf("题目 %s 不存在选项: %s", q.ID, s))
	}
	return nil
}

func optionExists(q questionnaire.Question, option string) bool {
	for _, opt := range q.Options {
		if opt == option {
			return true
		}
	}
	return false
}
