// Package qtype 定义题型契约与内置题型
//
// 每种题型负责三件事：校验答案值是否符合题目定义、提交前的值
// 规整、以及展示用的格式化。题型按名称注册，题目通过 Type 字段
// 引用注册表中的键。
package qtype

import (
	"fmt"
	"sort"
	"sync"

	"wenjuan/errors"
	"wenjuan/questionnaire"
	"wenjuan/response"
)

// IQuestionType 题型契约
type IQuestionType interface {
	// Name 返回题型标签（注册表键）
	Name() string

	// Validate 校验答案值是否符合题目定义
	Validate(question questionnaire.Question, value response.Value) error

	// Transform 提交前的值规整（去空白、归一化等）
	Transform(question questionnaire.Question, value response.Value) (response.Value, error)

	// Format 格式化为展示文本
	Format(value response.Value) string
}

// Registry 题型注册表
type Registry struct {
	mutex sync.RWMutex
	types map[string]IQuestionType
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]IQuestionType)}
}

// NewDefaultRegistry 创建含全部内置题型的注册表
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []IQuestionType{
		TextType{}, TextareaType{}, NumberType{}, BooleanType{},
		RadioType{}, SelectType{}, CheckboxType{}, DateType{},
	} {
		// 内置题型名称互不冲突
		_ = r.Register(t)
	}
	return r
}

// Register 注册题型，名称重复返回错误
func (r *Registry) Register(t IQuestionType) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	name := t.Name()
	if name == "" {
		return errors.NewInvalidInputError("题型名称不能为空")
	}
	if _, exists := r.types[name]; exists {
		return errors.NewInvalidInputError("题型已注册: " + name)
	}
	r.types[name] = t
	return nil
}

// Resolve 按名称查找题型
func (r *Registry) Resolve(name string) (IQuestionType, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, errors.NewInvalidInputError("未知题型: " + name)
	}
	return t, nil
}

// IsRegistered 判断题型是否已注册
func (r *Registry) IsRegistered(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Names 返回已注册题型名称（字典序）
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// settingInt 从题目设置读取整数，缺失或类型不符返回默认值。
// JSON 解码后数值为 float64，两种表示都接受。
func settingInt(q questionnaire.Question, key string, fallback int) int {
	raw, ok := q.Settings[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func settingFloat(q questionnaire.Question, key string) (float64, bool) {
	raw, ok := q.Settings[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func kindError(q questionnaire.Question, expected string, got response.ValueKind) error {
	return errors.NewValidationError(
		fmt.Sprintf("题目 %s 需要%s答案（收到 %s）", q.ID, expected, got))
}
