package response

import (
	"encoding/json"
	"fmt"

	"wenjuan/errors"
)

// ValueKind 答案值类型标签
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindList   ValueKind = "list"
	ValueKindNumber ValueKind = "number"
	ValueKindBool   ValueKind = "bool"
)

// Value 答案值联合类型
//
// 保持提交时的原始形态（string | []string | number | bool），
// JSON 往返后形态不变：序列化为底层值本身而非包装对象。
type Value struct {
	kind ValueKind
	str  string
	list []string
	num  float64
	b    bool
}

// StringValue 创建字符串值
func StringValue(s string) Value { return Value{kind: ValueKindString, str: s} }

// ListValue 创建列表值（多选题）
func ListValue(items []string) Value {
	copied := make([]string, len(items))
	copy(copied, items)
	return Value{kind: ValueKindList, list: copied}
}

// NumberValue 创建数值
func NumberValue(n float64) Value { return Value{kind: ValueKindNumber, num: n} }

// BoolValue 创建布尔值
func BoolValue(b bool) Value { return Value{kind: ValueKindBool, b: b} }

// FromRaw 将任意原始提交值转换为 Value
//
// 支持 JSON 解码产物：string、float64、bool、[]any（元素须为字符串）。
func FromRaw(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return StringValue(v), nil
	case float64:
		return NumberValue(v), nil
	case int:
		return NumberValue(float64(v)), nil
	case int64:
		return NumberValue(float64(v)), nil
	case bool:
		return BoolValue(v), nil
	case []string:
		return ListValue(v), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return Value{}, errors.NewValidationError(
					fmt.Sprintf("列表答案元素必须为字符串（收到 %T）", item))
			}
			items = append(items, s)
		}
		return ListValue(items), nil
	default:
		return Value{}, errors.NewValidationError(
			fmt.Sprintf("不支持的答案值类型 %T", raw))
	}
}

// Kind 返回值类型标签
func (v Value) Kind() ValueKind { return v.kind }

// AsString 返回字符串值
func (v Value) AsString() (string, bool) { return v.str, v.kind == ValueKindString }

// AsList 返回列表值副本
func (v Value) AsList() ([]string, bool) {
	if v.kind != ValueKindList {
		return nil, false
	}
	copied := make([]string, len(v.list))
	copy(copied, v.list)
	return copied, true
}

// AsNumber 返回数值
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == ValueKindNumber }

// AsBool 返回布尔值
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueKindBool }

// Raw 返回底层原始值
func (v Value) Raw() any {
	switch v.kind {
	case ValueKindString:
		return v.str
	case ValueKindList:
		copied := make([]string, len(v.list))
		copy(copied, v.list)
		return copied
	case ValueKindNumber:
		return v.num
	case ValueKindBool:
		return v.b
	default:
		return nil
	}
}

// MarshalJSON 序列化为底层值本身，保持提交形态
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

// UnmarshalJSON 按 JSON 形态还原联合类型
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromRaw(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
