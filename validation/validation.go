// Package validation 提供通用校验辅助函数
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"wenjuan/errors"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateRequired 校验必填字段非空白
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(fmt.Sprintf("%s不能为空", fieldName))
	}
	return nil
}

// ValidateStringLength 校验字符串长度（按字符数而非字节数）
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if length < min {
		return errors.NewValidationError(
			fmt.Sprintf("%s长度不能少于%d个字符（当前%d）", fieldName, min, length))
	}
	if max > 0 && length > max {
		return errors.NewValidationError(
			fmt.Sprintf("%s长度不能超过%d个字符（当前%d）", fieldName, max, length))
	}
	return nil
}

// ValidateIntRange 校验整数范围（闭区间）
func ValidateIntRange(value int, fieldName string, min, max int) error {
	if value < min || value > max {
		return errors.NewValidationError(
			fmt.Sprintf("%s必须在%d到%d之间（当前%d）", fieldName, min, max, value))
	}
	return nil
}

// ValidateEmail 校验邮箱格式
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return errors.NewValidationError("邮箱格式不正确: " + email)
	}
	return nil
}

// ValidateIP 校验 IP 地址格式（IPv4 或 IPv6）
func ValidateIP(ip string) error {
	if net.ParseIP(ip) == nil {
		return errors.NewValidationError("IP地址格式不正确: " + ip)
	}
	return nil
}

// ValidateOneOf 校验取值在允许集合内
func ValidateOneOf(value, fieldName string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.NewValidationError(
		fmt.Sprintf("%s取值无效: %s（允许: %s）", fieldName, value, strings.Join(allowed, ", ")))
}
