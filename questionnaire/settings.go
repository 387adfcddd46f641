package questionnaire

import (
	"strings"
	"time"

	"wenjuan/errors"
	"wenjuan/validation"
)

// Status 问卷生命周期状态
//
// 线性状态机：Draft -> Published -> Closed，无回退；Closed 为终态。
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

func (s Status) String() string { return string(s) }

// Settings 问卷设置
type Settings struct {
	// AllowAnonymous 是否允许匿名提交
	AllowAnonymous bool `json:"allow_anonymous"`

	// AllowMultipleSubmissions 是否允许同一提交者多次提交
	AllowMultipleSubmissions bool `json:"allow_multiple_submissions"`

	// GuardStrategy 防重策略标识（guard 包注册表的键）
	GuardStrategy string `json:"guard_strategy,omitempty"`

	// SubmissionLimit 提交总量上限，0 表示不限
	SubmissionLimit int `json:"submission_limit,omitempty"`

	// NotifyEmail 收到提交后的通知邮箱，空表示不通知
	NotifyEmail string `json:"notify_email,omitempty"`
}

// Validate 校验设置
func (s Settings) Validate() error {
	if s.SubmissionLimit < 0 {
		return errors.NewValidationError("提交上限不能为负数")
	}
	if s.NotifyEmail != "" {
		if err := validation.ValidateEmail(s.NotifyEmail); err != nil {
			return err
		}
	}
	return nil
}

// DateRange 问卷开放时间窗口，两端均可选
type DateRange struct {
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

// Validate 校验时间窗口（start <= end）
func (d DateRange) Validate() error {
	if d.StartsAt != nil && d.EndsAt != nil && d.StartsAt.After(*d.EndsAt) {
		return errors.NewValidationError("开始时间不能晚于结束时间")
	}
	return nil
}

// Contains 判断时刻是否落在开放窗口内（未设置的端点不限制）
func (d DateRange) Contains(t time.Time) bool {
	if d.StartsAt != nil && t.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && t.After(*d.EndsAt) {
		return false
	}
	return true
}

// normalizeSlug 清理 slug（小写、去首尾空白）
func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
