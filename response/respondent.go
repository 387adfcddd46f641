package response

import (
	"strings"

	"wenjuan/errors"
)

// Respondent 提交者身份
//
// 匿名提交者 Type 与 ID 均为空；实名提交者二者均非空。
type Respondent struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Anonymous 创建匿名提交者
func Anonymous() Respondent { return Respondent{} }

// Identified 创建实名提交者
func Identified(respondentType, id string) (Respondent, error) {
	respondentType = strings.TrimSpace(respondentType)
	id = strings.TrimSpace(id)
	if respondentType == "" || id == "" {
		return Respondent{}, errors.NewValidationError("实名提交者的类型与ID不能为空")
	}
	return Respondent{Type: respondentType, ID: id}, nil
}

// IsAnonymous 是否匿名
func (r Respondent) IsAnonymous() bool { return r.Type == "" && r.ID == "" }

// Validate 校验身份（要么全空，要么全非空）
func (r Respondent) Validate() error {
	if (r.Type == "") != (r.ID == "") {
		return errors.NewValidationError("提交者类型与ID必须同时提供或同时省略")
	}
	return nil
}

// Key 返回防重用的稳定标识键
func (r Respondent) Key() string {
	if r.IsAnonymous() {
		return "anonymous"
	}
	return r.Type + ":" + r.ID
}
