// Package pipeline 实现答卷提交管道
//
// 提交被建模为一串有序阶段：开放检查、答案校验、防重预检、
// 事实落库、应用事件广播。每个阶段拿到提交上下文与 next 回调，
// 可以在 next 前后各做一段工作（防重阶段即利用这一点实现
// "提交成功后才登记标识"）。任何阶段返回错误即短路，其后的
// 阶段不再执行。
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"wenjuan/questionnaire"
	"wenjuan/response"
)

// Submission 提交上下文，随管道流经各阶段
type Submission struct {
	// 输入
	QuestionnaireID uuid.UUID
	Respondent      response.Respondent
	SessionID       string
	IPAddress       string
	UserAgent       string
	Answers         []response.Answer
	Metadata        map[string]any

	// Questionnaire 由开放检查阶段加载，供后续阶段使用
	Questionnaire *questionnaire.Questionnaire

	// Response 由落库阶段填充
	Response *response.Response
}

// Next 阶段链推进回调
type Next func(ctx context.Context) error

// IStage 管道阶段契约
type IStage interface {
	// Name 阶段名称（日志用）
	Name() string

	// Execute 执行阶段逻辑；不调用 next 即短路整条管道
	Execute(ctx context.Context, sub *Submission, next Next) error
}

// Pipeline 答卷提交管道
type Pipeline struct {
	stages []IStage
}

// New 按给定顺序组装管道
func New(stages ...IStage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Submit 执行一次提交，成功时返回已持久化的答卷聚合
func (p *Pipeline) Submit(ctx context.Context, sub *Submission) (*response.Response, error) {
	if err := p.run(ctx, sub, 0); err != nil {
		return nil, err
	}
	return sub.Response, nil
}

func (p *Pipeline) run(ctx context.Context, sub *Submission, index int) error {
	if index >= len(p.stages) {
		return nil
	}
	return p.stages[index].Execute(ctx, sub, func(ctx context.Context) error {
		return p.run(ctx, sub, index+1)
	})
}

// StageNames 返回阶段名称序列
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}
