// Package guard 实现防重复提交策略
//
// 策略只回答三个问题：这次提交的主体标识是什么、现在能否提交、
// 提交成功后如何登记。标识登记交给 IMarkStore，存储层唯一约束
// 是最终防线，预检查只用于尽早拒绝。
package guard

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"wenjuan/errors"
	"wenjuan/response"
)

// 内置策略标签
const (
	StrategyAllowMultiple = "allow_multiple"
	StrategyOnePerUser    = "one_per_user"
	StrategyOnePerSession = "one_per_session"
	StrategyOnePerIP      = "one_per_ip"
)

// Submission 防重检查所需的提交上下文
type Submission struct {
	QuestionnaireID uuid.UUID
	Respondent      response.Respondent
	SessionID       string
	IPAddress       string
}

// IDuplicateGuard 防重策略契约
type IDuplicateGuard interface {
	// Name 返回策略标签
	Name() string

	// Identifier 提取提交主体标识；无法提取时返回 false
	Identifier(sub Submission) (string, bool)

	// CanSubmit 预检查能否提交
	CanSubmit(ctx context.Context, sub Submission) (bool, error)

	// RejectionReason 拒绝时的提示文案
	RejectionReason() string

	// MarkSubmitted 提交落库后登记标识；重复登记返回重复提交错误
	MarkSubmitted(ctx context.Context, sub Submission) error
}

// IMarkStore 标识登记存储
//
// Mark 必须原子：同一 (问卷, 策略, 主体) 只有一次登记成功。
type IMarkStore interface {
	Mark(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error)
	Exists(ctx context.Context, questionnaireID uuid.UUID, strategy, subjectKey string) (bool, error)
}

// Factory 策略构造函数
type Factory func(store IMarkStore) IDuplicateGuard

// Registry 策略注册表
type Registry struct {
	mutex     sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建含全部内置策略的注册表
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories[StrategyAllowMultiple] = func(IMarkStore) IDuplicateGuard { return allowMultiple{} }
	r.factories[StrategyOnePerUser] = func(s IMarkStore) IDuplicateGuard {
		return onePerSubject{name: StrategyOnePerUser, store: s,
			reason: "该问卷每位用户只能提交一次",
			identify: func(sub Submission) (string, bool) {
				if sub.Respondent.IsAnonymous() {
					return "", false
				}
				return sub.Respondent.Key(), true
			}}
	}
	r.factories[StrategyOnePerSession] = func(s IMarkStore) IDuplicateGuard {
		return onePerSubject{name: StrategyOnePerSession, store: s,
			reason: "该问卷每个会话只能提交一次",
			identify: func(sub Submission) (string, bool) {
				return sub.SessionID, sub.SessionID != ""
			}}
	}
	r.factories[StrategyOnePerIP] = func(s IMarkStore) IDuplicateGuard {
		return onePerSubject{name: StrategyOnePerIP, store: s,
			reason: "该问卷每个IP只能提交一次",
			identify: func(sub Submission) (string, bool) {
				return sub.IPAddress, sub.IPAddress != ""
			}}
	}
	return r
}

// Register 注册自定义策略
func (r *Registry) Register(name string, factory Factory) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if name == "" {
		return errors.NewInvalidInputError("策略名称不能为空")
	}
	if _, exists := r.factories[name]; exists {
		return errors.NewInvalidInputError("策略已注册: " + name)
	}
	r.factories[name] = factory
	return nil
}

// Resolve 按名称构造策略实例
func (r *Registry) Resolve(name string, store IMarkStore) (IDuplicateGuard, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.NewInvalidInputError("未知防重策略: " + name)
	}
	return factory(store), nil
}

// allowMultiple 不限制提交次数
type allowMultiple struct{}

func (allowMultiple) Name() string                           { return StrategyAllowMultiple }
func (allowMultiple) Identifier(Submission) (string, bool)   { return "", false }
func (allowMultiple) RejectionReason() string                { return "" }
func (allowMultiple) CanSubmit(context.Context, Submission) (bool, error) {
	return true, nil
}
func (allowMultiple) MarkSubmitted(context.Context, Submission) error { return nil }

// onePerSubject 按主体标识限一次的通用实现
type onePerSubject struct {
	name     string
	reason   string
	store    IMarkStore
	identify func(Submission) (string, bool)
}

func (g onePerSubject) Name() string            { return g.name }
func (g onePerSubject) RejectionReason() string { return g.reason }

func (g onePerSubject) Identifier(sub Submission) (string, bool) {
	return g.identify(sub)
}

func (g onePerSubject) CanSubmit(ctx context.Context, sub Submission) (bool, error) {
	key, ok := g.identify(sub)
	if !ok {
		// 无法提取标识时拒绝提交，而非放行绕过防重
		return false, nil
	}
	exists, err := g.store.Exists(ctx, sub.QuestionnaireID, g.name, key)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (g onePerSubject) MarkSubmitted(ctx context.Context, sub Submission) error {
	key, ok := g.identify(sub)
	if !ok {
		return errors.NewDuplicateSubmissionError("无法确定提交主体标识")
	}
	marked, err := g.store.Mark(ctx, sub.QuestionnaireID, g.name, key)
	if err != nil {
		return err
	}
	if !marked {
		return errors.NewDuplicateSubmissionError(g.reason)
	}
	return nil
}

var (
	_ IDuplicateGuard = allowMultiple{}
	_ IDuplicateGuard = onePerSubject{}
)
