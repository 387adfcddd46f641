package pipeline

import (
	"context"

	"wenjuan/errors"
	"wenjuan/guard"
	"wenjuan/logging"
)

// CheckDuplicateSubmission 防重阶段
//
// next 之前做预检尽早拒绝；next 成功返回（事实已落库）后登记
// 标识。登记依赖存储层唯一约束兜底：两个并发提交可能都通过
// 预检，但只有一个登记成功，另一个在此处收到重复提交错误。
type CheckDuplicateSubmission struct {
	registry  *guard.Registry
	markStore guard.IMarkStore
	logger    logging.Logger
}

// NewCheckDuplicateSubmission 创建防重阶段
func NewCheckDuplicateSubmission(registry *guard.Registry, markStore guard.IMarkStore) *CheckDuplicateSubmission {
	return &CheckDuplicateSubmission{
		registry:  registry,
		markStore: markStore,
		logger:    logging.ComponentLogger("pipeline.check_duplicate"),
	}
}

func (s *CheckDuplicateSubmission) Name() string { return "check_duplicate_submission" }

func (s *CheckDuplicateSubmission) Execute(ctx context.Context, sub *Submission, next Next) error {
	strategy := s.resolveStrategy(sub)
	g, err := s.registry.Resolve(strategy, s.markStore)
	if err != nil {
		return err
	}

	gsub := guard.Submission{
		QuestionnaireID: sub.QuestionnaireID,
		Respondent:      sub.Respondent,
		SessionID:       sub.SessionID,
		IPAddress:       sub.IPAddress,
	}

	allowed, err := g.CanSubmit(ctx, gsub)
	if err != nil {
		return err
	}
	if !allowed {
		reason := g.RejectionReason()
		if reason == "" {
			reason = "重复提交"
		}
		return errors.NewDuplicateSubmissionError(reason)
	}

	if err := next(ctx); err != nil {
		return err
	}

	if err := g.MarkSubmitted(ctx, gsub); err != nil {
		if errors.IsCode(err, errors.ErrCodeDuplicateSubmission) {
			return err
		}
		// 标识登记的基础设施故障不回滚已落库的事实，只记日志
		s.logger.Warn(ctx, "登记防重标识失败",
			logging.String("strategy", g.Name()),
			logging.String("questionnaire_id", sub.QuestionnaireID.String()),
			logging.Error(err))
	}
	return nil
}

// resolveStrategy 确定防重策略：显式配置优先，否则按是否允许
// 多次提交推导
func (s *CheckDuplicateSubmission) resolveStrategy(sub *Submission) string {
	settings := sub.Questionnaire.Settings()
	if settings.GuardStrategy != "" {
		return settings.GuardStrategy
	}
	if settings.AllowMultipleSubmissions {
		return guard.StrategyAllowMultiple
	}
	return guard.StrategyOnePerUser
}

var _ IStage = (*CheckDuplicateSubmission)(nil)
