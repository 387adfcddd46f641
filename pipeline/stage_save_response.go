package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wenjuan/domain/eventsourced"
	"wenjuan/logging"
	"wenjuan/response"
)

// SaveResponse 事实落库阶段
//
// 先在单个 SQL 事务内写入答卷明细行，再把聚合写入事件存储。
// 事件落库是提交点：明细写入失败时直接报错，事实不落库；事件
// 落库失败时补偿删除已写入的明细行。调用方收到错误即意味着
// 事件存储中没有这次提交的事实，重试不会产生重复事实。
type SaveResponse struct {
	responses *eventsourced.Repository[*response.Response]
	writer    *ResponseWriter
	newID     func() uuid.UUID
	logger    logging.Logger
}

// NewSaveResponse 创建落库阶段
func NewSaveResponse(responses *eventsourced.Repository[*response.Response], writer *ResponseWriter) *SaveResponse {
	return &SaveResponse{
		responses: responses,
		writer:    writer,
		newID:     uuid.New,
		logger:    logging.ComponentLogger("pipeline.save_response"),
	}
}

// WithIDGenerator 替换ID生成器（测试用）
func (s *SaveResponse) WithIDGenerator(newID func() uuid.UUID) *SaveResponse {
	s.newID = newID
	return s
}

func (s *SaveResponse) Name() string { return "save_response" }

func (s *SaveResponse) Execute(ctx context.Context, sub *Submission, next Next) error {
	r, err := response.Submit(
		s.newID(), sub.QuestionnaireID, sub.Respondent,
		sub.IPAddress, sub.UserAgent, sub.Answers, sub.Metadata)
	if err != nil {
		return err
	}

	if s.writer != nil {
		if err := s.writer.Write(ctx, r); err != nil {
			return fmt.Errorf("persist response rows: %w", err)
		}
	}
	if err := s.responses.Save(ctx, r); err != nil {
		if s.writer != nil {
			if cleanupErr := s.writer.Delete(ctx, r.GetID()); cleanupErr != nil {
				s.logger.Warn(ctx, "清理答卷明细行失败",
					logging.String("response_id", r.GetID().String()),
					logging.Error(cleanupErr))
			}
		}
		return fmt.Errorf("persist response events: %w", err)
	}

	sub.Response = r
	return next(ctx)
}

var _ IStage = (*SaveResponse)(nil)
