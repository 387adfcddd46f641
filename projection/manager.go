package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wenjuan/eventing"
	"wenjuan/eventing/registry"
	"wenjuan/eventing/store"
	"wenjuan/logging"
	"wenjuan/retry"
)

// DefaultChunkSize 重建分块大小
const DefaultChunkSize = 1000

// RebuildOptions 重建范围选项
type RebuildOptions struct {
	// AfterSequence 起始全局序列号（不包含），0 表示从头
	AfterSequence int64

	// UntilSequence 结束全局序列号（包含），0 表示直到流尾
	UntilSequence int64

	// Types 仅重放指定事件标签
	Types []string

	// AggregateID 仅重放指定聚合
	AggregateID uuid.UUID

	// Projections 仅重建指定投影，空表示全部
	Projections []string

	// SkipReset 保留现有读模型数据（增量补放场景）
	SkipReset bool
}

// RebuildResult 重建结果
type RebuildResult struct {
	EventsProcessed int64
	EventsSkipped   int64
	LastSequence    int64
	Duration        time.Duration
}

// ManagerOptions 投影管理器依赖
type ManagerOptions struct {
	EventStore  store.IEventStreamStore
	Registry    *registry.Registry
	Checkpoints ICheckpointStore
	Logger      logging.Logger
	ChunkSize   int
	RetryConfig *retry.Config

	// DeadLetter 单事件重试耗尽后的回调；未设置时处理失败中止重放
	DeadLetter DeadLetterFunc
}

// Manager 投影管理器
type Manager struct {
	eventStore  store.IEventStreamStore
	registry    *registry.Registry
	checkpoints ICheckpointStore
	logger      logging.Logger
	chunkSize   int
	retryConfig retry.Config
	deadLetter  DeadLetterFunc
	projections []IProjection
}

// NewManager 创建投影管理器
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.EventStore == nil {
		return nil, fmt.Errorf("projection manager: event store is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("projection manager: event registry is required")
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = NewMemoryCheckpointStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.ComponentLogger("projection")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	retryConfig := retry.DefaultConfig()
	if opts.RetryConfig != nil {
		retryConfig = *opts.RetryConfig
	}
	return &Manager{
		eventStore:  opts.EventStore,
		registry:    opts.Registry,
		checkpoints: opts.Checkpoints,
		logger:      opts.Logger,
		chunkSize:   opts.ChunkSize,
		retryConfig: retryConfig,
		deadLetter:  opts.DeadLetter,
	}, nil
}

// Register 登记投影
func (m *Manager) Register(p IProjection) {
	m.projections = append(m.projections, p)
}

// Projections 返回已登记的投影名称
func (m *Manager) Projections() []string {
	names := make([]string, 0, len(m.projections))
	for _, p := range m.projections {
		names = append(names, p.Name())
	}
	return names
}

// RebuildAll 全量重建：清空全部投影产出后从头重放
func (m *Manager) RebuildAll(ctx context.Context) (*RebuildResult, error) {
	return m.Rebuild(ctx, RebuildOptions{})
}

// Rebuild 按范围选项重建投影
//
// 默认先 Reset 再重放；指定 SkipReset 时在现有产出上增量补放，
// 依赖投影幂等保证结果一致。
func (m *Manager) Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildResult, error) {
	targets, err := m.selectProjections(opts.Projections)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("projection manager: no projections registered")
	}

	start := time.Now()
	if !opts.SkipReset {
		for _, p := range targets {
			if err := p.Reset(ctx); err != nil {
				return nil, fmt.Errorf("reset projection %s: %w", p.Name(), err)
			}
			if err := m.checkpoints.Delete(ctx, p.Name()); err != nil {
				return nil, fmt.Errorf("delete checkpoint %s: %w", p.Name(), err)
			}
		}
	}

	m.logger.Info(ctx, "开始重建投影",
		logging.Int("projections", len(targets)),
		logging.Int64("after_sequence", opts.AfterSequence),
		logging.Int64("until_sequence", opts.UntilSequence))

	result := &RebuildResult{LastSequence: opts.AfterSequence}
	cursor := opts.AfterSequence
	for {
		streamResult, err := m.eventStore.StreamEvents(ctx, &store.StreamOptions{
			AfterSequence: cursor,
			UntilSequence: opts.UntilSequence,
			Types:         opts.Types,
			AggregateID:   opts.AggregateID,
			Limit:         m.chunkSize,
		})
		if err != nil {
			return nil, fmt.Errorf("stream events after sequence %d: %w", cursor, err)
		}

		for i := range streamResult.Events {
			event := &streamResult.Events[i]
			if err := m.dispatch(ctx, targets, event, result); err != nil {
				return nil, err
			}
			result.LastSequence = event.Sequence
		}

		if len(streamResult.Events) > 0 {
			if err := m.saveCheckpoints(ctx, targets, result.LastSequence); err != nil {
				return nil, err
			}
		}
		if !streamResult.HasMore {
			break
		}
		cursor = streamResult.NextSequence
	}

	result.Duration = time.Since(start)
	m.logger.Info(ctx, "投影重建完成",
		logging.Int64("events_processed", result.EventsProcessed),
		logging.Int64("events_skipped", result.EventsSkipped),
		logging.Int64("last_sequence", result.LastSequence),
		logging.Duration("duration", result.Duration))
	return result, nil
}

// CatchUp 从各投影检查点追至流尾（不 Reset）
func (m *Manager) CatchUp(ctx context.Context) (*RebuildResult, error) {
	position := int64(-1)
	for _, p := range m.projections {
		cp, err := m.checkpoints.Get(ctx, p.Name())
		if err != nil {
			return nil, fmt.Errorf("load checkpoint %s: %w", p.Name(), err)
		}
		// 多个投影取最小检查点，幂等处理消化重复重放
		if position < 0 || cp.Position < position {
			position = cp.Position
		}
	}
	if position < 0 {
		position = 0
	}
	return m.Rebuild(ctx, RebuildOptions{AfterSequence: position, SkipReset: true})
}

// dispatch 解码事件并分发给关心它的投影
//
// 未知事件标签是致命错误：静默跳过会让读模型缺数据。
func (m *Manager) dispatch(ctx context.Context, targets []IProjection, event *eventing.Event, result *RebuildResult) error {
	interested := make([]IProjection, 0, len(targets))
	for _, p := range targets {
		if projectionInterested(p, event.Type) {
			interested = append(interested, p)
		}
	}
	if len(interested) == 0 {
		result.EventsSkipped++
		return nil
	}

	decoded, err := m.registry.Decode(event)
	if err != nil {
		return fmt.Errorf("decode event sequence %d (%s): %w", event.Sequence, event.Type, err)
	}

	for _, p := range interested {
		handleErr := retry.Do(ctx, func(ctx context.Context) error {
			return p.Handle(ctx, event, decoded)
		}, m.retryConfig)
		if handleErr == nil {
			continue
		}
		m.logger.Error(ctx, "投影处理事件失败",
			logging.String("projection", p.Name()),
			logging.Int64("sequence", event.Sequence),
			logging.String("event_type", event.Type),
			logging.Error(handleErr))
		if m.deadLetter == nil {
			return fmt.Errorf("projection %s failed at sequence %d: %w", p.Name(), event.Sequence, handleErr)
		}
		if dlErr := m.deadLetter(ctx, p.Name(), event, handleErr); dlErr != nil {
			return fmt.Errorf("dead letter for projection %s at sequence %d: %w", p.Name(), event.Sequence, dlErr)
		}
	}
	result.EventsProcessed++
	return nil
}

func (m *Manager) saveCheckpoints(ctx context.Context, targets []IProjection, position int64) error {
	for _, p := range targets {
		err := m.checkpoints.Save(ctx, Checkpoint{
			ProjectionName: p.Name(),
			Position:       position,
			UpdatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("save checkpoint %s: %w", p.Name(), err)
		}
	}
	return nil
}

func (m *Manager) selectProjections(names []string) ([]IProjection, error) {
	if len(names) == 0 {
		return m.projections, nil
	}
	byName := make(map[string]IProjection, len(m.projections))
	for _, p := range m.projections {
		byName[p.Name()] = p
	}
	selected := make([]IProjection, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("projection manager: unknown projection %q", name)
		}
		selected = append(selected, p)
	}
	return selected, nil
}

func projectionInterested(p IProjection, eventType string) bool {
	types := p.InterestedIn()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == eventType {
			return true
		}
	}
	return false
}
