package eventsourced

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"

	"wenjuan/domain"
	appErrors "wenjuan/errors"
	"wenjuan/eventing"
	"wenjuan/eventing/registry"
	"wenjuan/eventing/store"
	"wenjuan/eventing/store/snapshot"
	"wenjuan/logging"
)

// ErrAggregateNotFound 聚合不存在
var ErrAggregateNotFound = appErrors.NewNotFoundError("aggregate not found")

// Factory 聚合工厂，返回指定 ID 的空聚合
type Factory[T IEventSourcedAggregate] func(id uuid.UUID) T

// RepositoryOptions 仓储配置
type RepositoryOptions[T IEventSourcedAggregate] struct {
	AggregateType string
	Factory       Factory[T]
	EventStore    store.IEventStore
	Registry      *registry.Registry

	// SnapshotStore 可选；配置后按 SnapshotStrategy 写快照并用于重建加速
	SnapshotStore    snapshot.ISnapshotStore
	SnapshotStrategy snapshot.IStrategy

	Logger logging.Logger
}

// Repository 事件溯源仓储
//
// GetByID：快照（若有）+ 重放快照之后的事件；
// Save：以加载时版本为 expectedVersion 追加未提交事件，成功后
// 清空未提交列表，并按策略写快照。版本冲突原样上抛（可重试），
// 本层不做自动重试——重试策略属于命令处理方。
type Repository[T IEventSourcedAggregate] struct {
	aggregateType    string
	factory          Factory[T]
	eventStore       store.IEventStore
	registry         *registry.Registry
	snapshotStore    snapshot.ISnapshotStore
	snapshotStrategy snapshot.IStrategy
	logger           logging.Logger
}

// NewRepository 创建事件溯源仓储
func NewRepository[T IEventSourcedAggregate](opts RepositoryOptions[T]) (*Repository[T], error) {
	if opts.AggregateType == "" {
		return nil, fmt.Errorf("aggregate type cannot be empty")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("aggregate factory cannot be nil")
	}
	if opts.EventStore == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("event registry cannot be nil")
	}
	strategy := opts.SnapshotStrategy
	if strategy == nil {
		strategy = snapshot.NewEventCountStrategy(snapshot.DefaultInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.ComponentLogger("eventsourced.repository").
			WithFields(logging.String("aggregate_type", opts.AggregateType))
	}
	return &Repository[T]{
		aggregateType:    opts.AggregateType,
		factory:          opts.Factory,
		eventStore:       opts.EventStore,
		registry:         opts.Registry,
		snapshotStore:    opts.SnapshotStore,
		snapshotStrategy: strategy,
		logger:           logger,
	}, nil
}

// GetByID 通过重放事件（可选快照加速）重建聚合
func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	aggregate := r.factory(id)

	var afterVersion uint64
	if r.snapshotStore != nil {
		snap, err := r.snapshotStore.GetSnapshot(ctx, id)
		switch {
		case err == nil:
			capable, ok := any(aggregate).(ISnapshotCapable)
			if !ok {
				return aggregate, fmt.Errorf("aggregate %s has snapshot but does not implement ISnapshotCapable", r.aggregateType)
			}
			if err := capable.UnmarshalSnapshot(snap.Data); err != nil {
				return aggregate, appErrors.WrapError(appErrors.ErrCodeSerialization, "restore snapshot failed", err)
			}
			r.restoreVersion(aggregate, snap.Version)
			afterVersion = snap.Version
		case stdErrors.Is(err, snapshot.ErrSnapshotNotFound):
			// 无快照，全量重放
		default:
			return aggregate, err
		}
	}

	events, err := r.eventStore.LoadEvents(ctx, id, afterVersion)
	if err != nil {
		return aggregate, err
	}
	if afterVersion == 0 && len(events) == 0 {
		return aggregate, ErrAggregateNotFound
	}

	for i := range events {
		decoded, err := r.registry.Decode(&events[i])
		if err != nil {
			// 无法解析的事件是致命错误：跳过会使状态与历史脱节
			return aggregate, err
		}
		domainEvent, ok := decoded.(domain.IDomainEvent)
		if !ok {
			return aggregate, fmt.Errorf("decoded event %s is not a domain event: %T", events[i].Type, decoded)
		}
		if err := aggregate.Apply(domainEvent); err != nil {
			return aggregate, fmt.Errorf("replay event %s at version %d failed: %w", events[i].Type, events[i].Version, err)
		}
	}
	return aggregate, nil
}

// Save 持久化聚合的未提交事件
func (r *Repository[T]) Save(ctx context.Context, aggregate T) error {
	events := aggregate.GetUncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	currentVersion := aggregate.GetVersion()
	if currentVersion < uint64(len(events)) {
		return fmt.Errorf("aggregate version %d less than uncommitted event count %d", currentVersion, len(events))
	}
	expectedVersion := currentVersion - uint64(len(events))

	envelopes := make([]*eventing.Event, 0, len(events))
	for i, de := range events {
		envelope, err := eventing.NewEvent(
			aggregate.GetID(), r.aggregateType, de.EventType(),
			expectedVersion+uint64(i)+1, de)
		if err != nil {
			return err
		}
		envelopes = append(envelopes, envelope)
	}

	if err := r.eventStore.AppendEvents(ctx, aggregate.GetID(), envelopes, expectedVersion); err != nil {
		return err
	}
	aggregate.MarkEventsAsCommitted()

	r.maybeSnapshot(ctx, aggregate)
	return nil
}

// Exists 检查聚合是否存在
func (r *Repository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.eventStore.HasAggregate(ctx, id)
}

// GetAggregateVersion 获取聚合当前持久化版本，不存在返回 (0, nil)
func (r *Repository[T]) GetAggregateVersion(ctx context.Context, id uuid.UUID) (uint64, error) {
	return r.eventStore.GetAggregateVersion(ctx, id)
}

// maybeSnapshot 按策略写快照。快照失败只记日志不影响保存结果：
// 事件已落盘，快照仅是重建加速。
func (r *Repository[T]) maybeSnapshot(ctx context.Context, aggregate T) {
	if r.snapshotStore == nil {
		return
	}
	capable, ok := any(aggregate).(ISnapshotCapable)
	if !ok {
		return
	}

	var lastVersion uint64
	if snap, err := r.snapshotStore.GetSnapshot(ctx, aggregate.GetID()); err == nil {
		lastVersion = snap.Version
	}
	if !r.snapshotStrategy.ShouldCreateSnapshot(aggregate.GetVersion(), lastVersion) {
		return
	}

	data, err := capable.MarshalSnapshot()
	if err != nil {
		r.logger.Warn(ctx, "序列化快照失败", logging.Error(err),
			logging.String("aggregate_id", aggregate.GetID().String()))
		return
	}
	err = r.snapshotStore.SaveSnapshot(ctx, snapshot.Snapshot{
		AggregateID:   aggregate.GetID(),
		AggregateType: r.aggregateType,
		Version:       aggregate.GetVersion(),
		Data:          data,
	})
	if err != nil {
		r.logger.Warn(ctx, "保存快照失败", logging.Error(err),
			logging.String("aggregate_id", aggregate.GetID().String()))
		return
	}
	r.logger.Debug(ctx, "快照已保存",
		logging.String("aggregate_id", aggregate.GetID().String()),
		logging.Uint64("version", aggregate.GetVersion()))
}

// restoreVersion 通过 AggregateRoot 基类恢复版本
func (r *Repository[T]) restoreVersion(aggregate T, version uint64) {
	type versionRestorer interface{ RestoreVersion(uint64) }
	if vr, ok := any(aggregate).(versionRestorer); ok {
		vr.RestoreVersion(version)
	}
}
