package snapshot

// IStrategy 快照策略接口
//
// 判断保存后是否应该为聚合创建新快照。
type IStrategy interface {
	// ShouldCreateSnapshot 根据当前版本与上次快照版本判断
	ShouldCreateSnapshot(currentVersion, lastSnapshotVersion uint64) bool

	GetName() string
}

// DefaultInterval 默认快照间隔（事件数）
const DefaultInterval = 100

// EventCountStrategy 基于事件数量的快照策略
//
// 距上次快照累计超过 Interval 个事件时创建新快照。
type EventCountStrategy struct {
	Interval uint64
}

// NewEventCountStrategy 创建事件计数策略，interval <= 0 时使用默认值
func NewEventCountStrategy(interval int) *EventCountStrategy {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &EventCountStrategy{Interval: uint64(interval)}
}

func (s *EventCountStrategy) ShouldCreateSnapshot(currentVersion, lastSnapshotVersion uint64) bool {
	return currentVersion >= lastSnapshotVersion+s.Interval
}

func (s *EventCountStrategy) GetName() string { return "EventCountStrategy" }

// NeverStrategy 从不创建快照（测试或小聚合场景）
type NeverStrategy struct{}

func (NeverStrategy) ShouldCreateSnapshot(currentVersion, lastSnapshotVersion uint64) bool {
	return false
}

func (NeverStrategy) GetName() string { return "NeverStrategy" }

var (
	_ IStrategy = (*EventCountStrategy)(nil)
	_ IStrategy = (*NeverStrategy)(nil)
)
