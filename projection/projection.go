// Package projection 实现读模型投影引擎
//
// 投影从全局事件流折叠出读模型。处理必须幂等：重建时同一事件
// 可能被重放多次。重建按检查点分块推进，中断后可从断点继续。
package projection

import (
	"context"

	"wenjuan/eventing"
)

// IProjection 投影契约
type IProjection interface {
	// Name 投影名称（检查点键）
	Name() string

	// InterestedIn 关心的事件标签集合（含历史别名），空表示全部
	InterestedIn() []string

	// Handle 处理单个事件。event 为存储信封，decoded 为注册表
	// 还原出的领域事件。实现必须幂等。
	Handle(ctx context.Context, event *eventing.Event, decoded any) error

	// Reset 清空投影产出，重建前调用
	Reset(ctx context.Context) error
}

// DeadLetterFunc 死信回调，返回错误时中止重放
type DeadLetterFunc func(ctx context.Context, projectionName string, event *eventing.Event, err error) error
