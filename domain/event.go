// Package domain 定义领域层基础抽象
package domain

// IDomainEvent 领域事件接口
//
// EventType 返回稳定的事件标签（持久化标识，与内存类型名解耦）。
// 具体事件为纯数据结构体，可 JSON 序列化。
type IDomainEvent interface {
	EventType() string
}
