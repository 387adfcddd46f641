// Package registry 提供事件类型注册表，用于重放时的事件反序列化
//
// 注册表将稳定的事件标签映射到解码工厂。内存类型重命名时，通过
// RegisterAlias 显式登记旧标签到新标签的映射，历史事件照常重放；
// 绝不依赖运行时类型名反射。
package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"wenjuan/eventing"
)

// EventFactory 事件工厂函数，返回事件结构体指针（用于 JSON 解码）
type EventFactory func() any

// Registry 事件注册表
type Registry struct {
	factories map[string]EventFactory
	aliases   map[string]string // 旧标签 -> 规范标签
	versions  map[string]int
	mutex     sync.RWMutex
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]EventFactory),
		aliases:   make(map[string]string),
		versions:  make(map[string]int),
	}
}

// Register 注册事件类型（模式版本默认 1）
func (r *Registry) Register(eventType string, factory EventFactory) error {
	return r.RegisterWithVersion(eventType, 1, factory)
}

// RegisterWithVersion 注册带模式版本的事件类型
func (r *Registry) RegisterWithVersion(eventType string, schemaVersion int, factory EventFactory) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("event factory cannot be nil for type %s", eventType)
	}
	if schemaVersion <= 0 {
		return fmt.Errorf("schema version must be greater than 0 for type %s", eventType)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.factories[eventType]; exists {
		return fmt.Errorf("event type already registered: %s", eventType)
	}
	if factory() == nil {
		return fmt.Errorf("event factory returned nil for type %s", eventType)
	}
	r.factories[eventType] = factory
	r.versions[eventType] = schemaVersion
	return nil
}

// RegisterAlias 登记历史标签别名
//
// alias 为历史上持久化过的旧标签，canonical 为当前规范标签。
// 规范标签必须已注册。
func (r *Registry) RegisterAlias(alias, canonical string) error {
	if alias == "" || canonical == "" {
		return fmt.Errorf("alias and canonical type cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.factories[canonical]; !exists {
		return fmt.Errorf("canonical event type not registered: %s", canonical)
	}
	if _, exists := r.factories[alias]; exists {
		return fmt.Errorf("alias conflicts with registered event type: %s", alias)
	}
	if existing, exists := r.aliases[alias]; exists && existing != canonical {
		return fmt.Errorf("alias %s already mapped to %s", alias, existing)
	}
	r.aliases[alias] = canonical
	return nil
}

// Resolve 将事件标签解析为规范标签
//
// 未注册且无别名时返回 UnknownEventTypeError（重放必须停止，
// 跳过事件会使状态与历史脱节）。
func (r *Registry) Resolve(eventType string) (string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if _, ok := r.factories[eventType]; ok {
		return eventType, nil
	}
	if canonical, ok := r.aliases[eventType]; ok {
		return canonical, nil
	}
	return "", eventing.NewUnknownEventTypeError(eventType)
}

// IsRegistered 检查标签（含别名）是否可解析
func (r *Registry) IsRegistered(eventType string) bool {
	_, err := r.Resolve(eventType)
	return err == nil
}

// Decode 将存储的事件信封解码为具体领域事件
func (r *Registry) Decode(evt *eventing.Event) (any, error) {
	canonical, err := r.Resolve(evt.Type)
	if err != nil {
		return nil, err
	}

	r.mutex.RLock()
	factory := r.factories[canonical]
	r.mutex.RUnlock()

	instance := factory()
	if len(evt.Payload) > 0 {
		if err := json.Unmarshal(evt.Payload, instance); err != nil {
			return nil, eventing.NewSerializationError(evt.Type, err)
		}
	}
	return instance, nil
}

// SchemaVersion 返回已注册标签的模式版本
func (r *Registry) SchemaVersion(eventType string) (int, error) {
	canonical, err := r.Resolve(eventType)
	if err != nil {
		return 0, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.versions[canonical], nil
}

// RegisteredTypes 返回所有规范标签（不含别名）
func (r *Registry) RegisteredTypes() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
