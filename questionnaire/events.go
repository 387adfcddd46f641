package questionnaire

import (
	"time"

	"github.com/google/uuid"

	"wenjuan/eventing/registry"
)

// 稳定事件标签。持久化标识，修改即破坏历史重放——重命名内存类型时
// 保持标签不变，或通过 RegisterAlias 登记旧标签。
const (
	EventCreated         = "questionnaire.created"
	EventDetailsUpdated  = "questionnaire.details_updated"
	EventQuestionAdded   = "questionnaire.question_added"
	EventQuestionUpdated = "questionnaire.question_updated"
	EventQuestionRemoved = "questionnaire.question_removed"
	EventPublished       = "questionnaire.published"
	EventClosed          = "questionnaire.closed"
)

// Created 问卷已创建
type Created struct {
	QuestionnaireID uuid.UUID `json:"questionnaire_id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description,omitempty"`
	Settings        Settings  `json:"settings"`
	DateRange       DateRange `json:"date_range"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Created) EventType() string { return EventCreated }

// DetailsUpdated 问卷基本信息已更新
type DetailsUpdated struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Settings    Settings  `json:"settings"`
	DateRange   DateRange `json:"date_range"`
}

func (DetailsUpdated) EventType() string { return EventDetailsUpdated }

// QuestionAdded 题目已添加
type QuestionAdded struct {
	Question Question `json:"question"`
}

func (QuestionAdded) EventType() string { return EventQuestionAdded }

// QuestionUpdated 题目已更新（整体替换）
type QuestionUpdated struct {
	Question Question `json:"question"`
}

func (QuestionUpdated) EventType() string { return EventQuestionUpdated }

// QuestionRemoved 题目已移除
type QuestionRemoved struct {
	QuestionID uuid.UUID `json:"question_id"`
}

func (QuestionRemoved) EventType() string { return EventQuestionRemoved }

// Published 问卷已发布
type Published struct {
	PublishedAt time.Time `json:"published_at"`
}

func (Published) EventType() string { return EventPublished }

// Closed 问卷已关闭（终态）
type Closed struct {
	ClosedAt time.Time `json:"closed_at"`
}

func (Closed) EventType() string { return EventClosed }

// RegisterEvents 向注册表登记问卷事件及历史别名
//
// "survey.*" 为项目早期（聚合尚名为 Survey 时）持久化过的标签，
// 通过别名保证旧事件流照常重放。
func RegisterEvents(r *registry.Registry) error {
	type entry struct {
		tag     string
		factory registry.EventFactory
	}
	entries := []entry{
		{EventCreated, func() any { return &Created{} }},
		{EventDetailsUpdated, func() any { return &DetailsUpdated{} }},
		{EventQuestionAdded, func() any { return &QuestionAdded{} }},
		{EventQuestionUpdated, func() any { return &QuestionUpdated{} }},
		{EventQuestionRemoved, func() any { return &QuestionRemoved{} }},
		{EventPublished, func() any { return &Published{} }},
		{EventClosed, func() any { return &Closed{} }},
	}
	for _, e := range entries {
		if err := r.Register(e.tag, e.factory); err != nil {
			return err
		}
	}

	aliases := map[string]string{
		"survey.created":   EventCreated,
		"survey.published": EventPublished,
		"survey.closed":    EventClosed,
	}
	for alias, canonical := range aliases {
		if err := r.RegisterAlias(alias, canonical); err != nil {
			return err
		}
	}
	return nil
}
