// Package questionnaire 实现问卷聚合
//
// 生命周期状态机：Draft -> Published -> Closed（线性，无回退，
// 同状态流转视为错误）。题目增删改仅限 Draft 状态；发布要求至少
// 一道题目；Closed 为终态。
//
// 所有业务方法遵循"先校验后记录"：不变式校验失败时不产生任何
// 事件，聚合状态保持不变。
package questionnaire

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"wenjuan/domain"
	"wenjuan/domain/eventsourced"
	"wenjuan/errors"
	"wenjuan/validation"
)

// AggregateType 聚合类型名称
const AggregateType = "Questionnaire"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Questionnaire 问卷聚合根
type Questionnaire struct {
	eventsourced.AggregateRoot

	title       string
	slug        string
	description string
	status      Status
	settings    Settings
	dateRange   DateRange

	// questions 按题目ID索引，O(1) 查找与删除；展示顺序由 Order 字段承载
	questions map[uuid.UUID]Question

	createdAt   time.Time
	publishedAt *time.Time
	closedAt    *time.Time
}

// New 创建空聚合（仓储工厂用，状态由事件重放填充）
func New(id uuid.UUID) *Questionnaire {
	q := &Questionnaire{questions: make(map[uuid.UUID]Question)}
	q.AggregateRoot = eventsourced.NewAggregateRoot(id, AggregateType, q.applyEvent)
	return q
}

// Create 创建新问卷（初始为 Draft）
func Create(id uuid.UUID, title, slug, description string, settings Settings, dateRange DateRange) (*Questionnaire, error) {
	title = strings.TrimSpace(title)
	if err := validation.ValidateStringLength(title, "标题", 1, 255); err != nil {
		return nil, err
	}
	slug = normalizeSlug(slug)
	if !slugPattern.MatchString(slug) {
		return nil, errors.NewValidationError("slug 只能包含小写字母、数字与连字符")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := dateRange.Validate(); err != nil {
		return nil, err
	}

	q := New(id)
	err := q.ApplyAndRecord(&Created{
		QuestionnaireID: id,
		Title:           title,
		Slug:            slug,
		Description:     strings.TrimSpace(description),
		Settings:        settings,
		DateRange:       dateRange,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// 访问器

func (q *Questionnaire) Title() string          { return q.title }
func (q *Questionnaire) Slug() string           { return q.slug }
func (q *Questionnaire) Description() string    { return q.description }
func (q *Questionnaire) Status() Status         { return q.status }
func (q *Questionnaire) Settings() Settings     { return q.settings }
func (q *Questionnaire) DateRange() DateRange   { return q.dateRange }
func (q *Questionnaire) CreatedAt() time.Time   { return q.createdAt }
func (q *Questionnaire) PublishedAt() *time.Time { return q.publishedAt }
func (q *Questionnaire) ClosedAt() *time.Time   { return q.closedAt }

// QuestionCount 题目数量
func (q *Questionnaire) QuestionCount() int { return len(q.questions) }

// Question 按ID查找题目
func (q *Questionnaire) Question(id uuid.UUID) (Question, bool) {
	question, ok := q.questions[id]
	return question, ok
}

// Questions 返回全部题目的副本（无序，展示顺序见 Question.Order）
func (q *Questionnaire) Questions() []Question {
	result := make([]Question, 0, len(q.questions))
	for _, question := range q.questions {
		result = append(result, question)
	}
	return result
}

// 业务方法

// UpdateDetails 更新基本信息（仅 Draft）
func (q *Questionnaire) UpdateDetails(title, description string, settings Settings, dateRange DateRange) error {
	if q.status != StatusDraft {
		return errors.NewStateTransitionError(
			fmt.Sprintf("%s 状态的问卷不允许修改基本信息", q.status))
	}
	title = strings.TrimSpace(title)
	if err := validation.ValidateStringLength(title, "标题", 1, 255); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := dateRange.Validate(); err != nil {
		return err
	}
	return q.ApplyAndRecord(&DetailsUpdated{
		Title:       title,
		Description: strings.TrimSpace(description),
		Settings:    settings,
		DateRange:   dateRange,
	})
}

// AddQuestion 添加题目（仅 Draft）
func (q *Questionnaire) AddQuestion(question Question) error {
	if q.status != StatusDraft {
		return errors.NewStateTransitionError(
			fmt.Sprintf("%s 状态的问卷不允许添加题目", q.status))
	}
	if err := question.Validate(); err != nil {
		return err
	}
	if _, exists := q.questions[question.ID]; exists {
		return errors.NewStateTransitionError("题目已存在: " + question.ID.String())
	}
	return q.ApplyAndRecord(&QuestionAdded{Question: question})
}

// UpdateQuestion 更新题目（仅 Draft）
//
// 与添加/删除保持对称的状态守卫：已发布问卷修改题目会使已收集
// 的答案失去对应语义。
func (q *Questionnaire) UpdateQuestion(question Question) error {
	if q.status != StatusDraft {
		return errors.NewStateTransitionError(
			fmt.Sprintf("%s 状态的问卷不允许修改题目", q.status))
	}
	if err := question.Validate(); err != nil {
		return err
	}
	if _, exists := q.questions[question.ID]; !exists {
		return errors.NewStateTransitionError("题目不存在: " + question.ID.String())
	}
	return q.ApplyAndRecord(&QuestionUpdated{Question: question})
}

// RemoveQuestion 移除题目（仅 Draft）
func (q *Questionnaire) RemoveQuestion(questionID uuid.UUID) error {
	if q.status != StatusDraft {
		return errors.NewStateTransitionError(
			fmt.Sprintf("%s 状态的问卷不允许移除题目", q.status))
	}
	if _, exists := q.questions[questionID]; !exists {
		return errors.NewStateTransitionError("题目不存在: " + questionID.String())
	}
	return q.ApplyAndRecord(&QuestionRemoved{QuestionID: questionID})
}

// Publish 发布问卷（Draft -> Published，要求至少一道题目）
func (q *Questionnaire) Publish() error {
	if q.status != StatusDraft {
		return errors.NewStateTransitionError(
			fmt.Sprintf("只有草稿可以发布（当前 %s）", q.status))
	}
	if len(q.questions) == 0 {
		return errors.NewStateTransitionError("没有题目的问卷不能发布")
	}
	return q.ApplyAndRecord(&Published{PublishedAt: time.Now().UTC()})
}

// Close 关闭问卷（Published -> Closed，终态）
func (q *Questionnaire) Close() error {
	if q.status != StatusPublished {
		return errors.NewStateTransitionError(
			fmt.Sprintf("只有已发布的问卷可以关闭（当前 %s）", q.status))
	}
	return q.ApplyAndRecord(&Closed{ClosedAt: time.Now().UTC()})
}

// applyEvent 事件分派：唯一的状态变更入口（重放与记录共用）。
// 每种事件对应一个分支；未知事件返回错误而非忽略。
func (q *Questionnaire) applyEvent(evt domain.IDomainEvent) error {
	switch e := evt.(type) {
	case *Created:
		q.title = e.Title
		q.slug = e.Slug
		q.description = e.Description
		q.settings = e.Settings
		q.dateRange = e.DateRange
		q.status = StatusDraft
		q.createdAt = e.CreatedAt
	case *DetailsUpdated:
		q.title = e.Title
		q.description = e.Description
		q.settings = e.Settings
		q.dateRange = e.DateRange
	case *QuestionAdded:
		q.questions[e.Question.ID] = e.Question
	case *QuestionUpdated:
		q.questions[e.Question.ID] = e.Question
	case *QuestionRemoved:
		delete(q.questions, e.QuestionID)
	case *Published:
		t := e.PublishedAt
		q.status = StatusPublished
		q.publishedAt = &t
	case *Closed:
		t := e.ClosedAt
		q.status = StatusClosed
		q.closedAt = &t
	default:
		return fmt.Errorf("questionnaire: unhandled event type %T", evt)
	}
	return nil
}

// snapshotState 快照序列化结构
type snapshotState struct {
	Title       string               `json:"title"`
	Slug        string               `json:"slug"`
	Description string               `json:"description,omitempty"`
	Status      Status               `json:"status"`
	Settings    Settings             `json:"settings"`
	DateRange   DateRange            `json:"date_range"`
	Questions   map[string]Question  `json:"questions"`
	CreatedAt   time.Time            `json:"created_at"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
	ClosedAt    *time.Time           `json:"closed_at,omitempty"`
}

// MarshalSnapshot 实现 eventsourced.ISnapshotCapable
func (q *Questionnaire) MarshalSnapshot() ([]byte, error) {
	state := snapshotState{
		Title:       q.title,
		Slug:        q.slug,
		Description: q.description,
		Status:      q.status,
		Settings:    q.settings,
		DateRange:   q.dateRange,
		Questions:   make(map[string]Question, len(q.questions)),
		CreatedAt:   q.createdAt,
		PublishedAt: q.publishedAt,
		ClosedAt:    q.closedAt,
	}
	for id, question := range q.questions {
		state.Questions[id.String()] = question
	}
	return json.Marshal(state)
}

// UnmarshalSnapshot 实现 eventsourced.ISnapshotCapable
func (q *Questionnaire) UnmarshalSnapshot(data []byte) error {
	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	q.title = state.Title
	q.slug = state.Slug
	q.description = state.Description
	q.status = state.Status
	q.settings = state.Settings
	q.dateRange = state.DateRange
	q.createdAt = state.CreatedAt
	q.publishedAt = state.PublishedAt
	q.closedAt = state.ClosedAt
	q.questions = make(map[uuid.UUID]Question, len(state.Questions))
	for idStr, question := range state.Questions {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return fmt.Errorf("invalid question id in snapshot: %q", idStr)
		}
		q.questions[id] = question
	}
	return nil
}

var (
	_ eventsourced.IEventSourcedAggregate = (*Questionnaire)(nil)
	_ eventsourced.ISnapshotCapable       = (*Questionnaire)(nil)
)
