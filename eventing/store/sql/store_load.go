package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wenjuan/eventing"
	"wenjuan/eventing/store"
	"wenjuan/storage/database"
)

const eventColumns = "sequence, id, type, aggregate_id, aggregate_type, version, schema_version, timestamp, payload, metadata"

func (s *SQLEventStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]eventing.Event, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE aggregate_id = ? AND version > ? ORDER BY version ASC",
		eventColumns, s.tableName)
	rows, err := s.db.Query(ctx, query, aggregateID.String(), afterVersion)
	if err != nil {
		return nil, eventing.NewStoreFailedError("load events failed", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StreamEvents 按全局序列号升序流式读取（实现 IEventStreamStore）
func (s *SQLEventStore) StreamEvents(ctx context.Context, opts *store.StreamOptions) (*store.StreamResult, error) {
	if opts == nil {
		opts = &store.StreamOptions{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = store.DefaultStreamLimit
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE sequence > ?", eventColumns, s.tableName)
	args := []any{opts.AfterSequence}

	if opts.UntilSequence > 0 {
		query += " AND sequence <= ?"
		args = append(args, opts.UntilSequence)
	}
	if len(opts.Types) > 0 {
		placeholders := ""
		for i, t := range opts.Types {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", placeholders)
	}
	if opts.AggregateID != uuid.Nil {
		query += " AND aggregate_id = ?"
		args = append(args, opts.AggregateID.String())
	}
	// 多取一条用于判断 HasMore
	query += " ORDER BY sequence ASC LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eventing.NewStoreFailedError("stream events failed", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	res := &store.StreamResult{Events: events}
	if len(events) == 0 {
		return res, nil
	}
	if len(events) > limit {
		res.HasMore = true
		res.Events = events[:limit]
	}
	res.NextSequence = res.Events[len(res.Events)-1].Sequence
	return res, nil
}

func (s *SQLEventStore) GetAggregateVersion(ctx context.Context, aggregateID uuid.UUID) (uint64, error) {
	return s.currentVersion(ctx, s.db, aggregateID)
}

func (s *SQLEventStore) HasAggregate(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	var count int64
	row := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE aggregate_id = ?", s.tableName),
		aggregateID.String())
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvents(rows database.IRows) ([]eventing.Event, error) {
	var events []eventing.Event
	for rows.Next() {
		var (
			sequence     int64
			id, typ      string
			aggIDStr     string
			aggType      string
			ver          uint64
			schema       int
			tsStr        string
			payloadJSON  string
			metadataJSON *string
		)
		if err := rows.Scan(&sequence, &id, &typ, &aggIDStr, &aggType, &ver, &schema, &tsStr, &payloadJSON, &metadataJSON); err != nil {
			return nil, err
		}

		aggID, err := uuid.Parse(aggIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid aggregate id %q for event %s: %w", aggIDStr, id, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q for event %s: %w", tsStr, id, err)
		}

		var metadata map[string]any
		if metadataJSON != nil && *metadataJSON != "" {
			if err := json.Unmarshal([]byte(*metadataJSON), &metadata); err != nil {
				return nil, eventing.NewSerializationError(typ, err)
			}
		}

		events = append(events, eventing.Event{
			ID:            id,
			Sequence:      sequence,
			Type:          typ,
			AggregateID:   aggID,
			AggregateType: aggType,
			Version:       ver,
			SchemaVersion: schema,
			Timestamp:     ts,
			Payload:       json.RawMessage(payloadJSON),
			Metadata:      metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// 编译期断言
var _ store.IEventStreamStore = (*SQLEventStore)(nil)
