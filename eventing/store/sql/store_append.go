package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wenjuan/eventing"
	"wenjuan/logging"
	"wenjuan/storage/database"
)

// preparedEvent 预处理的事件数据（用于批量插入）
type preparedEvent struct {
	id            string
	typ           string
	aggregateType string
	version       uint64
	schemaVersion int
	timestamp     string
	payloadJSON   string
	metadataJSON  string
}

func (s *SQLEventStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, events []*eventing.Event, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return eventing.NewStoreFailedError("begin transaction failed", err)
	}
	defer tx.Rollback()

	// 版本检查必须在事务内，保证与插入的原子性
	currentVersion, err := s.currentVersion(ctx, tx, aggregateID)
	if err != nil {
		return eventing.NewStoreFailedError("query current version failed", err)
	}
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	// 预先校验并序列化全部事件，避免无效写入
	prepared := make([]preparedEvent, 0, len(events))
	for idx, evt := range events {
		want := expectedVersion + uint64(idx) + 1
		if evt.Version != want {
			return eventing.NewInvalidEventError(evt.ID, evt.Type,
				fmt.Sprintf("event version mismatch: expected %d, got %d", want, evt.Version))
		}
		if err := evt.Validate(); err != nil {
			return eventing.NewInvalidEventError(evt.ID, evt.Type, err.Error())
		}
		if evt.AggregateID != aggregateID {
			return eventing.NewInvalidEventError(evt.ID, evt.Type, "mixed aggregate ids in append batch")
		}

		metadataJSON := ""
		if len(evt.Metadata) > 0 {
			b, err := json.Marshal(evt.Metadata)
			if err != nil {
				return eventing.NewSerializationError(evt.Type, err)
			}
			metadataJSON = string(b)
		}

		prepared = append(prepared, preparedEvent{
			id:            evt.ID,
			typ:           evt.Type,
			aggregateType: evt.AggregateType,
			version:       evt.Version,
			schemaVersion: evt.GetSchemaVersion(),
			timestamp:     evt.Timestamp.UTC().Format(time.RFC3339Nano),
			payloadJSON:   string(evt.Payload),
			metadataJSON:  metadataJSON,
		})
	}

	// 批量 INSERT：N 次往返降为 1 次
	placeholders := make([]string, len(prepared))
	args := make([]any, 0, len(prepared)*9)
	for i, p := range prepared {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			p.id, p.typ, aggregateID.String(), p.aggregateType,
			p.version, p.schemaVersion, p.timestamp,
			p.payloadJSON, p.metadataJSON,
		)
	}
	batchSQL := fmt.Sprintf(
		"INSERT INTO %s (id, type, aggregate_id, aggregate_type, version, schema_version, timestamp, payload, metadata) VALUES %s",
		s.tableName, strings.Join(placeholders, ","),
	)

	if _, err := tx.Exec(ctx, batchSQL, args...); err != nil {
		if isDuplicateKeyError(err) {
			// 唯一约束兜底：并发写者赢得了竞态，按版本冲突上报
			actual, verr := s.currentVersion(ctx, tx, aggregateID)
			if verr != nil {
				actual = currentVersion
			}
			return eventing.NewConcurrencyError(aggregateID, expectedVersion, actual)
		}
		return eventing.NewStoreFailedError("insert events failed", err)
	}

	if err := tx.Commit(); err != nil {
		return eventing.NewStoreFailedError("commit transaction failed", err)
	}

	logging.ComponentLogger("eventstore.sql").Debug(ctx, "events appended",
		logging.String("aggregate_id", aggregateID.String()),
		logging.Int("event_count", len(events)))
	return nil
}

// querier 事务与连接的最小公共查询接口
type querier interface {
	QueryRow(ctx context.Context, query string, args ...any) database.IRow
}

func (s *SQLEventStore) currentVersion(ctx context.Context, q querier, aggregateID uuid.UUID) (uint64, error) {
	var current uint64
	row := q.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE aggregate_id = ?", s.tableName),
		aggregateID.String())
	if err := row.Scan(&current); err != nil {
		return 0, err
	}
	return current, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}
