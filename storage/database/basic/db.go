// Package basic 提供基于 database/sql 的最小 IDatabase 实现
//
// 注意：本层不导入任何驱动。sqlite 场景下由应用或测试层显式
// `_ "modernc.org/sqlite"` 注册驱动，basic 层只负责最小抽象。
package basic

import (
	"context"
	"database/sql"

	"wenjuan/storage/database"
)

// DB 基于 database/sql 的最小实现，满足 database.IDatabase 抽象
type DB struct {
	db *sql.DB
}

// New 根据 DBConfig 创建基础数据库实例
func New(config database.DBConfig) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, config.DSN)
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	return &DB{db: db}, nil
}

// Wrap 包装既有 *sql.DB（用于测试共享连接）
func Wrap(db *sql.DB) *DB {
	return &DB{db: db}
}

func (d *DB) Query(ctx context.Context, query string, args ...any) (database.IRows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *DB) QueryRow(ctx context.Context, query string, args ...any) database.IRow {
	return d.db.QueryRowContext(ctx, query, args...)
}

func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d *DB) Begin(ctx context.Context) (database.ITransaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }
func (d *DB) Close() error                   { return d.db.Close() }

// Tx 事务实现
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (database.IRows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) database.IRow {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

var (
	_ database.IDatabase    = (*DB)(nil)
	_ database.ITransaction = (*Tx)(nil)
)
