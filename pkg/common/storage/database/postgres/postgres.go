// Package postgres 持久层的PostgreSQL实现
// 连接池使用pgxpool，所有查询都带ctx，错误统一经errs包装上抛
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openimsdk/tools/errs"
)

// NewPool 建立连接池并做一次连通性检查
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.WrapMsg(err, "pgxpool new failed")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "postgres ping failed")
	}
	return pool, nil
}
