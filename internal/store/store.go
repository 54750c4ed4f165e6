// 包 store: PostgreSQL 查询统计访问层；高程数据本身不入库，只记录使用量
package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// Store: 统计读写入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Totals: 累计与当日查询量
type Totals struct {
	Total int64
	Today int64
}

// IncrStats: 成功查询后按条数递增总计与当日计数
// 约束：统计失败不影响查询主流程，错误忽略
func (s *Store) IncrStats(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	_, _ = s.db.ExecContext(ctx, "UPDATE _elev_stats_total SET total_queries=total_queries+$1 WHERE id=1", n)
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _elev_stats_daily(day, queries) VALUES(current_date, $1) ON CONFLICT (day) DO UPDATE SET queries=_elev_stats_daily.queries+$1", n)
	return nil
}

// GetTotals: 读取累计与当日查询量
func (s *Store) GetTotals(ctx context.Context) (Totals, error) {
	var t Totals
	_ = s.db.QueryRowContext(ctx, "SELECT total_queries FROM _elev_stats_total WHERE id=1").Scan(&t.Total)
	_ = s.db.QueryRowContext(ctx, "SELECT queries FROM _elev_stats_daily WHERE day=current_date").Scan(&t.Today)
	return t, nil
}
