package lock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker はPostgreSQLのセッションスコープのアドバイザリロックで排他制御します
// 複数のサーバプロセスが同じリポジトリを同時に構築しないようにする
type AdvisoryLocker struct {
	pool      *pgxpool.Pool
	namespace string
	logger    *slog.Logger
}

var _ Locker = (*AdvisoryLocker)(nil)

// NewAdvisoryLocker は接続プールからロッカーを生成します
func NewAdvisoryLocker(pool *pgxpool.Pool, namespace string, logger *slog.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryLocker{pool: pool, namespace: namespace, logger: logger}
}

// Connect は DATABASE_URL から接続プールを作成します
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 接続テスト
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// lockID は名前空間とキーから pg_advisory_lock 用の64ビットIDを求める
// 区切りに NUL を挟むため ("ab", "c") と ("a", "bc") は別のIDになる
func lockID(namespace, key string) int64 {
	sum := sha256.Sum256([]byte(namespace + "\x00" + key))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Lock はアドバイザリロックを取得します
// ロックはコネクションに紐づくため、解放までコネクションをプールに返さない
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	lockID := lockID(l.namespace, key)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}

	return func() {
		// 呼び出し元のcontextがキャンセル済みでも確実に解放する
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			l.logger.Warn("アドバイザリロックの解放に失敗しました", "key", key, "error", err)
			// 解放できなかったセッションは再利用しない
			_ = conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}, nil
}
