// Package workpool はネットワークI/Oの同時実行数を制限するプリミティブを提供する
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool はI/O呼び出しの同時実行数を上限で抑えるゲート
//
// スロットは Do に渡した関数の実行中だけ保持される。
// 関数内で同じ Pool の Do を呼び出すとデッドロックし得るため、
// 子タスクの起動はスロットの外で行うこと。
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New は同時実行数 size の Pool を作成する（1未満は1として扱う）
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size は同時実行の上限を返す
func (p *Pool) Size() int {
	return p.size
}

// Do はスロットを1つ取得して fn を実行する
// スロット待ち中にcontextがキャンセルされた場合は fn を実行せずにエラーを返す
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	return fn(ctx)
}

// Map は items の各要素に fn を最大 limit 並列で適用し、入力順に結果を返す
// fn はエラーを返さない。失敗の扱い（ログ・スキップ）は呼び出し側が決める
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(limit, len(items))))

	for i, item := range items {
		g.Go(func() error {
			results[i] = fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ForEach は items の各要素に fn を最大 limit 並列で適用する
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T)) {
	Map(ctx, limit, items, func(ctx context.Context, item T) struct{} {
		fn(ctx, item)
		return struct{}{}
	})
}
