// Package ratelimit はアップロード呼び出しの1分あたりの回数を制限する
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jinford/repo-outliner/internal/platform/metrics"
)

// RateLimiter は1分あたりの呼び出し数を制限する
// 最初の perMinute 回は即座に通し、以降は 1分/perMinute ごとに1回補充する
type RateLimiter struct {
	limiter *rate.Limiter
}

// New は新しいRateLimiterを作成する
// perMinute が0以下の場合は制限なし（Wait はキャンセル以外で待たない）
func New(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return &RateLimiter{}
	}
	every := time.Minute / time.Duration(perMinute)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), perMinute)}
}

// Wait は呼び出し枠を1つ取得するまで待機する
// contextがキャンセルされた場合、または期限までに枠が空かない場合はエラーを返す
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.limiter == nil {
		return ctx.Err()
	}

	start := time.Now()
	if err := rl.limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.RecordRateLimitWait(waited)
	}
	return nil
}

// Limited は制限が有効かどうかを返す
func (rl *RateLimiter) Limited() bool {
	return rl.limiter != nil
}
