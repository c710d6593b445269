package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
)

// IsTransient はリトライで回復しうるエラーかどうかを判定する
//
// API がステータスを返した場合は 408/409/429/5xx のみをリトライ対象とし、
// それ以外の 4xx は恒久的な失敗とみなす。ステータスを伴わない通信エラーはリトライ対象。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusRequestTimeout,
			code == http.StatusConflict,
			code == http.StatusTooManyRequests,
			code >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	return true
}
