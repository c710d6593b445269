package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/repo-outliner/internal/core/outline"
)

// ストリーミング実行で扱うイベント種別
const (
	eventMessageCreated = "thread.message.created"
	eventMessageDelta   = "thread.message.delta"
	eventRunFailed      = "thread.run.failed"
	eventRunExpired     = "thread.run.expired"
	eventError          = "error"
)

// ErrRunFailed は実行がサーバ側で失敗した場合のエラー
var ErrRunFailed = errors.New("run failed")

// CreateThread は空のスレッドを作成する
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// PostMessage はユーザーメッセージをスレッドに投稿する
func (c *Client) PostMessage(ctx context.Context, threadID, content string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	return err
}

// StreamRun はアシスタントを実行し、テキストイベントを到着順に handler へ渡す
// 実行が完了するか失敗するまでブロックする
func (c *Client) StreamRun(ctx context.Context, threadID, assistantID, instructions string, handler outline.RunHandler) error {
	stream := c.client.Beta.Threads.Runs.NewStreaming(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID:  assistantID,
		Instructions: openai.String(instructions),
	})
	defer stream.Close()

	for stream.Next() {
		evt := stream.Current()
		switch evt.Event {
		case eventMessageCreated:
			handler.OnTextCreated()
		case eventMessageDelta:
			delta := evt.AsThreadMessageDelta()
			for _, part := range delta.Data.Delta.Content {
				if part.Type == "text" {
					handler.OnTextDelta(part.Text.Value)
				}
			}
		case eventRunFailed:
			run := evt.AsThreadRunFailed().Data
			return fmt.Errorf("%w: %s", ErrRunFailed, run.LastError.Message)
		case eventRunExpired:
			return fmt.Errorf("%w: run expired", ErrRunFailed)
		case eventError:
			return fmt.Errorf("%w: %s", ErrRunFailed, evt.AsErrorEvent().Data.Message)
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return nil
}

// インターフェース実装の確認
var _ outline.Runtime = (*Client)(nil)
