// Package outline はアシスタントの実行結果をテキスト断片のストリームとして中継する
package outline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"
)

// DefaultIdleBackoff はキューが空のときに待つ最大時間
const DefaultIdleBackoff = 100 * time.Millisecond

// RunHandler は実行中のテキストイベントを受け取る
// 呼び出しは到着順に行われる
type RunHandler interface {
	OnTextCreated()
	OnTextDelta(text string)
}

// Runtime はアシスタントの会話実行を提供する
// StreamRun は実行が完了または失敗するまでブロックする
type Runtime interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, content string) error
	StreamRun(ctx context.Context, threadID, assistantID, instructions string, handler RunHandler) error
}

// State はセッションの状態
type State int

const (
	StateIdle State = iota
	StateThreadCreated
	StateMessageSubmitted
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThreadCreated:
		return "thread-created"
	case StateMessageSubmitted:
		return "message-submitted"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session はスレッド作成から実行完了までを管理する
type Session struct {
	runtime Runtime
	idle    time.Duration
	logger  *slog.Logger
}

// SessionOption は Session のオプション
type SessionOption func(*Session)

// WithIdleBackoff はキューが空のときの待機時間を設定する
func WithIdleBackoff(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.idle = d
		}
	}
}

// WithSessionLogger はロガーを設定する
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession は新しい Session を作成する
func NewSession(runtime Runtime, opts ...SessionOption) *Session {
	s := &Session{
		runtime: runtime,
		idle:    DefaultIdleBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run はスレッドを作成して prompt を投稿し、instructions 付きで実行した結果を返す
//
// 返されるシーケンスは生成順にテキスト断片を返し、失敗時は最後にエラーイベントを1件だけ返す。
// 消費側が途中でやめた場合は実行をキャンセルする。
func (s *Session) Run(ctx context.Context, assistantID, prompt, instructions string) iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		q := newEventQueue()
		go s.produce(ctx, q, assistantID, prompt, instructions)

		for {
			e, ok, done := q.pop()
			if ok {
				if !yield(e) {
					return
				}
				continue
			}
			if done {
				return
			}
			q.wait(s.idle)
		}
	}
}

// produce は実行を進め、届いたイベントをキューへ流す
func (s *Session) produce(ctx context.Context, q *eventQueue, assistantID, prompt, instructions string) {
	defer q.finish()

	state := StateIdle
	logger := s.logger.With("assistantID", assistantID)
	transition := func(next State) {
		logger.Debug("セッション状態遷移", "from", state, "to", next)
		state = next
	}
	fail := func(err error) {
		transition(StateFailed)
		logger.Warn("アシスタントの実行に失敗しました", "error", err)
		q.push(ErrorEvent(err.Error()))
	}

	threadID, err := s.runtime.CreateThread(ctx)
	if err != nil {
		fail(fmt.Errorf("failed to create thread: %w", err))
		return
	}
	logger = logger.With("threadID", threadID)
	transition(StateThreadCreated)

	if err := s.runtime.PostMessage(ctx, threadID, prompt); err != nil {
		fail(fmt.Errorf("failed to post message: %w", err))
		return
	}
	transition(StateMessageSubmitted)

	transition(StateStreaming)
	if err := s.runtime.StreamRun(ctx, threadID, assistantID, instructions, relay{q: q}); err != nil {
		fail(err)
		return
	}
	transition(StateCompleted)
}

// relay は Runtime のコールバックをキューへのイベントに変換する
type relay struct {
	q *eventQueue
}

func (r relay) OnTextCreated() {
	r.q.push(ContentEvent("\n"))
}

func (r relay) OnTextDelta(text string) {
	if text == "" {
		return
	}
	r.q.push(ContentEvent(text))
}
