package outline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubRuntime は決められた断片を流して終了するランタイム
type stubRuntime struct {
	mu          sync.Mutex
	created     bool
	threadErr   error
	postErr     error
	fragments   []string
	textCreated bool
	failAfter   error
	block       chan struct{} // 指定時は断片送出後にキャンセルまで待つ
	messages    []string
	instr       string
	cancelled   bool
}

func (r *stubRuntime) CreateThread(ctx context.Context) (string, error) {
	if r.threadErr != nil {
		return "", r.threadErr
	}
	r.created = true
	return "thread_1", nil
}

func (r *stubRuntime) PostMessage(ctx context.Context, threadID, content string) error {
	r.messages = append(r.messages, content)
	return r.postErr
}

func (r *stubRuntime) StreamRun(ctx context.Context, threadID, assistantID, instructions string, h RunHandler) error {
	r.instr = instructions
	if r.textCreated {
		h.OnTextCreated()
	}
	for _, f := range r.fragments {
		h.OnTextDelta(f)
	}
	if r.block != nil {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cancelled = true
			r.mu.Unlock()
			close(r.block)
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return r.failAfter
}

func collect(t *testing.T, s *Session, rt Runtime) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for e := range s.Run(context.Background(), "asst_1", "prompt", "instructions") {
		events = append(events, e)
	}
	return events
}

func encode(t *testing.T, events []StreamEvent) string {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range events {
		require.NoError(t, WriteSSE(&buf, e))
	}
	return buf.String()
}

func TestSession_PreservesFragmentOrder(t *testing.T) {
	rt := &stubRuntime{fragments: []string{"Hello", " world"}}
	s := NewSession(rt, WithSessionLogger(discardLogger()), WithIdleBackoff(time.Millisecond))

	events := collect(t, s, rt)

	assert.Equal(t, "data: {\"content\":\"Hello\"}\n\ndata: {\"content\":\" world\"}\n\n", encode(t, events))
	assert.Equal(t, []string{"prompt"}, rt.messages)
	assert.Equal(t, "instructions", rt.instr)
}

func TestSession_FailureAfterFragmentEmitsSingleError(t *testing.T) {
	rt := &stubRuntime{fragments: []string{"Hello"}, failAfter: errors.New("run failed: server_error")}
	s := NewSession(rt, WithSessionLogger(discardLogger()), WithIdleBackoff(time.Millisecond))

	events := collect(t, s, rt)

	require.Len(t, events, 2)
	assert.Equal(t, ContentEvent("Hello"), events[0])
	assert.True(t, events[1].IsError())
	assert.Equal(t, "data: {\"content\":\"Hello\"}\n\ndata: {\"error\":\"run failed: server_error\"}\n\n", encode(t, events))
}

func TestSession_TextCreatedEmitsNewline(t *testing.T) {
	rt := &stubRuntime{textCreated: true, fragments: []string{"### Title", ""}}
	s := NewSession(rt, WithSessionLogger(discardLogger()), WithIdleBackoff(time.Millisecond))

	events := collect(t, s, rt)

	assert.Equal(t, []StreamEvent{ContentEvent("\n"), ContentEvent("### Title")}, events)
}

func TestSession_ThreadFailure(t *testing.T) {
	rt := &stubRuntime{threadErr: errors.New("401 unauthorized")}
	s := NewSession(rt, WithSessionLogger(discardLogger()))

	events := collect(t, s, rt)

	require.Len(t, events, 1)
	assert.True(t, events[0].IsError())
	assert.Contains(t, events[0].Error, "failed to create thread")
	assert.Empty(t, rt.messages)
}

func TestSession_PostFailure(t *testing.T) {
	rt := &stubRuntime{postErr: errors.New("thread not found")}
	s := NewSession(rt, WithSessionLogger(discardLogger()))

	events := collect(t, s, rt)

	require.Len(t, events, 1)
	assert.Contains(t, events[0].Error, "failed to post message")
}

func TestSession_EarlyStopCancelsRun(t *testing.T) {
	rt := &stubRuntime{fragments: []string{"a", "b", "c"}, block: make(chan struct{})}
	s := NewSession(rt, WithSessionLogger(discardLogger()), WithIdleBackoff(time.Millisecond))

	for e := range s.Run(context.Background(), "asst_1", "prompt", "instructions") {
		assert.Equal(t, "a", e.Content)
		break
	}

	select {
	case <-rt.block:
	case <-time.After(time.Second):
		t.Fatal("実行がキャンセルされませんでした")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.True(t, rt.cancelled)
}

func TestStreamEvent_MarshalJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSSE(&buf, ContentEvent("line \"quoted\"\n")))
	require.NoError(t, WriteSSE(&buf, ErrorEvent("boom")))

	assert.Equal(t, "data: {\"content\":\"line \\\"quoted\\\"\\n\"}\n\ndata: {\"error\":\"boom\"}\n\n", buf.String())
	assert.Equal(t, "content", ContentEvent("").Kind())
	assert.Equal(t, "error", ErrorEvent("").Kind())
}

func TestEventQueue(t *testing.T) {
	q := newEventQueue()

	_, ok, done := q.pop()
	assert.False(t, ok)
	assert.False(t, done)

	q.push(ContentEvent("1"))
	q.push(ContentEvent("2"))
	q.finish()

	e, ok, _ := q.pop()
	require.True(t, ok)
	assert.Equal(t, "1", e.Content)

	e, ok, _ = q.pop()
	require.True(t, ok)
	assert.Equal(t, "2", e.Content)

	_, ok, done = q.pop()
	assert.False(t, ok)
	assert.True(t, done)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "state(42)", State(42).String())
}
