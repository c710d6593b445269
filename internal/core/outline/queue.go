package outline

import (
	"sync"
	"time"
)

// eventQueue は生成側と消費側をつなぐ容量無制限の単一生産者・単一消費者キュー
type eventQueue struct {
	mu     sync.Mutex
	items  []StreamEvent
	done   bool
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

// push はイベントを末尾に追加する
func (q *eventQueue) push(e StreamEvent) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.signal()
}

// finish は生成完了を通知する。以降の push は行わないこと
func (q *eventQueue) finish() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop は先頭のイベントを取り出す
// キューが空の場合は ok=false、さらに生成完了済みなら done=true
func (q *eventQueue) pop() (e StreamEvent, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return StreamEvent{}, false, q.done
	}
	e = q.items[0]
	q.items[0] = StreamEvent{}
	q.items = q.items[1:]
	return e, true, false
}

// wait は新しいイベントか完了通知、または idle の経過まで待つ
func (q *eventQueue) wait(idle time.Duration) {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	select {
	case <-q.notify:
	case <-timer.C:
	}
}
