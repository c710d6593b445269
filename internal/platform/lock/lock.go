// Package lock はキー単位の排他制御を提供する
//
// 同じリポジトリ名に対するインデックス構築を直列化するために使う。
// 単一プロセスでは KeyedMutex、複数プロセスで共有する場合は AdvisoryLocker を使う。
package lock

import (
	"context"
	"sync"
)

// Locker はキー単位のロックを取得するインターフェース
// 返される unlock は1回だけ呼ぶこと
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex はプロセス内のキー単位ロック
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // 容量1（送信できた側がロック保持者）
	refs int
}

var _ Locker = (*KeyedMutex)(nil)

// NewKeyedMutex は新しい KeyedMutex を作成します
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock は key のロックを取得するまで待機する
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	s := m.ref(key)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.unref(key, s)
		})
	}, nil
}

func (m *KeyedMutex) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

// unref は待機者がいなくなったキーをマップから取り除く
func (m *KeyedMutex) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Len は保持中または待機中のキー数を返す
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
