package app

import (
	"context"
	"sync"

	"board-vision/internal/domain/entity"
)

// task кадр, отправленный на обработку, с номером запроса.
type task struct {
	id     uint64
	frame  *entity.Frame
	ctx    context.Context
	cancel context.CancelFunc
}

// mailbox одноместный почтовый ящик: новый кадр вытесняет необработанный.
type mailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *task
	closed  bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put кладёт задачу и возвращает вытесненную, если она не была взята в работу.
func (m *mailbox) put(t *task) (dropped *task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return t
	}
	dropped = m.pending
	m.pending = t
	m.cond.Signal()
	return dropped
}

// take блокируется до появления задачи; false означает, что ящик закрыт.
func (m *mailbox) take() (*task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.pending == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil, false
	}
	t := m.pending
	m.pending = nil
	return t, true
}

// close будит ожидающего обработчика; оставшаяся задача возвращается для отмены.
func (m *mailbox) close() *task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	t := m.pending
	m.pending = nil
	m.cond.Broadcast()
	return t
}
