package mailer

import (
	"context"
	"sync"
)

// Mock records messages instead of sending them.
type Mock struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func (m *Mock) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return m.Err
}

func (m *Mock) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}
