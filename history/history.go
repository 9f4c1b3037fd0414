// Package history is the append-only record of application messages seen on
// the current connection.
package history

import (
	"fmt"
	"sync"

	"github.com/samaelod/fixdesk/types"
)

type Log struct {
	mu   sync.RWMutex
	msgs []types.DecodedMessage
}

func New() *Log {
	return &Log{}
}

// Append keeps arrival order.
func (l *Log) Append(m types.DecodedMessage) {
	l.mu.Lock()
	l.msgs = append(l.msgs, m)
	l.mu.Unlock()
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.msgs = nil
	l.mu.Unlock()
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Get returns the i-th message in arrival order.
func (l *Log) Get(i int) (types.DecodedMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.msgs) {
		return types.DecodedMessage{}, false
	}
	return l.msgs[i], true
}

// Snapshot returns a copy safe to hold while the log keeps growing.
func (l *Log) Snapshot() []types.DecodedMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.DecodedMessage, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *Log) StatusText() string {
	n := l.Len()
	if n == 0 {
		return "No messages received yet"
	}
	return fmt.Sprintf("Total: %d messages", n)
}
