package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogLines      = 1000
	defaultBatchSize     = 10
	defaultFlushInterval = 100 * time.Millisecond
)

// Buffer keeps the last capacity log lines in memory for the log pane and
// mirrors every line to an append-only file. It is a zapcore.WriteSyncer.
type Buffer struct {
	mu       sync.Mutex
	lines    []string
	capacity int
	head     int
	count    int

	filePath string
	file     *os.File
	ch       chan string
	tail     chan string
	closed   bool
	done     chan struct{}
}

// NewBuffer opens filePath for appending; an empty path keeps lines in
// memory only.
func NewBuffer(filePath string, capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultLogLines
	}

	b := &Buffer{
		lines:    make([]string, capacity),
		capacity: capacity,
		filePath: filePath,
		ch:       make(chan string, 100),
		tail:     make(chan string, 100),
		done:     make(chan struct{}),
	}

	if err := b.openFile(); err != nil {
		b.filePath = ""
	}

	go b.writer()

	return b
}

func (b *Buffer) openFile() error {
	if b.filePath == "" {
		return nil
	}

	if dir := filepath.Dir(b.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(b.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	b.file = f
	return nil
}

// Path is the file the buffer mirrors to, or "" when there is none.
func (b *Buffer) Path() string {
	if b == nil || b.file == nil {
		return ""
	}
	return b.filePath
}

// Append stores one line.
func (b *Buffer) Append(line string) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}

	select {
	case b.ch <- line:
	default:
	}
	select {
	case b.tail <- line:
	default:
	}
}

// Write splits p into lines. zap calls it once per entry.
func (b *Buffer) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			b.Append(line)
		}
	}
	return len(p), nil
}

func (b *Buffer) Sync() error {
	return nil
}

func (b *Buffer) ReadAll() string {
	if b == nil {
		return ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return ""
	}

	start := 0
	if b.count >= b.capacity {
		start = b.head
	}

	var result []byte
	for i := 0; i < b.count; i++ {
		idx := (start + i) % b.capacity
		if b.lines[idx] != "" {
			result = append(result, b.lines[idx]...)
			result = append(result, '\n')
		}
	}

	return string(result)
}

// Chan delivers new lines to the UI. Lines are dropped when it is full.
func (b *Buffer) Chan() <-chan string {
	if b == nil {
		return nil
	}
	return b.tail
}

func (b *Buffer) writer() {
	defer close(b.done)

	batch := make([]string, 0, defaultBatchSize)
	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 || b.file == nil {
			batch = batch[:0]
			return
		}
		var sb strings.Builder
		for _, line := range batch {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		b.file.WriteString(sb.String())
		batch = batch[:0]
	}

	for {
		select {
		case line, ok := <-b.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, line)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes pending lines and closes the file.
func (b *Buffer) Close() {
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	<-b.done
	if b.file != nil {
		b.file.Close()
	}
}
