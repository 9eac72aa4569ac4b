package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"serverguard.keepalive/internal/core/domain"
)

// DefaultLogCapacity is the number of entries kept by the activity log.
const DefaultLogCapacity = 50

// LogListener is notified of every appended entry, in append order.
type LogListener func(domain.SystemLogEntry)

// LogBuffer is an append-only activity log holding at most capacity entries.
// When full, the oldest entries are evicted first.
type LogBuffer struct {
	emitMu sync.Mutex // serializes append+notify so listeners see buffer order
	mu     sync.RWMutex

	capacity  int
	entries   []domain.SystemLogEntry
	listeners []LogListener

	now   func() time.Time
	newID func() string
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{
		capacity: capacity,
		entries:  make([]domain.SystemLogEntry, 0, capacity),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Subscribe registers fn for future appends. It is not called for existing entries.
func (b *LogBuffer) Subscribe(fn LogListener) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Append records message. An empty or unknown kind means info.
func (b *LogBuffer) Append(message string, kind domain.LogKind) domain.SystemLogEntry {
	if !kind.Valid() {
		kind = domain.LogKindInfo
	}

	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	entry := domain.SystemLogEntry{
		ID:        b.newID(),
		Timestamp: b.now(),
		Message:   message,
		Kind:      kind,
	}

	b.mu.Lock()
	if len(b.entries) >= b.capacity {
		drop := len(b.entries) - b.capacity + 1
		// Shift in place so the backing array does not grow without bound.
		n := copy(b.entries, b.entries[drop:])
		b.entries = b.entries[:n]
	}
	b.entries = append(b.entries, entry)
	b.mu.Unlock()

	for _, fn := range b.listeners {
		fn(entry)
	}
	return entry
}

func (b *LogBuffer) Info(message string) domain.SystemLogEntry {
	return b.Append(message, domain.LogKindInfo)
}

func (b *LogBuffer) Success(message string) domain.SystemLogEntry {
	return b.Append(message, domain.LogKindSuccess)
}

func (b *LogBuffer) Warn(message string) domain.SystemLogEntry {
	return b.Append(message, domain.LogKindWarning)
}

// Entries returns a copy of the buffer, oldest first.
func (b *LogBuffer) Entries() []domain.SystemLogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.SystemLogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *LogBuffer) Capacity() int {
	return b.capacity
}
