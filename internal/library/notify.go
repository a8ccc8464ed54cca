package library

import (
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	// LevelWarning marks remote sync trouble. The local change already stands.
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is an advisory message for whoever presents the library.
type Notification struct {
	Level    Level     `json:"level"`
	Op       string    `json:"op"`
	Entity   string    `json:"entity,omitempty"`
	EntityID string    `json:"entity_id,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

type notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Notification)
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]func(Notification))}
}

func (n *notifier) subscribe(fn func(Notification)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) emit(note Notification) {
	n.mu.RLock()
	fns := make([]func(Notification), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(note)
	}
}
