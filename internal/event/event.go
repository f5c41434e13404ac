// Package event handles triggering of operations without direct dependency
package event

import (
	"fmt"
	"os"
	"sync"
)

type EventType int

const (
	NodesCreated EventType = iota
	NodeActivated
	ExpansionStarted
	ExpansionFailed
	NodeBurrowed
	HoleSaved
	HoleRestored
	PhysicsToggled
	ConfigReloaded
)

func (t EventType) String() string {
	switch t {
	case NodesCreated:
		return "nodes-created"
	case NodeActivated:
		return "node-activated"
	case ExpansionStarted:
		return "expansion-started"
	case ExpansionFailed:
		return "expansion-failed"
	case NodeBurrowed:
		return "node-burrowed"
	case HoleSaved:
		return "hole-saved"
	case HoleRestored:
		return "hole-restored"
	case PhysicsToggled:
		return "physics-toggled"
	case ConfigReloaded:
		return "config-reloaded"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event payloads.
type (
	NodesCreatedData struct {
		ParentID int
		IDs      []int
	}
	NodeData struct {
		ID    int
		Label string
	}
	ExpansionFailedData struct {
		ID  int
		Err error
	}
	HoleData struct {
		Key       string
		NodeCount int
	}
)

type Event struct {
	Type EventType
	Data interface{}
}

type EventHandler func(Event)

type EventManager struct {
	subscribers map[EventType][]EventHandler
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

func NewEventManager() *EventManager {
	return &EventManager{
		subscribers: make(map[EventType][]EventHandler),
	}
}

func (em *EventManager) Subscribe(eventType EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.subscribers[eventType] = append(em.subscribers[eventType], handler)
}

// Publish runs every handler for the event on its own goroutine.
func (em *EventManager) Publish(event Event) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	for _, handler := range em.subscribers[event.Type] {
		em.wg.Add(1)
		go func(h EventHandler) {
			defer em.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "Panic in %s event handler: %v\n", event.Type, r)
				}
			}()
			h(event)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (em *EventManager) Wait() {
	em.wg.Wait()
}
