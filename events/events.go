// Package events provides a small named-signal bus. Hooks register for an
// event name and are called whenever the event is triggered.
package events

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/tevino/abool"

	"github.com/safing/dbdriver/log"
)

// Default is the bus used when no other bus is configured.
var Default = NewBus()

// HookFn is called with the data passed to Trigger.
type HookFn func(data interface{})

// Bus distributes triggered events to registered hooks.
type Bus struct {
	hooks     map[string][]*Hook
	hooksLock sync.RWMutex
}

// Hook is a registered event hook.
type Hook struct {
	bus         *Bus
	event       string
	description string
	fn          HookFn
	canceled    *abool.AtomicBool
}

// NewBus returns a new, empty bus.
func NewBus() *Bus {
	return &Bus{
		hooks: make(map[string][]*Hook),
	}
}

// RegisterHook registers fn to be called whenever event is triggered.
func (b *Bus) RegisterHook(event, description string, fn HookFn) *Hook {
	hook := &Hook{
		bus:         b,
		event:       event,
		description: description,
		fn:          fn,
		canceled:    abool.New(),
	}

	b.hooksLock.Lock()
	defer b.hooksLock.Unlock()
	b.hooks[event] = append(b.hooks[event], hook)

	return hook
}

// Trigger calls all hooks registered for event. Hooks run synchronously, in
// registration order. A panicking hook is logged and does not stop the
// remaining hooks.
func (b *Bus) Trigger(event string, data interface{}) {
	b.hooksLock.RLock()
	hooks := make([]*Hook, len(b.hooks[event]))
	copy(hooks, b.hooks[event])
	b.hooksLock.RUnlock()

	for _, hook := range hooks {
		if hook.canceled.IsSet() {
			continue
		}
		if err := hook.run(data); err != nil {
			log.Warningf("events: failed to execute hook %s/%s: %s", event, hook.description, err)
		}
	}
}

// HookCount returns the amount of active hooks for event.
func (b *Bus) HookCount(event string) int {
	b.hooksLock.RLock()
	defer b.hooksLock.RUnlock()
	return len(b.hooks[event])
}

func (h *Hook) run(data interface{}) (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("panic: %v\n%s", x, debug.Stack())
		}
	}()

	h.fn(data)
	return nil
}

// Cancel unregisters the hook. It is safe to call Cancel multiple times.
func (h *Hook) Cancel() {
	if !h.canceled.SetToIf(false, true) {
		return
	}

	h.bus.hooksLock.Lock()
	defer h.bus.hooksLock.Unlock()

	hooks := h.bus.hooks[h.event]
	for i, hook := range hooks {
		if hook == h {
			hooks = append(hooks[:i:i], hooks[i+1:]...)
			break
		}
	}
	if len(hooks) == 0 {
		delete(h.bus.hooks, h.event)
	} else {
		h.bus.hooks[h.event] = hooks
	}
}

// Description returns the description the hook was registered with.
func (h *Hook) Description() string {
	return h.description
}
