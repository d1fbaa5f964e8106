package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var received []interface{}
	hook := bus.RegisterHook("refresh", "test hook", func(data interface{}) {
		received = append(received, data)
	})
	bus.RegisterHook("other", "unrelated hook", func(data interface{}) {
		t.Error("unrelated hook must not be called")
	})

	bus.Trigger("refresh", 1)
	bus.Trigger("refresh", "two")
	assert.Equal(t, []interface{}{1, "two"}, received)
	assert.Equal(t, 1, bus.HookCount("refresh"))

	hook.Cancel()
	hook.Cancel()
	bus.Trigger("refresh", 3)
	assert.Len(t, received, 2)
	assert.Equal(t, 0, bus.HookCount("refresh"))
	assert.Equal(t, 1, bus.HookCount("other"))
}

func TestPanickingHook(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	calls := 0
	bus.RegisterHook("refresh", "panics", func(interface{}) {
		panic("boom")
	})
	bus.RegisterHook("refresh", "counts", func(interface{}) {
		calls++
	})

	assert.NotPanics(t, func() {
		bus.Trigger("refresh", nil)
	})
	assert.Equal(t, 1, calls)
}
