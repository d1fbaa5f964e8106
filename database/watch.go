package database

import (
	"bytes"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tevino/abool"

	"github.com/safing/dbdriver/log"
)

// A watch re-evaluates a subscription whenever a commit touches one of its
// paths. Each watch has one goroutine, so evaluations of a watch never run
// concurrently and see commits in order.
type watch struct {
	token Token
	ctrl  *controller
	paths []string

	// evaluate runs the subscription and returns whether it is exhausted.
	evaluate func(forced bool) (exhausted bool)

	// wake coalesces signals. Every evaluation reads the latest state, so
	// coalesced signals are not lost.
	wake   chan struct{}
	forced *abool.AtomicBool
	// deleted is set by a commit that deleted the watched object.
	deleted *abool.AtomicBool

	// deliverLock is held while a callback runs. deliverer is the goroutine
	// running it, so that cancel can tell a callback cancelling its own
	// subscription apart from other goroutines.
	deliverLock sync.Mutex
	deliverer   atomic.Uint64

	stopped  *abool.AtomicBool
	stop     chan struct{}
	stopOnce sync.Once
}

func newWatch(token Token, ctrl *controller, paths []string, evaluate func(forced bool) bool) *watch {
	return &watch{
		token:    token,
		ctrl:     ctrl,
		paths:    paths,
		evaluate: evaluate,
		wake:     make(chan struct{}, 1),
		forced:   abool.NewBool(false),
		deleted:  abool.NewBool(false),
		stopped:  abool.NewBool(false),
		stop:     make(chan struct{}),
	}
}

// start indexes the watch and runs it. Signals received between register
// and start are kept.
func (w *watch) register() {
	w.ctrl.addWatch(w)
}

func (w *watch) start() {
	go w.run()
}

func (w *watch) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// force makes the next evaluation deliver even if nothing changed.
func (w *watch) force() {
	w.forced.Set()
	w.signal()
}

func (w *watch) markDeleted() {
	w.deleted.Set()
}

func (w *watch) run() {
	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
		}
		if w.stopped.IsSet() {
			return
		}

		forced := w.forced.SetToIf(true, false)
		if w.evaluate(forced) {
			log.Tracef("database: subscription %s is exhausted", w.token)
			w.ctrl.removeWatch(w)
			return
		}
	}
}

// deliver runs a subscription callback unless the watch was stopped.
// Panics are logged.
func (w *watch) deliver(callback func()) {
	w.deliverLock.Lock()
	defer w.deliverLock.Unlock()

	if w.stopped.IsSet() {
		return
	}

	w.deliverer.Store(goroutineID())
	defer w.deliverer.Store(0)
	defer func() {
		if x := recover(); x != nil {
			log.Errorf("database: subscription %s callback panicked: %s", w.token, fmt.Sprintf("%v\n%s", x, debug.Stack()))
		}
	}()

	callbacksTotal.Inc()
	callback()
}

// cancel stops the watch and waits for a running callback to return, unless
// cancel is called by that callback.
func (w *watch) cancel() {
	w.stopOnce.Do(func() {
		w.stopped.Set()
		close(w.stop)
		w.ctrl.removeWatch(w)
	})

	if id := w.deliverer.Load(); id != 0 && id == goroutineID() {
		return
	}
	w.deliverLock.Lock()
	w.deliverLock.Unlock() //nolint:staticcheck // Waits for a running callback.
}

// goroutineID returns the ID of the calling goroutine, read from the header
// of its stack trace: "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
