package database

import (
	"runtime"
	"sync"

	"github.com/gofrs/uuid"
)

// Token identifies a subscription of a Driver. Tokens are random and never
// reused.
type Token uuid.UUID

func newToken() Token {
	return Token(uuid.Must(uuid.NewV4()))
}

func (t Token) String() string {
	return uuid.UUID(t).String()
}

// Listener is the handle of a subscription. Cancel ends the subscription.
// A Listener that becomes unreachable is canceled by the garbage collector,
// but callers should not rely on that and cancel explicitly.
type Listener struct {
	token  Token
	driver *Driver
	once   sync.Once
}

func newListener(d *Driver, token Token) *Listener {
	l := &Listener{
		token:  token,
		driver: d,
	}
	runtime.SetFinalizer(l, (*Listener).Cancel)
	return l
}

// Token returns the token of the subscription.
func (l *Listener) Token() Token {
	return l.token
}

// Cancel unsubscribes. It is safe to call Cancel multiple times.
func (l *Listener) Cancel() {
	l.once.Do(func() {
		runtime.SetFinalizer(l, nil)
		l.driver.Unsubscribe(l.token)
	})
}
