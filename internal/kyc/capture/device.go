package capture

import (
	"context"
	"sync"
)

// Device is the camera a session captures with.
type Device interface {
	Acquire(ctx context.Context, facing Facing) error
	Release()
}

// Lease is a Device whose camera lives on the client: it only records which
// camera the client is expected to hold. A client that cannot open the camera
// reports it with the CameraFailed event.
type Lease struct {
	mu     sync.Mutex
	facing Facing
	held   bool
}

func NewLease() *Lease {
	return &Lease{}
}

func (l *Lease) Acquire(_ context.Context, facing Facing) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.facing = facing
	l.held = true
	return nil
}

func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
}

// Held reports the camera the client should have open, if any.
func (l *Lease) Held() (Facing, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.facing, l.held
}
