// Package connectivity tracks whether the task backend is reachable and
// tells subscribers about transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"tasksync/internal/logging"
)

// Probe reports reachability; a nil error means online.
type Probe func(ctx context.Context) error

// Observer exposes a reactive online/offline boolean. The state changes
// either through SetOnline (explicit environment signal) or through the
// periodic probe run by Run.
type Observer struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool

	probe    Probe
	interval time.Duration
	logger   *logging.Logger
}

func NewObserver(initialOnline bool, probe Probe, interval time.Duration, logger *logging.Logger) *Observer {
	if logger == nil {
		logger = logging.New("error")
	}
	return &Observer{
		online:   initialOnline,
		probe:    probe,
		interval: interval,
		logger:   logger.With("connectivity"),
	}
}

func (o *Observer) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// SetOnline records a transition and notifies subscribers. Setting the
// current state again is a no-op.
func (o *Observer) SetOnline(online bool) {
	o.mu.Lock()
	if o.online == online {
		o.mu.Unlock()
		return
	}
	o.online = online
	subs := make([]chan bool, len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	if online {
		o.logger.Infof("connection restored")
	} else {
		o.logger.Warnf("connection lost")
	}
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}

// Subscribe returns a channel that receives the new state on every
// transition. The channel has a one-slot buffer; a slow consumer misses
// intermediate flips but always sees the latest pending state.
func (o *Observer) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	o.mu.Lock()
	o.subs = append(o.subs, ch)
	o.mu.Unlock()
	return ch
}

// Run probes reachability on a fixed interval until the context ends. It is
// a no-op when the observer was built without a probe.
func (o *Observer) Run(ctx context.Context) {
	if o.probe == nil || o.interval <= 0 {
		return
	}
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, o.interval)
			err := o.probe(probeCtx)
			cancel()
			o.SetOnline(err == nil)
		}
	}
}
