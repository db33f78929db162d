package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tasksync/internal/logging"
)

func TestSetOnlineNotifiesOnTransitionOnly(t *testing.T) {
	o := NewObserver(false, nil, 0, logging.New("error"))
	ch := o.Subscribe()

	o.SetOnline(false) // no transition
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v", v)
	default:
	}

	o.SetOnline(true)
	select {
	case v := <-ch:
		if !v {
			t.Fatal("expected online=true")
		}
	case <-time.After(time.Second):
		t.Fatal("missing transition notification")
	}
	if !o.Online() {
		t.Fatal("expected online state")
	}

	o.SetOnline(false)
	select {
	case v := <-ch:
		if v {
			t.Fatal("expected online=false")
		}
	case <-time.After(time.Second):
		t.Fatal("missing transition notification")
	}
}

func TestRunProbesAndFlipsState(t *testing.T) {
	var healthy atomic.Bool
	probe := func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("unreachable")
	}
	o := NewObserver(true, probe, 5*time.Millisecond, logging.New("error"))
	ch := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	select {
	case v := <-ch:
		if v {
			t.Fatal("expected offline transition from failing probe")
		}
	case <-time.After(time.Second):
		t.Fatal("probe never flipped state offline")
	}

	healthy.Store(true)
	select {
	case v := <-ch:
		if !v {
			t.Fatal("expected online transition once probe recovers")
		}
	case <-time.After(time.Second):
		t.Fatal("probe never flipped state online")
	}
}
