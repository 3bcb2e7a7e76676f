package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBus struct {
	ends   []int
	starts int
	waits  int
	start  chan struct{}
}

func (b *fakeBus) SendEndFile(id int) error {
	b.ends = append(b.ends, id)
	return nil
}

func (b *fakeBus) SendStart() error {
	b.starts++
	return nil
}

func (b *fakeBus) WaitStart(ctx context.Context) error {
	b.waits++
	select {
	case <-b.start:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestBusHook(t *testing.T) {
	t.Run("master sends start", func(t *testing.T) {
		bus := &fakeBus{}
		h := &BusHook{Bus: bus, Master: true, ID: 1}
		if err := h.Synchronize(context.Background()); err != nil {
			t.Fatal(err)
		}
		if bus.starts != 1 || len(bus.ends) != 0 || bus.waits != 0 {
			t.Errorf("bus = %+v", bus)
		}
	})

	t.Run("follower waits for start", func(t *testing.T) {
		bus := &fakeBus{start: make(chan struct{}, 1)}
		bus.start <- struct{}{}
		h := &BusHook{Bus: bus, ID: 3, Timeout: time.Second}
		if err := h.Synchronize(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(bus.ends) != 1 || bus.ends[0] != 3 || bus.waits != 1 {
			t.Errorf("bus = %+v", bus)
		}
	})

	t.Run("follower proceeds on timeout", func(t *testing.T) {
		bus := &fakeBus{start: make(chan struct{})}
		h := &BusHook{Bus: bus, ID: 2, Timeout: 10 * time.Millisecond}
		if err := h.Synchronize(context.Background()); err != nil {
			t.Errorf("Synchronize() = %v, want nil after timeout", err)
		}
	})

	t.Run("id zero does not wait", func(t *testing.T) {
		bus := &fakeBus{}
		h := &BusHook{Bus: bus}
		if err := h.Synchronize(context.Background()); err != nil {
			t.Fatal(err)
		}
		if bus.waits != 0 || len(bus.ends) != 1 {
			t.Errorf("bus = %+v", bus)
		}
	})

	t.Run("zero timeout falls back to default", func(t *testing.T) {
		h := &BusHook{Bus: &fakeBus{}, ID: 2}
		if got := h.timeout(); got != DefaultSyncTimeout {
			t.Errorf("timeout() = %v, want %v", got, DefaultSyncTimeout)
		}
		h.Timeout = -time.Second
		if got := h.timeout(); got != DefaultSyncTimeout {
			t.Errorf("timeout() = %v, want %v", got, DefaultSyncTimeout)
		}
	})

	t.Run("zero timeout ends with the caller", func(t *testing.T) {
		bus := &fakeBus{start: make(chan struct{})}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		h := &BusHook{Bus: bus, ID: 2}
		done := make(chan error, 1)
		go func() { done <- h.Synchronize(ctx) }()
		select {
		case err := <-done:
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Synchronize() = %v, want context.DeadlineExceeded", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Synchronize blocked past the caller's deadline")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		bus := &fakeBus{start: make(chan struct{})}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		h := &BusHook{Bus: bus, ID: 2}
		if err := h.Synchronize(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Synchronize() = %v, want context.Canceled", err)
		}
	})
}

func TestNopHook(t *testing.T) {
	if err := (NopHook{}).Synchronize(context.Background()); err != nil {
		t.Fatal(err)
	}
}
