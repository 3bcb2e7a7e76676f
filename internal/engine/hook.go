package engine

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// SyncHook is invoked once per primary rotation, after the full file was
// closed and before the next one is opened.
type SyncHook interface {
	Synchronize(ctx context.Context) error
}

// DefaultSyncTimeout bounds the wait for the start signal when BusHook has
// no timeout of its own.
const DefaultSyncTimeout = 5 * time.Second

// NopHook does nothing.
type NopHook struct{}

// Synchronize implements SyncHook.
func (NopHook) Synchronize(context.Context) error { return nil }

// BusHook aligns file boundaries of several loggers over a SyncBus. The
// master announces the start of the next file; the others report the end of
// their file and, when they have a positive id, wait for the start signal.
type BusHook struct {
	Bus     ports.SyncBus
	Master  bool
	ID      int
	Timeout time.Duration
	Logger  log.Logger
}

// Synchronize implements SyncHook. A missing start signal is logged and the
// logger proceeds on its own.
func (h *BusHook) Synchronize(ctx context.Context) error {
	logger := h.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if h.Master {
		return h.Bus.SendStart()
	}
	if err := h.Bus.SendEndFile(h.ID); err != nil {
		return err
	}
	if h.ID <= 0 {
		return nil
	}
	timeout := h.timeout()
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := h.Bus.WaitStart(wctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn("no start signal, continuing unsynchronized",
			log.Int("id", h.ID),
			log.Duration("timeout", timeout),
		)
		return nil
	}
	return err
}

func (h *BusHook) timeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultSyncTimeout
	}
	return h.Timeout
}
