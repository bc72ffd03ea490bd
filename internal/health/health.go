// Package health serves the latest snapshot as a liveness endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vhamers/smile-monitor/internal/poller"
	"github.com/vhamers/smile-monitor/pkg/smile"
)

type Health struct {
	poller.Poller
	logger   *slog.Logger
	snapshot *smile.Snapshot
	lock     sync.RWMutex
}

func New(p poller.Poller, logger *slog.Logger) *Health {
	return &Health{
		Poller: p,
		logger: logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Poller.Subscribe()
	defer h.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot := <-ch:
			h.lock.Lock()
			h.snapshot = snapshot
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if h.snapshot == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		h.Poller.Refresh()
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.snapshot); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
