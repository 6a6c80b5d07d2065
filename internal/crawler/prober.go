package crawler

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/nao1215/gopherscan/internal/gopher"
	"github.com/nao1215/gopherscan/internal/model"
)

// Prober checks whether external servers answer a root request. Each
// endpoint is probed once; later calls return the remembered status.
type Prober struct {
	fetcher  Fetcher
	logger   *slog.Logger
	registry map[model.ServerKey]model.ServerStatus
}

// NewProber creates a Prober that issues requests through fetcher.
func NewProber(fetcher Fetcher, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		fetcher:  fetcher,
		logger:   logger,
		registry: make(map[model.ServerKey]model.ServerStatus),
	}
}

// Probe returns the status of host:port, fetching its root selector the first
// time the endpoint is seen. There is no retry. A probe cut short by ctx is
// reported down but not remembered.
func (p *Prober) Probe(ctx context.Context, host string, port int) model.ServerStatus {
	key := model.NewServerKey(host, port)
	if status, ok := p.registry[key]; ok {
		return status
	}

	p.logger.Info("checking external server", "server", key.String())

	status := model.StatusUp
	if _, err := p.fetcher.Fetch(ctx, host, port, ""); err != nil {
		if errors.Is(err, gopher.ErrCanceled) {
			return model.StatusDown
		}
		status = model.StatusDown
		p.logger.Warn("external server unreachable", "server", key.String(), "error", err)
	}

	p.registry[key] = status
	p.logger.Info("external server checked", "server", key.String(), "status", string(status))
	return status
}

// Servers returns every probed endpoint sorted by host, then port.
func (p *Prober) Servers() []model.ExternalServer {
	keys := slices.SortedFunc(maps.Keys(p.registry), model.ServerKey.Compare)

	servers := make([]model.ExternalServer, 0, len(keys))
	for _, k := range keys {
		servers = append(servers, model.ExternalServer{ServerKey: k, Status: p.registry[k]})
	}
	return servers
}
