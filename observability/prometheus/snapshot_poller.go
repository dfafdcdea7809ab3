package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/soracane/fluxion/core"
)

// StoreSnapshotProvider provides current store stats snapshots.
type StoreSnapshotProvider interface {
	Stats() core.StoreStats
}

// RegistrySnapshotProvider provides current registry stats snapshots.
type RegistrySnapshotProvider interface {
	Stats() core.RegistryStats
}

// SnapshotPoller periodically exports store/registry Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	storesMu sync.RWMutex
	stores   map[string]StoreSnapshotProvider

	registriesMu sync.RWMutex
	registries   map[string]RegistrySnapshotProvider

	storeDispatches *prom.GaugeVec
	storeFailures   *prom.GaugeVec
	storeInFlight   *prom.GaugeVec
	storeClosed     *prom.GaugeVec

	registryLive      *prom.GaugeVec
	registryStarted   *prom.GaugeVec
	registryCancelled *prom.GaugeVec
	registryClosed    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	storeDispatches := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "store_dispatches",
		Help:      "Dispatch count snapshot per store.",
	}, []string{"store"})
	storeFailures := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "store_failures",
		Help:      "Failed dispatch count snapshot per store.",
	}, []string{"store"})
	storeInFlight := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "store_in_flight",
		Help:      "Dispatches currently in flight per store.",
	}, []string{"store"})
	storeClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "store_closed",
		Help:      "Store closed state (1=closed, 0=open).",
	}, []string{"store"})

	registryLive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "registry_live_tasks",
		Help:      "Live task count per registry.",
	}, []string{"registry"})
	registryStarted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "registry_started_tasks",
		Help:      "Started task count snapshot per registry.",
	}, []string{"registry"})
	registryCancelled := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "registry_cancelled_tasks",
		Help:      "Cancelled task count snapshot per registry.",
	}, []string{"registry"})
	registryClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "fluxion",
		Name:      "registry_closed",
		Help:      "Registry closed state (1=closed, 0=open).",
	}, []string{"registry"})

	var err error
	if storeDispatches, err = registerCollector(reg, storeDispatches); err != nil {
		return nil, err
	}
	if storeFailures, err = registerCollector(reg, storeFailures); err != nil {
		return nil, err
	}
	if storeInFlight, err = registerCollector(reg, storeInFlight); err != nil {
		return nil, err
	}
	if storeClosed, err = registerCollector(reg, storeClosed); err != nil {
		return nil, err
	}
	if registryLive, err = registerCollector(reg, registryLive); err != nil {
		return nil, err
	}
	if registryStarted, err = registerCollector(reg, registryStarted); err != nil {
		return nil, err
	}
	if registryCancelled, err = registerCollector(reg, registryCancelled); err != nil {
		return nil, err
	}
	if registryClosed, err = registerCollector(reg, registryClosed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:          interval,
		stores:            make(map[string]StoreSnapshotProvider),
		registries:        make(map[string]RegistrySnapshotProvider),
		storeDispatches:   storeDispatches,
		storeFailures:     storeFailures,
		storeInFlight:     storeInFlight,
		storeClosed:       storeClosed,
		registryLive:      registryLive,
		registryStarted:   registryStarted,
		registryCancelled: registryCancelled,
		registryClosed:    registryClosed,
	}, nil
}

// AddStore adds or replaces a store snapshot provider by name.
func (p *SnapshotPoller) AddStore(name string, provider StoreSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "store")
	p.storesMu.Lock()
	p.stores[name] = provider
	p.storesMu.Unlock()
}

// AddRegistry adds or replaces a registry snapshot provider by name.
func (p *SnapshotPoller) AddRegistry(name string, provider RegistrySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "registry")
	p.registriesMu.Lock()
	p.registries[name] = provider
	p.registriesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.storesMu.RLock()
	for name, provider := range p.stores {
		stats := provider.Stats()
		p.storeDispatches.WithLabelValues(name).Set(float64(stats.Dispatches))
		p.storeFailures.WithLabelValues(name).Set(float64(stats.Failures))
		p.storeInFlight.WithLabelValues(name).Set(float64(stats.InFlight))
		if stats.Closed {
			p.storeClosed.WithLabelValues(name).Set(1)
		} else {
			p.storeClosed.WithLabelValues(name).Set(0)
		}
	}
	p.storesMu.RUnlock()

	p.registriesMu.RLock()
	for name, provider := range p.registries {
		stats := provider.Stats()
		p.registryLive.WithLabelValues(name).Set(float64(stats.Live))
		p.registryStarted.WithLabelValues(name).Set(float64(stats.Started))
		p.registryCancelled.WithLabelValues(name).Set(float64(stats.Cancelled))
		if stats.Closed {
			p.registryClosed.WithLabelValues(name).Set(1)
		} else {
			p.registryClosed.WithLabelValues(name).Set(0)
		}
	}
	p.registriesMu.RUnlock()
}
