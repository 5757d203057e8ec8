package client

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/edupulse/core/health"
)

const DefaultPollInterval = 30 * time.Second

// DashboardState is the dashboard as last fetched. Loading is only set until the first
// successful load; later refreshes are silent. Err is the last failure, shown as a
// dismissible banner while the last good Dashboard stays on screen.
type DashboardState struct {
	Dashboard health.Dashboard
	Loaded    bool
	Loading   bool
	Err       error
	FetchedAt time.Time
}

type DashboardFetcher func(ctx context.Context) (health.Dashboard, error)

// Poller re-fetches the dashboard every interval and on Refresh. Fetches are not
// cancelled when superseded; their results are discarded on completion.
type Poller struct {
	fetch    DashboardFetcher
	interval time.Duration
	notify   func(DashboardState)
	nowFunc  func() time.Time

	refresh chan struct{}
	wg      sync.WaitGroup

	mu    sync.Mutex
	gen   uint64
	state DashboardState
}

func NewPoller(fetch DashboardFetcher, interval time.Duration, notify func(DashboardState)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if notify == nil {
		notify = func(DashboardState) {}
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		notify:   notify,
		nowFunc:  time.Now,
		refresh:  make(chan struct{}, 1),
	}
}

// Run polls until ctx is done, then waits for the fetches in flight.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.start(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.start(ctx)
		case <-p.refresh:
			p.start(ctx)
		}
	}
}

// Refresh asks Run for an immediate fetch.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Poller) State() DashboardState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) start(ctx context.Context) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	announce := !p.state.Loaded && !p.state.Loading
	if !p.state.Loaded {
		p.state.Loading = true
	}
	st := p.state
	p.mu.Unlock()

	if announce {
		p.notify(st)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		d, err := p.fetch(ctx)
		p.finish(gen, d, err)
	}()
}

func (p *Poller) finish(gen uint64, d health.Dashboard, err error) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.state.Err = err
	} else {
		p.state.Dashboard = d
		p.state.Loaded = true
		p.state.Err = nil
		p.state.FetchedAt = p.nowFunc().UTC()
	}
	p.state.Loading = false
	st := p.state
	p.mu.Unlock()

	p.notify(st)
}
