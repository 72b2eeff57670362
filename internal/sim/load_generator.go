package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"greedos/internal/config"
	"greedos/internal/forensic"
	"greedos/internal/logging"
	"greedos/internal/metrics"
)

// WorkerFinishedMessage is logged by every worker that exits normally.
const WorkerFinishedMessage = "One simulation thread has finished."

// WorkerFault describes a worker that terminated on an unexpected failure.
type WorkerFault struct {
	Worker int
	Err    error
}

func (f WorkerFault) Error() string {
	return fmt.Sprintf("worker %d: %v", f.Worker, f.Err)
}

// Report summarizes a finished run.
type Report struct {
	Workers   int
	Completed int
	Faulted   int
	Requests  uint64
	Faults    []WorkerFault
	Elapsed   time.Duration
}

// Degraded reports whether any worker faulted.
func (r Report) Degraded() bool { return r.Faulted > 0 }

// Option configures a LoadGenerator.
type Option func(*LoadGenerator)

// WithJitter sets the per-request pause.
func WithJitter(j Jitter) Option {
	return func(g *LoadGenerator) { g.jitter = j }
}

// WithSeed makes worker i draw its pauses from rand.NewSource(seed+i).
func WithSeed(seed int64) Option {
	return func(g *LoadGenerator) { g.seed = seed }
}

// WithClock sets the clock factory; each worker gets its own instance.
func WithClock(newClock func() Clock) Option {
	return func(g *LoadGenerator) { g.newClock = newClock }
}

// WithRequestHook registers fn to run after each counted request.
func WithRequestHook(fn func(worker int)) Option {
	return func(g *LoadGenerator) { g.onRequest = fn }
}

// WithLogger sets the logger used for run lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(g *LoadGenerator) { g.logger = l }
}

// LoadGenerator runs parallel workers that each count simulated requests on
// a jittered timer. No traffic is sent anywhere.
type LoadGenerator struct {
	cfg       config.RunConfig
	counter   RequestCounter
	events    forensic.Appender
	jitter    Jitter
	seed      int64
	newClock  func() Clock
	onRequest func(worker int)
	logger    *slog.Logger

	running atomic.Bool
	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// NewLoadGenerator creates a generator for cfg that reports worker exits to events.
func NewLoadGenerator(cfg config.RunConfig, events forensic.Appender, opts ...Option) *LoadGenerator {
	g := &LoadGenerator{
		cfg:      cfg,
		events:   events,
		jitter:   DefaultJitter,
		seed:     time.Now().UnixNano(),
		newClock: SystemClock,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.FromContext(context.Background())
	}
	return g
}

// Config returns the run configuration.
func (g *LoadGenerator) Config() config.RunConfig { return g.cfg }

// Counter returns a read-only view of the request counter.
func (g *LoadGenerator) Counter() CounterReader { return &g.counter }

// Requests returns the current request count.
func (g *LoadGenerator) Requests() uint64 { return g.counter.Value() }

// Running reports whether workers are active.
func (g *LoadGenerator) Running() bool { return g.running.Load() }

// Start spawns the configured workers and blocks until all of them have
// terminated. A generator runs once; later calls return an empty report.
func (g *LoadGenerator) Start(ctx context.Context) Report {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return Report{}
	}
	g.started = true
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	stopped := g.stopped
	g.running.Store(!stopped)
	g.mu.Unlock()
	defer cancel()
	if stopped {
		cancel()
	}

	log := g.logger
	log.Info("load generator starting", "target", g.cfg.Target, "workers", g.cfg.Workers, "duration", g.cfg.Duration)
	begin := time.Now()

	results := make([]workerResult, g.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < g.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			results[id] = g.work(runCtx, id)
		}(i)
	}
	wg.Wait()
	g.running.Store(false)

	rep := Report{Workers: g.cfg.Workers, Requests: g.counter.Value(), Elapsed: time.Since(begin)}
	for _, r := range results {
		if r.fault != nil {
			rep.Faulted++
			rep.Faults = append(rep.Faults, *r.fault)
			continue
		}
		rep.Completed++
	}
	if rep.Degraded() {
		log.Warn("load generator finished degraded", "completed", rep.Completed, "faulted", rep.Faulted, "requests", rep.Requests)
	} else {
		log.Info("load generator finished", "completed", rep.Completed, "requests", rep.Requests, "elapsed", rep.Elapsed)
	}
	return rep
}

// Stop asks every worker to finish. It is idempotent and does not wait;
// Start returns once the workers observe the signal.
func (g *LoadGenerator) Stop() {
	g.mu.Lock()
	g.stopped = true
	cancel := g.cancel
	g.mu.Unlock()
	g.running.Store(false)
	if cancel != nil {
		cancel()
	}
}

type workerResult struct {
	requests uint64
	fault    *WorkerFault
}

func (g *LoadGenerator) work(ctx context.Context, id int) (res workerResult) {
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()
	defer func() {
		if r := recover(); r != nil {
			res.fault = &WorkerFault{Worker: id, Err: fmt.Errorf("panic: %v", r)}
			metrics.WorkerFaults.Inc()
			g.logger.Error("load worker failed", "worker", id, "panic", r)
			g.events.Append(forensic.CategorySimulation, fmt.Sprintf("Simulation thread %d failed: %v", id+1, r))
			return
		}
		g.events.Append(forensic.CategorySimulation, WorkerFinishedMessage)
	}()

	clk := g.newClock()
	rng := rand.New(rand.NewSource(g.seed + int64(id)))
	deadline := clk.Now().Add(g.cfg.Duration)
	for g.running.Load() && clk.Now().Before(deadline) {
		if err := clk.Sleep(ctx, g.jitter.Draw(rng)); err != nil {
			return res
		}
		g.counter.Inc()
		res.requests++
		metrics.RequestsSimulated.Inc()
		if g.onRequest != nil {
			g.onRequest(id)
		}
	}
	return res
}
