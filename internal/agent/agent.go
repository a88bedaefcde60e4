package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/tracker"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

type TrackerAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg     *config.BaseServerConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	tracker *tracker.Tracker

	// register fills the service container once the tracker is open.
	register func(t *tracker.Tracker) error
}

func NewAgent(cfg *config.BaseServerConfig) *TrackerAgent {
	ta := &TrackerAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("agent", cfg.Log),
	}
	ta.register = ta.registerServices
	return ta
}

// setupServices opens the tracker and registers its services. A failed
// registration closes the tracker again.
func (ta *TrackerAgent) setupServices(ctx context.Context) error {
	t, err := tracker.Open(ctx, ta.cfg, ta.log.Named("tracker"))
	if err != nil {
		return err
	}

	if err := ta.register(t); err != nil {
		if cerr := t.Close(); cerr != nil {
			ta.log.Warn("Failed to close metadata store: %v", cerr)
		}
		return fmt.Errorf("failed to register services: %w", err)
	}

	ta.tracker = t
	return nil
}

func (ta *TrackerAgent) registerServices(t *tracker.Tracker) error {
	errs := container.Errors{}

	ta.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](ta.sc,
		container.With[log.LoggerService](),
		container.WithInstance(ta.log)))

	ta.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[store.Store](ta.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(t.Store())))

	return errs.Errors()
}

// Serve runs the pipeline every agent.interval until interrupted.
func (ta *TrackerAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	ta.mutex.Lock()

	if err := ta.setupServices(ctx); err != nil {
		ta.mutex.Unlock()
		return err
	}

	ta.mutex.Unlock()

	ta.wait.Add(1)
	go ta.loop(ctx)

	<-ctx.Done()

	timeout, err := time.ParseDuration(ta.cfg.ShutdownTimeout)
	if err != nil {
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// A running pass stops at its next context check; give it until the
	// shutdown timeout.
	stopped := make(chan struct{})
	go func() {
		ta.wait.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdown.Done():
		ta.log.Warn("Pipeline pass did not stop within %s", timeout)
	}

	if err := ta.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	return ta.tracker.Close()
}

func (ta *TrackerAgent) loop(ctx context.Context) {
	defer ta.wait.Done()

	interval := ta.cfg.Agent.IntervalDuration()
	ta.log.Info("Running pipeline every %s", interval)

	if ta.cfg.Agent.RunOnStart {
		ta.runOnce(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ta.runOnce(ctx)
		}
	}
}

func (ta *TrackerAgent) runOnce(ctx context.Context) {
	ta.mutex.RLock()
	defer ta.mutex.RUnlock()

	summary, err := ta.tracker.Run(ctx)
	if err != nil {
		ta.log.Error("Pipeline run failed: %v", err)
		return
	}

	ta.log.Info("Pipeline run complete: %d files reconciled, %d statistics rows at %s",
		summary.Crawl.FilesReconciled, summary.Statistics.RowsWritten,
		summary.Statistics.Timestamp.Format(time.RFC3339))
}
