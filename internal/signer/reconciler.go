package signer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
	"github.com/pymthouse/gateway/pkg/models"
)

// StatusProber checks whether the signer answers HTTP. An error means "not
// reachable" and is never propagated past the reconciler.
type StatusProber interface {
	Probe(ctx context.Context) (*ProbeResult, error)
}

// Store is the persistence surface the reconciler writes through.
type Store interface {
	GetSignerConfig(ctx context.Context) (*models.SignerConfig, error)
	UpdateSignerObservedState(ctx context.Context, status models.SignerStatus, ethAddress, lastError string) error
}

// StatusCache invalidates or refreshes the cached signer status after a
// reconciliation pass. Nil disables it.
type StatusCache interface {
	SetSignerStatus(ctx context.Context, status models.SignerStatus) error
}

// Outcome summarizes one reconciliation pass.
type Outcome struct {
	Status           models.SignerStatus
	Reachable        bool
	ContainerRunning bool
	EthAddress       string
	LastError        string
	// Applied is false when a newer pass already wrote its result and this
	// one was discarded.
	Applied bool
}

// Reconciler derives one authoritative signer status from the HTTP probe and
// the container observation, writing it to the singleton config row.
type Reconciler struct {
	store     Store
	prober    StatusProber
	inspector ContainerInspector
	cache     StatusCache
	logger    *logging.Logger

	mu              sync.Mutex
	lastAppliedPass time.Time
}

// NewReconciler creates a signer status reconciler
func NewReconciler(store Store, prober StatusProber, inspector ContainerInspector, cache StatusCache, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		prober:    prober,
		inspector: inspector,
		cache:     cache,
		logger:    logger,
	}
}

// Reconcile runs one pass: probe, inspect, derive, persist. Passes that
// started before an already-applied pass are discarded so a slow stale
// observation cannot clobber a fresher one.
func (r *Reconciler) Reconcile(ctx context.Context) (*Outcome, error) {
	started := time.Now()

	prev, err := r.store.GetSignerConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer config: %w", err)
	}

	probe, probeErr := r.prober.Probe(ctx)
	reachable := probeErr == nil

	var container *ContainerState
	if r.inspector != nil {
		container, _ = r.inspector.Inspect(ctx)
	}
	containerRunning := container != nil && container.Running

	outcome := r.derive(prev, probe, reachable, container)
	outcome.Reachable = reachable
	outcome.ContainerRunning = containerRunning

	r.mu.Lock()
	if started.Before(r.lastAppliedPass) || started.Equal(r.lastAppliedPass) {
		r.mu.Unlock()
		outcome.Applied = false
		return outcome, nil
	}
	r.lastAppliedPass = started
	r.mu.Unlock()

	if err := r.store.UpdateSignerObservedState(ctx, outcome.Status, outcome.EthAddress, outcome.LastError); err != nil {
		return nil, err
	}
	outcome.Applied = true

	if r.cache != nil {
		if err := r.cache.SetSignerStatus(ctx, outcome.Status); err != nil {
			r.logger.WithError(err).Warn("Failed to refresh cached signer status")
		}
	}

	metrics.RecordReconciliation(string(outcome.Status), time.Since(started).Seconds())
	r.logger.LogReconciliation(string(outcome.Status), reachable, containerRunning, outcome.LastError)
	return outcome, nil
}

// derive applies the precedence policy over the two observations.
func (r *Reconciler) derive(prev *models.SignerConfig, probe *ProbeResult, reachable bool, container *ContainerState) *Outcome {
	switch {
	case reachable:
		// HTTP answers: authoritative. Persist the reported address and
		// clear any stale error.
		address := prev.EthAddress
		if probe != nil && probe.Address != "" {
			address = probe.Address
		}
		return &Outcome{
			Status:     models.SignerStatusRunning,
			EthAddress: address,
			LastError:  "",
		}

	case container != nil && container.Running:
		// Container up but HTTP not serving yet: starting up, do not
		// downgrade and do not clear an unrelated error.
		return &Outcome{
			Status:     models.SignerStatusRunning,
			EthAddress: prev.EthAddress,
			LastError:  prev.LastError,
		}

	case container != nil:
		// Container observed in a non-running state: extract a reason.
		return &Outcome{
			Status:     models.SignerStatusStopped,
			EthAddress: prev.EthAddress,
			LastError:  extractError(container),
		}

	default:
		// Both observations inconclusive: conservative fallback, keep any
		// more specific previous error.
		return &Outcome{
			Status:     models.SignerStatusStopped,
			EthAddress: prev.EthAddress,
			LastError:  prev.LastError,
		}
	}
}

// extractError picks the most recent diagnostic line mentioning an error,
// falling back to the raw container state.
func extractError(container *ContainerState) string {
	for i := len(container.LogLines) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(container.LogLines[i]), "error") {
			return container.LogLines[i]
		}
	}
	return fmt.Sprintf("container state: %s", container.State)
}

// Run reconciles on a fixed interval until the context ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				r.logger.WithError(err).Error("Signer status reconciliation failed")
			}
		}
	}
}
