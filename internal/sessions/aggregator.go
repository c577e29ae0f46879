package sessions

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/pymthouse/gateway/internal/database"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/pkg/models"
)

// Store is the persistence surface the aggregator needs. All increment
// operations run inside one transaction so the active-session row lock
// serializes concurrent usage for the same manifest.
type Store interface {
	InTx(ctx context.Context, fn func(q database.Querier) error) error
	GetActiveStreamSessionForUpdate(ctx context.Context, q database.Querier, manifestID string) (*models.StreamSession, error)
	InsertStreamSession(ctx context.Context, q database.Querier, session *models.StreamSession) error
	AddStreamSessionUsage(ctx context.Context, q database.Querier, sessionID string, pixels, feeWei *big.Int) error
	EndActiveStreamSession(ctx context.Context, manifestID string, status models.StreamStatus) (bool, error)
}

// UsageEvent is one usage increment to fold into a manifest's session.
type UsageEvent struct {
	ManifestID          string
	EndUserID           string
	TokenHash           string
	OrchestratorAddress string
	Pixels              *big.Int
	FeeWei              *big.Int
	PricePerUnit        int64
	PixelsPerUnit       int64
}

// Aggregator folds usage increments into per-manifest stream sessions.
type Aggregator struct {
	store  Store
	logger *logging.Logger
}

// NewAggregator creates a usage aggregator
func NewAggregator(store Store, logger *logging.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// Apply folds one usage event into the active session for its manifest,
// creating the session on first use. Totals only ever increase. Returns the
// session the event landed in.
func (a *Aggregator) Apply(ctx context.Context, event UsageEvent) (*models.StreamSession, error) {
	if event.ManifestID == "" {
		return nil, fmt.Errorf("usage event requires a manifest ID")
	}
	if event.Pixels == nil {
		event.Pixels = big.NewInt(0)
	}
	if event.FeeWei == nil {
		event.FeeWei = big.NewInt(0)
	}

	var session *models.StreamSession
	err := a.store.InTx(ctx, func(q database.Querier) error {
		existing, err := a.store.GetActiveStreamSessionForUpdate(ctx, q, event.ManifestID)
		if errors.Is(err, models.ErrNotFound) {
			session = &models.StreamSession{
				EndUserID:           event.EndUserID,
				BearerTokenHash:     event.TokenHash,
				ManifestID:          event.ManifestID,
				OrchestratorAddress: event.OrchestratorAddress,
				TotalPixels:         new(big.Int).Set(event.Pixels),
				TotalFeeWei:         new(big.Int).Set(event.FeeWei),
				PricePerUnit:        event.PricePerUnit,
				PixelsPerUnit:       event.PixelsPerUnit,
				Status:              models.StreamStatusActive,
			}
			if err := a.store.InsertStreamSession(ctx, q, session); err != nil {
				return err
			}
			a.logger.WithManifestID(event.ManifestID).Info("Started stream session")
			return nil
		}
		if err != nil {
			return err
		}

		// Snapshot the resulting totals before the write so the returned
		// session is correct even when the store hands back its own object.
		totalPixels := new(big.Int).Add(existing.TotalPixels, event.Pixels)
		totalFeeWei := new(big.Int).Add(existing.TotalFeeWei, event.FeeWei)

		if err := a.store.AddStreamSessionUsage(ctx, q, existing.ID, event.Pixels, event.FeeWei); err != nil {
			return err
		}

		updated := *existing
		updated.TotalPixels = totalPixels
		updated.TotalFeeWei = totalFeeWei
		session = &updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply usage event: %w", err)
	}

	return session, nil
}

// End closes the active session for a manifest with a terminal status.
// Driven externally by the stream-close signal, never by the increment path.
// Returns whether an active session existed.
func (a *Aggregator) End(ctx context.Context, manifestID string, status models.StreamStatus) (bool, error) {
	if status != models.StreamStatusEnded && status != models.StreamStatusError {
		return false, fmt.Errorf("invalid terminal status %q", status)
	}

	ended, err := a.store.EndActiveStreamSession(ctx, manifestID, status)
	if err != nil {
		return false, err
	}
	if ended {
		a.logger.WithManifestID(manifestID).Infof("Ended stream session with status %s", status)
	}
	return ended, nil
}
