package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/pymthouse/gateway/internal/events"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
	"github.com/pymthouse/gateway/internal/pricing"
	"github.com/pymthouse/gateway/internal/sessions"
	"github.com/pymthouse/gateway/internal/signer"
	"github.com/pymthouse/gateway/pkg/models"
)

const (
	pathSignOrchestratorInfo = "/sign-orchestrator-info"
	pathGenerateLivePayment  = "/generate-live-payment"
)

// ConfigStore is the persistence surface the proxy needs
type ConfigStore interface {
	GetSignerConfig(ctx context.Context) (*models.SignerConfig, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
}

// StatusCache serves the reconciled signer status without a database read.
// An empty status means cache miss.
type StatusCache interface {
	GetSignerStatus(ctx context.Context) (models.SignerStatus, error)
}

// Forwarder sends an opaque request body to a signer endpoint
type Forwarder interface {
	Forward(ctx context.Context, path string, body []byte) (*signer.ForwardResult, error)
}

// UsageApplier folds a usage event into the manifest's stream session
type UsageApplier interface {
	Apply(ctx context.Context, event sessions.UsageEvent) (*models.StreamSession, error)
}

// EventPublisher emits payment events for asynchronous consumers
type EventPublisher interface {
	PublishPayment(ctx context.Context, event *events.PaymentEvent) error
}

// Result carries the signer's response back to the original caller verbatim
type Result struct {
	StatusCode int
	Body       []byte
}

// Service orchestrates inbound payment-protocol calls: gate on signer
// status, meter usage, forward the body unmodified and pass the signer's
// response through untouched.
type Service struct {
	store     ConfigStore
	cache     StatusCache
	forwarder Forwarder
	usage     UsageApplier
	publisher EventPublisher
	logger    *logging.Logger
}

// NewService creates a payment proxy. The publisher may be nil when the
// event bus is not configured.
func NewService(store ConfigStore, cache StatusCache, forwarder Forwarder, usage UsageApplier, publisher EventPublisher, logger *logging.Logger) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		forwarder: forwarder,
		usage:     usage,
		publisher: publisher,
		logger:    logger,
	}
}

// gate loads the signer config and rejects the call before any outbound
// I/O unless the signer is running. The cached status short-circuits the
// stopped case without touching the database.
func (s *Service) gate(ctx context.Context) (*models.SignerConfig, error) {
	if s.cache != nil {
		status, err := s.cache.GetSignerStatus(ctx)
		if err == nil && status != "" {
			metrics.RecordCacheAccess("signer_status", true)
			if status != models.SignerStatusRunning {
				return nil, models.ErrSignerUnavailable
			}
		} else {
			metrics.RecordCacheAccess("signer_status", false)
		}
	}

	cfg, err := s.store.GetSignerConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer config: %w", err)
	}
	if cfg.Status != models.SignerStatusRunning {
		return nil, models.ErrSignerUnavailable
	}
	return cfg, nil
}

// SignOrchestratorInfo forwards a sign-orchestrator-info request opaquely
func (s *Service) SignOrchestratorInfo(ctx context.Context, body []byte, auth *models.AuthResult) (*Result, error) {
	if _, err := s.gate(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	fwd, err := s.forwarder.Forward(ctx, pathSignOrchestratorInfo, body)
	if err != nil {
		s.logger.WithError(err).Error("Failed to forward sign-orchestrator-info")
		metrics.RecordPaymentForwarded("sign-orchestrator-info", "502", time.Since(start).Seconds(), 0)
		return nil, fmt.Errorf("%w: %v", models.ErrSignerUnreachable, err)
	}

	metrics.RecordPaymentForwarded("sign-orchestrator-info", strconv.Itoa(fwd.StatusCode), time.Since(start).Seconds(), 0)

	if fwd.StatusCode >= 200 && fwd.StatusCode < 300 {
		who := auth.EndUserID
		if who == "" {
			who = auth.UserID
		}
		s.logger.WithField("caller", who).Debug("sign-orchestrator-info forwarded")
	}

	return &Result{StatusCode: fwd.StatusCode, Body: fwd.Body}, nil
}

// livePaymentRequest carries the read-only fields the fee computation
// needs; the body itself is forwarded untouched.
type livePaymentRequest struct {
	ManifestID   string `json:"ManifestID"`
	InPixels     int64  `json:"InPixels"`
	Type         string `json:"Type"`
	Orchestrator string `json:"Orchestrator"`
}

// GenerateLivePayment meters and forwards a generate-live-payment request.
// Price decode failures degrade to zero price rather than failing the call.
func (s *Service) GenerateLivePayment(ctx context.Context, body []byte, auth *models.AuthResult) (*Result, error) {
	cfg, err := s.gate(ctx)
	if err != nil {
		return nil, err
	}

	var req livePaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.WithError(err).Warn("Unparseable live payment body, forwarding without metering")
	}

	var pricePerUnit int64
	pixelsPerUnit := int64(1)
	var orchestratorAddress string

	if req.Orchestrator != "" {
		info, err := pricing.DecodeBase64(req.Orchestrator)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to decode orchestrator info")
			metrics.PriceDecodeFailuresTotal.Inc()
		} else {
			if info.PriceInfo != nil {
				pricePerUnit = info.PriceInfo.PricePerUnit
				if info.PriceInfo.PixelsPerUnit > 0 {
					pixelsPerUnit = info.PriceInfo.PixelsPerUnit
				}
			}
			orchestratorAddress = info.AddressHex()
		}
	}

	var pixels *big.Int
	switch {
	case req.InPixels > 0:
		pixels = big.NewInt(req.InPixels)
	case req.Type == pricing.JobTypeLive:
		pixels = pricing.EstimateLivePixels(1)
	default:
		pixels = big.NewInt(0)
	}

	feeWei := pricing.CalculateFee(pixels, pricePerUnit, pixelsPerUnit)
	platformCutWei := pricing.CalculatePlatformCut(feeWei, cfg.DefaultCutPercent)

	var session *models.StreamSession
	if req.ManifestID != "" {
		session, err = s.usage.Apply(ctx, sessions.UsageEvent{
			ManifestID:          req.ManifestID,
			EndUserID:           auth.EndUserID,
			TokenHash:           auth.TokenHash,
			OrchestratorAddress: orchestratorAddress,
			Pixels:              pixels,
			FeeWei:              feeWei,
			PricePerUnit:        pricePerUnit,
			PixelsPerUnit:       pixelsPerUnit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record usage: %w", err)
		}
	}

	start := time.Now()
	fwd, err := s.forwarder.Forward(ctx, pathGenerateLivePayment, body)
	if err != nil {
		s.logger.WithError(err).Error("Failed to forward generate-live-payment")
		metrics.RecordPaymentForwarded("generate-live-payment", "502", time.Since(start).Seconds(), 0)
		return nil, fmt.Errorf("%w: %v", models.ErrSignerUnreachable, err)
	}

	metrics.RecordPaymentForwarded("generate-live-payment", strconv.Itoa(fwd.StatusCode), time.Since(start).Seconds(), pixels.Int64())

	if fwd.StatusCode >= 200 && fwd.StatusCode < 300 && feeWei.Sign() > 0 {
		txn := &models.Transaction{
			EndUserID:          auth.EndUserID,
			Type:               models.TransactionTypeUsage,
			AmountWei:          feeWei,
			PlatformCutPercent: cfg.DefaultCutPercent,
			PlatformCutWei:     platformCutWei,
			Status:             models.TransactionStatusConfirmed,
		}
		if session != nil {
			txn.StreamSessionID = session.ID
		}
		if err := s.store.CreateTransaction(ctx, txn); err != nil {
			// The payment already went through, so the response is still
			// returned; the missing ledger row is logged for follow-up.
			s.logger.WithError(err).WithManifestID(req.ManifestID).Error("Failed to record usage transaction")
			metrics.RecordError("proxy", "transaction_insert")
		} else {
			s.logger.LogPayment(req.ManifestID, auth.EndUserID, feeWei.String(), pixels.String(), fwd.StatusCode)
			s.publishPayment(ctx, txn, req.ManifestID, pixels, orchestratorAddress)
		}
	}

	return &Result{StatusCode: fwd.StatusCode, Body: fwd.Body}, nil
}

func (s *Service) publishPayment(ctx context.Context, txn *models.Transaction, manifestID string, pixels *big.Int, orchestrator string) {
	if s.publisher == nil {
		return
	}

	event := &events.PaymentEvent{
		TransactionID: txn.ID,
		EndUserID:     txn.EndUserID,
		ManifestID:    manifestID,
		Pixels:        pixels.Int64(),
		FeeWei:        txn.AmountWei.String(),
		Orchestrator:  orchestrator,
		CreatedAt:     time.Now().UTC(),
	}
	if txn.PlatformCutWei != nil {
		event.PlatformCut = txn.PlatformCutWei.String()
	}

	if err := s.publisher.PublishPayment(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish payment event")
		metrics.RecordError("proxy", "event_publish")
	}
}
