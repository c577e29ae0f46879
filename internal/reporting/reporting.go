package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pymthouse/gateway/internal/config"
	"github.com/pymthouse/gateway/internal/database"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
	"github.com/pymthouse/gateway/pkg/models"
)

const ingestPath = "/api/v1/metrics/ingest"

// Store is the persistence surface the reporter needs
type Store interface {
	GetSignerConfig(ctx context.Context) (*models.SignerConfig, error)
	GetUsageTotals(ctx context.Context) (*database.UsageTotals, error)
}

// Payload is the usage report posted to the aggregator
type Payload struct {
	EthAddress string         `json:"ethAddress,omitempty"`
	Network    string         `json:"network"`
	Timestamp  time.Time      `json:"timestamp"`
	Metrics    PayloadMetrics `json:"metrics"`
}

// PayloadMetrics carries the platform-wide usage counters
type PayloadMetrics struct {
	ActiveStreams     int    `json:"activeStreams"`
	TotalStreams      int    `json:"totalStreams"`
	TotalPixelsSigned string `json:"totalPixelsSigned"`
	TotalFeeWei       string `json:"totalFeeWei"`
	TotalTransactions int    `json:"totalTransactions"`
	SignerStatus      string `json:"signerStatus"`
}

// Reporter builds usage reports and POSTs them to the external aggregator.
// Reporting is disabled when no aggregator URL or API key is configured.
type Reporter struct {
	store   Store
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logging.Logger
}

// NewReporter creates a usage reporter
func NewReporter(store Store, cfg config.ReportingConfig, logger *logging.Logger) *Reporter {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Reporter{
		store:   store,
		baseURL: cfg.AggregatorURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Enabled reports whether an aggregator endpoint is configured
func (r *Reporter) Enabled() bool {
	return r.baseURL != "" && r.apiKey != ""
}

// Collect builds the current usage report payload
func (r *Reporter) Collect(ctx context.Context) (*Payload, error) {
	signer, err := r.store.GetSignerConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer config: %w", err)
	}

	totals, err := r.store.GetUsageTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect usage totals: %w", err)
	}

	return &Payload{
		EthAddress: signer.EthAddress,
		Network:    signer.Network,
		Timestamp:  time.Now().UTC(),
		Metrics: PayloadMetrics{
			ActiveStreams:     totals.ActiveStreams,
			TotalStreams:      totals.TotalStreams,
			TotalPixelsSigned: totals.TotalPixels.String(),
			TotalFeeWei:       totals.TotalFeeWei.String(),
			TotalTransactions: totals.TotalTransactions,
			SignerStatus:      string(signer.Status),
		},
	}, nil
}

// Report collects and sends one usage report. A disabled reporter is a
// silent no-op so callers need not special-case configuration.
func (r *Reporter) Report(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	payload, err := r.Collect(ctx)
	if err != nil {
		metrics.RecordUsageReport("error")
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal usage report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+ingestPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RecordUsageReport("error")
		return fmt.Errorf("failed to send usage report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordUsageReport("error")
		return fmt.Errorf("aggregator rejected usage report: status %d", resp.StatusCode)
	}

	metrics.RecordUsageReport("success")
	r.logger.WithFields(map[string]interface{}{
		"active_streams": payload.Metrics.ActiveStreams,
		"total_fee_wei":  payload.Metrics.TotalFeeWei,
	}).Info("Usage report sent")

	return nil
}
