package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymthouse/gateway/internal/events"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/pricing"
	"github.com/pymthouse/gateway/internal/sessions"
	"github.com/pymthouse/gateway/internal/signer"
	"github.com/pymthouse/gateway/pkg/models"
)

type mockStore struct {
	mu           sync.Mutex
	config       *models.SignerConfig
	configErr    error
	transactions []*models.Transaction
	txnErr       error
}

func (m *mockStore) GetSignerConfig(_ context.Context) (*models.SignerConfig, error) {
	if m.configErr != nil {
		return nil, m.configErr
	}
	return m.config, nil
}

func (m *mockStore) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	if m.txnErr != nil {
		return m.txnErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn.ID = "txn-1"
	m.transactions = append(m.transactions, txn)
	return nil
}

type mockCache struct {
	status models.SignerStatus
}

func (m *mockCache) GetSignerStatus(_ context.Context) (models.SignerStatus, error) {
	return m.status, nil
}

type mockForwarder struct {
	calls  int
	path   string
	body   []byte
	result *signer.ForwardResult
	err    error
}

func (m *mockForwarder) Forward(_ context.Context, path string, body []byte) (*signer.ForwardResult, error) {
	m.calls++
	m.path = path
	m.body = body
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockUsage struct {
	events  []sessions.UsageEvent
	session *models.StreamSession
	err     error
}

func (m *mockUsage) Apply(_ context.Context, event sessions.UsageEvent) (*models.StreamSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.events = append(m.events, event)
	if m.session != nil {
		return m.session, nil
	}
	return &models.StreamSession{ID: "session-1", ManifestID: event.ManifestID}, nil
}

type mockPublisher struct {
	events []*events.PaymentEvent
}

func (m *mockPublisher) PublishPayment(_ context.Context, event *events.PaymentEvent) error {
	m.events = append(m.events, event)
	return nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)
	return logger
}

func runningConfig() *models.SignerConfig {
	return &models.SignerConfig{
		ID:                models.SignerConfigID,
		Status:            models.SignerStatusRunning,
		DefaultCutPercent: 10.0,
	}
}

func gatewayAuth() *models.AuthResult {
	return &models.AuthResult{
		SessionID: "sess-1",
		EndUserID: "eu-1",
		TokenHash: "hash-1",
		Scopes:    models.ParseScopes("gateway"),
	}
}

// priceBody builds a generate-live-payment body with an encoded price of
// pricePerUnit wei per pixelsPerUnit pixels.
func priceBody(t *testing.T, manifestID string, inPixels int64, jobType string, pricePerUnit, pixelsPerUnit int64) []byte {
	t.Helper()
	orch := pricing.EncodeBase64(&pricing.OrchestratorInfo{
		Address:   []byte{0xab, 0xcd},
		PriceInfo: &pricing.PriceInfo{PricePerUnit: pricePerUnit, PixelsPerUnit: pixelsPerUnit},
	})
	body, err := json.Marshal(map[string]any{
		"ManifestID":   manifestID,
		"InPixels":     inPixels,
		"Type":         jobType,
		"Orchestrator": orch,
	})
	require.NoError(t, err)
	return body
}

func TestGenerateLivePaymentMetersAndForwards(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{result: &signer.ForwardResult{StatusCode: 200, Body: []byte(`{"ok":true}`)}}
	usage := &mockUsage{}
	publisher := &mockPublisher{}

	svc := NewService(store, &mockCache{}, forwarder, usage, publisher, testLogger(t))

	body := priceBody(t, "m1", 1_000_000, "", 5, 1_000_000)
	result, err := svc.GenerateLivePayment(context.Background(), body, gatewayAuth())
	require.NoError(t, err)

	assert.Equal(t, 200, result.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(result.Body))
	assert.Equal(t, body, forwarder.body)
	assert.Equal(t, "/generate-live-payment", forwarder.path)

	// Usage folded into the manifest's session
	require.Len(t, usage.events, 1)
	assert.Equal(t, "m1", usage.events[0].ManifestID)
	assert.Equal(t, "eu-1", usage.events[0].EndUserID)
	assert.Equal(t, big.NewInt(1_000_000), usage.events[0].Pixels)
	assert.Equal(t, "5", usage.events[0].FeeWei.String())

	// Confirmed usage transaction with the platform cut
	require.Len(t, store.transactions, 1)
	txn := store.transactions[0]
	assert.Equal(t, models.TransactionTypeUsage, txn.Type)
	assert.Equal(t, models.TransactionStatusConfirmed, txn.Status)
	assert.Equal(t, "5", txn.AmountWei.String())
	assert.Equal(t, "0", txn.PlatformCutWei.String())
	assert.Equal(t, "session-1", txn.StreamSessionID)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "5", publisher.events[0].FeeWei)
	assert.Equal(t, "m1", publisher.events[0].ManifestID)
}

func TestGenerateLivePaymentSignerStopped(t *testing.T) {
	store := &mockStore{config: &models.SignerConfig{Status: models.SignerStatusStopped}}
	forwarder := &mockForwarder{}

	svc := NewService(store, &mockCache{}, forwarder, &mockUsage{}, nil, testLogger(t))

	_, err := svc.GenerateLivePayment(context.Background(), []byte(`{}`), gatewayAuth())
	require.ErrorIs(t, err, models.ErrSignerUnavailable)

	// No outbound I/O when the signer is down
	assert.Zero(t, forwarder.calls)
}

func TestGenerateLivePaymentCachedStoppedSkipsDB(t *testing.T) {
	store := &mockStore{configErr: errors.New("db should not be hit")}
	forwarder := &mockForwarder{}

	svc := NewService(store, &mockCache{status: models.SignerStatusStopped}, forwarder, &mockUsage{}, nil, testLogger(t))

	_, err := svc.GenerateLivePayment(context.Background(), []byte(`{}`), gatewayAuth())
	require.ErrorIs(t, err, models.ErrSignerUnavailable)
	assert.Zero(t, forwarder.calls)
}

func TestGenerateLivePaymentTransportFailure(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{err: errors.New("connection refused")}

	svc := NewService(store, &mockCache{}, forwarder, &mockUsage{}, nil, testLogger(t))

	_, err := svc.GenerateLivePayment(context.Background(), priceBody(t, "m1", 100, "", 1, 1), gatewayAuth())
	require.ErrorIs(t, err, models.ErrSignerUnreachable)
}

func TestGenerateLivePaymentDecodeFailureDegrades(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{result: &signer.ForwardResult{StatusCode: 200, Body: []byte(`{}`)}}
	usage := &mockUsage{}

	svc := NewService(store, &mockCache{}, forwarder, usage, nil, testLogger(t))

	body, err := json.Marshal(map[string]any{
		"ManifestID":   "m1",
		"InPixels":     500,
		"Orchestrator": "!!!not-base64!!!",
	})
	require.NoError(t, err)

	result, err := svc.GenerateLivePayment(context.Background(), body, gatewayAuth())
	require.NoError(t, err)
	assert.Equal(t, 200, result.StatusCode)

	// Zero price, so usage is metered in pixels but no fee and no transaction
	require.Len(t, usage.events, 1)
	assert.Equal(t, "500", usage.events[0].Pixels.String())
	assert.Equal(t, "0", usage.events[0].FeeWei.String())
	assert.Empty(t, store.transactions)
}

func TestGenerateLivePaymentPixelEstimate(t *testing.T) {
	tests := []struct {
		name           string
		inPixels       int64
		jobType        string
		expectedPixels string
	}{
		{
			name:           "Explicit pixel count wins",
			inPixels:       12345,
			jobType:        "lv2v",
			expectedPixels: "12345",
		},
		{
			name:           "Live job type estimates one second",
			inPixels:       0,
			jobType:        "lv2v",
			expectedPixels: "27648000",
		},
		{
			name:           "Unknown job type meters zero",
			inPixels:       0,
			jobType:        "batch",
			expectedPixels: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{config: runningConfig()}
			forwarder := &mockForwarder{result: &signer.ForwardResult{StatusCode: 200, Body: []byte(`{}`)}}
			usage := &mockUsage{}

			svc := NewService(store, &mockCache{}, forwarder, usage, nil, testLogger(t))

			body := priceBody(t, "m1", tt.inPixels, tt.jobType, 0, 1)
			_, err := svc.GenerateLivePayment(context.Background(), body, gatewayAuth())
			require.NoError(t, err)

			require.Len(t, usage.events, 1)
			assert.Equal(t, tt.expectedPixels, usage.events[0].Pixels.String())
		})
	}
}

func TestGenerateLivePaymentNoTransactionOnSignerError(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{result: &signer.ForwardResult{StatusCode: 422, Body: []byte(`{"error":"bad ticket"}`)}}
	usage := &mockUsage{}

	svc := NewService(store, &mockCache{}, forwarder, usage, nil, testLogger(t))

	result, err := svc.GenerateLivePayment(context.Background(), priceBody(t, "m1", 1_000_000, "", 5, 1_000_000), gatewayAuth())
	require.NoError(t, err)

	// Signer response passes through verbatim, but no ledger entry
	assert.Equal(t, 422, result.StatusCode)
	assert.JSONEq(t, `{"error":"bad ticket"}`, string(result.Body))
	assert.Empty(t, store.transactions)
}

func TestGenerateLivePaymentNoManifestSkipsSession(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{result: &signer.ForwardResult{StatusCode: 200, Body: []byte(`{}`)}}
	usage := &mockUsage{}

	svc := NewService(store, &mockCache{}, forwarder, usage, nil, testLogger(t))

	body := priceBody(t, "", 1_000_000, "", 5, 1_000_000)
	_, err := svc.GenerateLivePayment(context.Background(), body, gatewayAuth())
	require.NoError(t, err)

	assert.Empty(t, usage.events)
	// Fee was still positive, so the transaction is recorded without a session
	require.Len(t, store.transactions, 1)
	assert.Empty(t, store.transactions[0].StreamSessionID)
}

func TestSignOrchestratorInfo(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{result: &signer.ForwardResult{StatusCode: 200, Body: []byte(`{"signed":"abc"}`)}}

	svc := NewService(store, &mockCache{}, forwarder, &mockUsage{}, nil, testLogger(t))

	body := []byte(`{"orchestrator":"raw"}`)
	result, err := svc.SignOrchestratorInfo(context.Background(), body, gatewayAuth())
	require.NoError(t, err)

	assert.Equal(t, 200, result.StatusCode)
	assert.JSONEq(t, `{"signed":"abc"}`, string(result.Body))
	assert.Equal(t, "/sign-orchestrator-info", forwarder.path)
	assert.Equal(t, body, forwarder.body)
}

func TestSignOrchestratorInfoSignerStopped(t *testing.T) {
	store := &mockStore{config: &models.SignerConfig{Status: models.SignerStatusStopped}}
	forwarder := &mockForwarder{}

	svc := NewService(store, &mockCache{}, forwarder, &mockUsage{}, nil, testLogger(t))

	_, err := svc.SignOrchestratorInfo(context.Background(), []byte(`{}`), gatewayAuth())
	require.ErrorIs(t, err, models.ErrSignerUnavailable)
	assert.Zero(t, forwarder.calls)
}

func TestSignOrchestratorInfoTransportFailure(t *testing.T) {
	store := &mockStore{config: runningConfig()}
	forwarder := &mockForwarder{err: errors.New("dial tcp: connection refused")}

	svc := NewService(store, &mockCache{}, forwarder, &mockUsage{}, nil, testLogger(t))

	_, err := svc.SignOrchestratorInfo(context.Background(), []byte(`{}`), gatewayAuth())
	require.ErrorIs(t, err, models.ErrSignerUnreachable)
}
