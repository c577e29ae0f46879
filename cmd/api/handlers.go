package main

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pymthouse/gateway/internal/auth"
	"github.com/pymthouse/gateway/internal/ledger"
	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/middleware"
	"github.com/pymthouse/gateway/internal/proxy"
	"github.com/pymthouse/gateway/internal/sessions"
	"github.com/pymthouse/gateway/internal/signer"
	"github.com/pymthouse/gateway/pkg/models"
)

// Store is the repository surface the handlers read and write directly
type Store interface {
	Health(ctx context.Context) error
	CreateEndUser(ctx context.Context, user *models.EndUser) error
	GetEndUser(ctx context.Context, id string) (*models.EndUser, error)
	ListEndUsers(ctx context.Context, limit, offset int) ([]*models.EndUser, error)
	UpdateEndUser(ctx context.Context, user *models.EndUser) error
	GetCreditBalance(ctx context.Context, endUserID string) (*big.Int, error)
	ListTokenSessions(ctx context.Context, limit, offset int) ([]*models.TokenSession, error)
	ListTransactions(ctx context.Context, endUserID string, limit, offset int) ([]*models.Transaction, error)
	ListStreamSessions(ctx context.Context, endUserID string, limit, offset int) ([]*models.StreamSession, error)
	GetSignerConfig(ctx context.Context) (*models.SignerConfig, error)
	UpdateSignerConfig(ctx context.Context, cfg *models.SignerConfig) error
}

// ProxyService forwards payment-protocol calls to the signer
type ProxyService interface {
	SignOrchestratorInfo(ctx context.Context, body []byte, auth *models.AuthResult) (*proxy.Result, error)
	GenerateLivePayment(ctx context.Context, body []byte, auth *models.AuthResult) (*proxy.Result, error)
}

// StatusReconciler runs an on-demand signer status reconciliation pass
type StatusReconciler interface {
	Reconcile(ctx context.Context) (*signer.Outcome, error)
}

type API struct {
	repo       Store
	auth       *auth.Service
	ledger     *ledger.Ledger
	sessions   *sessions.Aggregator
	proxy      ProxyService
	reconciler StatusReconciler
	logger     *logging.Logger
}

func abortError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Create end user endpoint
func (api *API) createEndUser(c *gin.Context) {
	var req struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		PrivyDID      string `json:"privy_did"`
		WalletAddress string `json:"wallet_address"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}

	user := &models.EndUser{
		Name:          req.Name,
		Email:         req.Email,
		PrivyDID:      req.PrivyDID,
		WalletAddress: req.WalletAddress,
		CreditBalance: big.NewInt(0),
		IsActive:      true,
	}

	if err := api.repo.CreateEndUser(c.Request.Context(), user); err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to create end user")
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Get end user endpoint
func (api *API) getEndUser(c *gin.Context) {
	user, err := api.repo.GetEndUser(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		abortError(c, http.StatusNotFound, models.CodeInvalidRequest, "End user not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to load end user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// List end users endpoint
func (api *API) listEndUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := api.repo.ListEndUsers(c.Request.Context(), limit, offset)
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to list end users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"end_users": users,
		"limit":     limit,
		"offset":    offset,
	})
}

// Update end user endpoint
func (api *API) updateEndUser(c *gin.Context) {
	user, err := api.repo.GetEndUser(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		abortError(c, http.StatusNotFound, models.CodeInvalidRequest, "End user not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to load end user")
		return
	}

	var req struct {
		Name          *string `json:"name"`
		Email         *string `json:"email"`
		WalletAddress *string `json:"wallet_address"`
		IsActive      *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.WalletAddress != nil {
		user.WalletAddress = *req.WalletAddress
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := api.repo.UpdateEndUser(c.Request.Context(), user); err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to update end user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// Credit top-up endpoint
func (api *API) addCredit(c *gin.Context) {
	var req struct {
		AmountWei string `json:"amount_wei" binding:"required"`
		TxHash    string `json:"tx_hash"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}

	amount, ok := new(big.Int).SetString(req.AmountWei, 10)
	if !ok || amount.Sign() <= 0 {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, "amount_wei must be a positive integer string")
		return
	}

	txn, err := api.ledger.Credit(c.Request.Context(), c.Param("id"), amount, req.TxHash)
	if errors.Is(err, models.ErrNotFound) {
		abortError(c, http.StatusNotFound, models.CodeInvalidRequest, "End user not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to add credit")
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// Deduct credit endpoint. Manual balance adjustment; the metered payment
// path never goes through here.
func (api *API) deductCredit(c *gin.Context) {
	var req struct {
		AmountWei string `json:"amount_wei" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}

	amount, ok := new(big.Int).SetString(req.AmountWei, 10)
	if !ok || amount.Sign() <= 0 {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, "amount_wei must be a positive integer string")
		return
	}

	deducted, err := api.ledger.Deduct(c.Request.Context(), c.Param("id"), amount)
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to deduct credit")
		return
	}
	if !deducted {
		abortError(c, http.StatusBadRequest, models.CodeInsufficientBalance, "Insufficient balance")
		return
	}

	balance, err := api.repo.GetCreditBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to load balance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"end_user_id":        c.Param("id"),
		"credit_balance_wei": balance.String(),
	})
}

// Credit balance endpoint
func (api *API) getCreditBalance(c *gin.Context) {
	balance, err := api.repo.GetCreditBalance(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		abortError(c, http.StatusNotFound, models.CodeInvalidRequest, "End user not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to load balance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"end_user_id":        c.Param("id"),
		"credit_balance_wei": balance.String(),
	})
}

// Issue token endpoint
func (api *API) issueToken(c *gin.Context) {
	var req struct {
		EndUserID string `json:"end_user_id"`
		Label     string `json:"label"`
		Scopes    string `json:"scopes"`
		TTLHours  int    `json:"ttl_hours"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}

	caller, _ := middleware.GetAuthResult(c)

	session, token, err := api.auth.Issue(c.Request.Context(), auth.IssueParams{
		UserID:    caller.UserID,
		EndUserID: req.EndUserID,
		Label:     req.Label,
		Scopes:    req.Scopes,
		TTL:       time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to issue token")
		return
	}

	// The raw token appears in this response and nowhere else.
	c.JSON(http.StatusCreated, gin.H{
		"session": session,
		"token":   token,
	})
}

// List tokens endpoint
func (api *API) listTokens(c *gin.Context) {
	limit, offset := pagination(c)

	tokens, err := api.repo.ListTokenSessions(c.Request.Context(), limit, offset)
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to list tokens")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"limit":  limit,
		"offset": offset,
	})
}

// Revoke token endpoint
func (api *API) revokeToken(c *gin.Context) {
	existed, err := api.auth.Revoke(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to revoke token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": existed})
}

// List transactions endpoint
func (api *API) listTransactions(c *gin.Context) {
	limit, offset := pagination(c)

	txns, err := api.repo.ListTransactions(c.Request.Context(), c.Query("end_user_id"), limit, offset)
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"limit":        limit,
		"offset":       offset,
	})
}

// List stream sessions endpoint
func (api *API) listStreams(c *gin.Context) {
	limit, offset := pagination(c)

	streams, err := api.repo.ListStreamSessions(c.Request.Context(), c.Query("end_user_id"), limit, offset)
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to list streams")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"limit":   limit,
		"offset":  offset,
	})
}

// End stream session endpoint
func (api *API) endStream(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	// Body is optional; default is a clean end.
	_ = c.ShouldBindJSON(&req)

	status := models.StreamStatusEnded
	if req.Status != "" {
		status = models.StreamStatus(req.Status)
	}

	ended, err := api.sessions.End(c.Request.Context(), c.Param("manifest_id"), status)
	if err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}
	if !ended {
		abortError(c, http.StatusNotFound, models.CodeInvalidRequest, "No active session for manifest")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ended": true, "manifest_id": c.Param("manifest_id")})
}

// Get signer config endpoint
func (api *API) getSignerConfig(c *gin.Context) {
	cfg, err := api.repo.GetSignerConfig(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to load signer config")
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// Update signer config endpoint
func (api *API) updateSignerConfig(c *gin.Context) {
	cfg, err := api.repo.GetSignerConfig(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to load signer config")
		return
	}

	var req struct {
		Name              *string  `json:"name"`
		Network           *string  `json:"network"`
		EthRPCURL         *string  `json:"eth_rpc_url"`
		SignerPort        *int     `json:"signer_port"`
		DepositWei        *string  `json:"deposit_wei"`
		ReserveWei        *string  `json:"reserve_wei"`
		DefaultCutPercent *float64 `json:"default_cut_percent"`
		BillingMode       *string  `json:"billing_mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
		return
	}

	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Network != nil {
		cfg.Network = *req.Network
	}
	if req.EthRPCURL != nil {
		cfg.EthRPCURL = *req.EthRPCURL
	}
	if req.SignerPort != nil {
		cfg.SignerPort = *req.SignerPort
	}
	if req.DepositWei != nil {
		deposit, ok := new(big.Int).SetString(*req.DepositWei, 10)
		if !ok {
			abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, "deposit_wei must be an integer string")
			return
		}
		cfg.DepositWei = deposit
	}
	if req.ReserveWei != nil {
		reserve, ok := new(big.Int).SetString(*req.ReserveWei, 10)
		if !ok {
			abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, "reserve_wei must be an integer string")
			return
		}
		cfg.ReserveWei = reserve
	}
	if req.DefaultCutPercent != nil {
		cfg.DefaultCutPercent = *req.DefaultCutPercent
	}
	if req.BillingMode != nil {
		cfg.BillingMode = models.BillingMode(*req.BillingMode)
	}

	if err := api.repo.UpdateSignerConfig(c.Request.Context(), cfg); err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to update signer config")
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// Sync signer status endpoint: runs one reconciliation pass on demand
func (api *API) syncSignerStatus(c *gin.Context) {
	outcome, err := api.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Failed to reconcile signer status")
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// proxyResult writes a proxy outcome, mapping the gate and transport
// failures to their stable categories.
func (api *API) proxyResult(c *gin.Context, result *proxy.Result, err error) {
	switch {
	case errors.Is(err, models.ErrSignerUnavailable):
		abortError(c, http.StatusServiceUnavailable, models.CodeSignerUnavailable, "Signer is not running")
	case errors.Is(err, models.ErrSignerUnreachable):
		abortError(c, http.StatusBadGateway, models.CodeBadGateway, "Failed to reach signer")
	case err != nil:
		abortError(c, http.StatusInternalServerError, models.CodeInternal, "Payment proxy failure")
	default:
		c.Data(result.StatusCode, "application/json", result.Body)
	}
}

// Sign orchestrator info proxy endpoint
func (api *API) signOrchestratorInfo(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, "Failed to read request body")
		return
	}

	caller, _ := middleware.GetAuthResult(c)
	result, err := api.proxy.SignOrchestratorInfo(c.Request.Context(), body, caller)
	api.proxyResult(c, result, err)
}

// Generate live payment proxy endpoint
func (api *API) generateLivePayment(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortError(c, http.StatusBadRequest, models.CodeInvalidRequest, "Failed to read request body")
		return
	}

	caller, _ := middleware.GetAuthResult(c)
	result, err := api.proxy.GenerateLivePayment(c.Request.Context(), body, caller)
	api.proxyResult(c, result, err)
}
