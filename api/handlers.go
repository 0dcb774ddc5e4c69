package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"assetmigration/pkg/checkpoint"
	"assetmigration/pkg/config"
	"assetmigration/pkg/job"
	"assetmigration/pkg/locator"
	"assetmigration/pkg/models"
)

// Controller is the slice of the job controller the HTTP surface drives.
type Controller interface {
	Validate(ctx context.Context, creds models.DestinationCredentials) (bool, error)
	Start(ctx context.Context, creds models.DestinationCredentials, refs []models.AssetRef) (string, error)
	Cancel() error
	Continue(ctx context.Context) (string, error)
	Status() models.MigrationStatus
}

// Server wires the job controller, asset locator and checkpoint store into
// HTTP handlers.
type Server struct {
	controller Controller
	locator    locator.Locator
	store      checkpoint.Store
	cfg        *config.Config
	log        *zap.Logger
}

func NewServer(controller Controller, loc locator.Locator, store checkpoint.Store, cfg *config.Config, log *zap.Logger) *Server {
	return &Server{
		controller: controller,
		locator:    loc,
		store:      store,
		cfg:        cfg,
		log:        log,
	}
}

// CredentialsRequest carries caller-supplied destination credentials.
// Fields left empty fall back to the environment-configured destination.
type CredentialsRequest struct {
	AccountName string `json:"account_name"`
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
}

func (s *Server) credentials(req CredentialsRequest) models.DestinationCredentials {
	creds := s.cfg.Credentials()
	if req.AccountName != "" {
		creds.AccountName = req.AccountName
	}
	if req.APIKey != "" {
		creds.APIKey = req.APIKey
	}
	if req.APISecret != "" {
		creds.APISecret = req.APISecret
	}
	return creds
}

// HealthCheck reports liveness.
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ValidateCredentials checks the destination credentials without starting a
// job.
func (s *Server) ValidateCredentials(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	creds := s.credentials(req)
	valid, err := s.controller.Validate(c.Request.Context(), creds)
	if err != nil {
		s.log.Error("credential validation errored", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.log.Info("credential validation",
		zap.String("account", creds.AccountName),
		zap.String("api_key", config.Mask(creds.APIKey)),
		zap.Bool("valid", valid))
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// StartRequest extends the credential payload with a dry-run switch.
type StartRequest struct {
	CredentialsRequest
	DryRun bool `json:"dry_run"`
}

// StartMigration discovers candidate assets and launches a migration job.
// With dry_run it returns the intended actions and performs no transfers.
func (s *Server) StartMigration(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	refs, err := s.locator.Locate(c.Request.Context())
	if err != nil {
		s.log.Error("asset discovery failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"accepted": false, "reason": err.Error()})
		return
	}

	if req.DryRun {
		c.JSON(http.StatusOK, dryRunPlan(refs))
		return
	}

	creds := s.credentials(req.CredentialsRequest)
	jobID, err := s.controller.Start(c.Request.Context(), creds, refs)
	switch {
	case errors.Is(err, job.ErrJobInProgress):
		c.JSON(http.StatusConflict, gin.H{"accepted": false, "reason": "a migration is already in progress"})
	case errors.Is(err, job.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"accepted": false, "reason": "destination credentials rejected"})
	case err != nil:
		s.log.Error("failed to start migration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"accepted": false, "reason": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"accepted": true, "job_id": jobID, "total": len(refs)})
	}
}

// CancelMigration requests cooperative cancellation of the running job.
func (s *Server) CancelMigration(c *gin.Context) {
	err := s.controller.Cancel()
	switch {
	case errors.Is(err, job.ErrNoActiveJob):
		c.JSON(http.StatusConflict, gin.H{"accepted": false, "reason": "no migration in progress"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"accepted": false, "reason": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"accepted": true})
	}
}

// ContinueMigration re-enters a failed or cancelled job.
func (s *Server) ContinueMigration(c *gin.Context) {
	jobID, err := s.controller.Continue(c.Request.Context())
	switch {
	case errors.Is(err, job.ErrNotResumable):
		c.JSON(http.StatusConflict, gin.H{"accepted": false, "reason": "no interrupted job to continue"})
	case err != nil:
		s.log.Error("failed to continue migration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"accepted": false, "reason": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"accepted": true, "job_id": jobID})
	}
}

// GetProgress returns the live job snapshot.
func (s *Server) GetProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

// GetConfig exposes the migration configuration with the active credentials
// masked and a count of assets still awaiting migration.
func (s *Server) GetConfig(c *gin.Context) {
	creds := s.cfg.Credentials()

	retired := make([]gin.H, 0, len(s.cfg.RetiredAccounts))
	for _, acct := range s.cfg.RetiredAccounts {
		retired = append(retired, gin.H{
			"account_name":        acct.AccountName,
			"retired_at":          acct.RetiredAt,
			"migrated_to_account": acct.MigratedToAccount,
		})
	}

	body := gin.H{
		"active_account_masked": config.Mask(creds.AccountName),
		"api_key_masked":        config.Mask(creds.APIKey),
		"retired_accounts":      retired,
	}

	// The pending count is best effort; when discovery fails the field is
	// left out rather than shipping a sentinel.
	refs, err := s.locator.Locate(c.Request.Context())
	if err != nil {
		s.log.Warn("asset discovery failed while computing pending count", zap.Error(err))
		body["pending_count_unavailable"] = true
	} else {
		body["pending_count"] = s.pendingCount(refs, creds.AccountName)
	}

	c.JSON(http.StatusOK, body)
}

// pendingCount subtracts already-checkpointed assets from the candidate
// list. Undecomposable refs stay pending; they will surface as failures.
func (s *Server) pendingCount(refs []models.AssetRef, account string) int {
	record, err := s.store.Load(account)
	if err != nil || record == nil {
		return len(refs)
	}

	pending := 0
	for _, ref := range refs {
		if ref.PublicID == "" || !record.Has(ref.PublicID) {
			pending++
		}
	}
	return pending
}

func dryRunPlan(refs []models.AssetRef) gin.H {
	actions := make([]gin.H, 0, len(refs))
	for _, ref := range refs {
		if ref.PublicID == "" {
			actions = append(actions, gin.H{"action": "fail", "source_url": ref.SourceURL, "reason": "source URL could not be decomposed"})
			continue
		}
		actions = append(actions, gin.H{
			"action":        "copy",
			"public_id":     ref.PublicID,
			"resource_type": ref.ResourceType,
			"source_url":    ref.SourceURL,
		})
	}
	return gin.H{"dry_run": true, "total": len(refs), "actions": actions}
}
