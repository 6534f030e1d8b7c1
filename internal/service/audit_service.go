package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

const auditResourceBatch = "batch"

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

// AuditService exposes the trail of a batch.
type AuditService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// BatchHistory lists what happened to a batch and its records, oldest first.
func (s *AuditService) BatchHistory(ctx context.Context, batchNumber string) ([]models.AuditLog, error) {
	logs, err := s.repo.ListByResource(ctx, auditResourceBatch, batchNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch history")
	}
	return logs, nil
}

// emitAudit persists entry on behalf of agent. Failures are logged only.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, agent string, entry *models.AuditLog) {
	if audit == nil || entry == nil {
		return
	}
	entry.IPAddress = "system"
	entry.UserAgent = agent
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to persist audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func auditSnapshot(value interface{}) []byte {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
