package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	"github.com/noah-isme/merch-batch-api/pkg/barcode"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

const guardConflictTitle = "Barcode Already Used"

type itemLookup interface {
	FindItemByBarcode(ctx context.Context, barcode string) (*models.ItemMasterItem, error)
}

type batchReader interface {
	GetByNumber(ctx context.Context, batchNumber string) (*models.Batch, error)
}

type claimFinder interface {
	FindOpenClaims(ctx context.Context, requestType models.RequestType, barcode string) ([]models.BarcodeClaim, error)
}

// BarcodeService answers item master lookups and decides whether a barcode
// may be staged in a batch.
type BarcodeService struct {
	items    itemLookup
	batches  batchReader
	claims   claimFinder
	registry *schema.Registry
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewBarcodeService constructs the service. items may be nil when no item
// master is configured.
func NewBarcodeService(items itemLookup, batches batchReader, claims claimFinder, registry *schema.Registry, metrics *MetricsService, logger *zap.Logger) *BarcodeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = schema.NewRegistry(nil)
	}
	return &BarcodeService{items: items, batches: batches, claims: claims, registry: registry, metrics: metrics, logger: logger}
}

// Details looks barcode up in the item master. An unknown barcode is not an
// error: the result carries Status false and a message for the console.
func (s *BarcodeService) Details(ctx context.Context, code, batchNumber string) (*models.BarcodeDetails, error) {
	code = strings.TrimSpace(code)
	if !barcode.IsDigits(code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "barcode must contain digits only")
	}
	details := &models.BarcodeDetails{Barcode: code}
	if s.items == nil {
		details.Message = "item master is not available"
		return details, nil
	}
	item, err := s.items.FindItemByBarcode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		details.Message = fmt.Sprintf("barcode %s was not found", code)
		return details, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up barcode")
	}

	details.Status = true
	details.SKU = item.SKU
	details.Description = item.Description
	details.Dept = item.Dept
	details.DeptName = item.DeptName
	details.UOM = item.UOM
	details.SKUStatus = item.SKUStatus
	details.StoreCount = item.StoreCount
	if item.StandardPack.Valid {
		details.StandardPack = &item.StandardPack.Decimal
	}
	if item.CurrentPrice.Valid {
		details.CurrentPrice = &item.CurrentPrice.Decimal
	}
	if item.CurrentCost.Valid {
		details.CurrentCost = &item.CurrentCost.Decimal
	}

	if batchNumber = strings.TrimSpace(batchNumber); batchNumber != "" {
		batch, err := s.batches.GetByNumber(ctx, batchNumber)
		if err == nil {
			claims, err := s.claims.FindOpenClaims(ctx, batch.RequestType, code)
			if err != nil {
				s.logger.Warn("claim lookup failed", zap.String("barcode", code), zap.Error(err))
			}
			for _, claim := range claims {
				if claim.BatchNumber == batchNumber {
					details.InBatch = true
					break
				}
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("batch lookup failed", zap.String("batch_number", batchNumber), zap.Error(err))
		}
	}
	return details, nil
}

// CheckUsed reports whether code is already staged in an open batch of the
// same request type. requestType falls back to the batch's type and must
// match it when both are known. Request types without the uniqueness rule
// always pass.
func (s *BarcodeService) CheckUsed(ctx context.Context, code, batchNumber string, requestType models.RequestType) (models.GuardResult, error) {
	code = strings.TrimSpace(code)
	if !barcode.IsDigits(code) {
		return models.GuardResult{}, appErrors.Clone(appErrors.ErrValidation, "barcode must contain digits only")
	}
	batchNumber = strings.TrimSpace(batchNumber)
	if batchNumber != "" {
		batch, err := s.batches.GetByNumber(ctx, batchNumber)
		if errors.Is(err, sql.ErrNoRows) {
			return models.GuardResult{}, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		if err != nil {
			return models.GuardResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
		}
		if requestType == "" {
			requestType = batch.RequestType
		} else if requestType != batch.RequestType {
			return models.GuardResult{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("batch %s holds %s records, not %s", batchNumber, batch.RequestType, requestType))
		}
	}
	sch, err := s.registry.Lookup(requestType)
	if err != nil {
		return models.GuardResult{}, err
	}

	result, err := s.check(ctx, sch, code, batchNumber)
	if err != nil {
		s.metrics.RecordGuard(requestType, models.GuardFailure)
		return models.GuardResult{}, err
	}
	s.metrics.RecordGuard(requestType, result.Outcome)
	return result, nil
}

func (s *BarcodeService) check(ctx context.Context, sch *schema.Schema, code, batchNumber string) (models.GuardResult, error) {
	if !sch.UniqueBarcode {
		return models.NewGuardResult(models.GuardOK, "", ""), nil
	}
	claims, err := s.claims.FindOpenClaims(ctx, sch.Type, code)
	if err != nil {
		return models.GuardResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check barcode usage")
	}
	if len(claims) == 0 {
		return models.NewGuardResult(models.GuardOK, "", ""), nil
	}

	claim := claims[0]
	for _, c := range claims {
		if c.BatchNumber == batchNumber {
			claim = c
			break
		}
	}
	message := fmt.Sprintf("Barcode %s is already used in open batch %s.", code, claim.BatchNumber)
	if claim.BatchNumber == batchNumber {
		message = fmt.Sprintf("Barcode %s is already used in this batch.", code)
	}
	result := models.NewGuardResult(models.GuardConflict, guardConflictTitle, message)
	result.ConflictBatch = claim.BatchNumber
	return result, nil
}
