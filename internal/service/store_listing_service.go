package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/spreadsheet"
)

const storeListingSheet = "Stores"

type storeDirectory interface {
	Stores(ctx context.Context) ([]models.Store, error)
	ValidateStoreCodes(ctx context.Context, codes []string) (*models.StoreCodeValidation, error)
}

// StoreListingService produces the store listing template and reads store
// codes back from uploaded workbooks.
type StoreListingService struct {
	stores storeDirectory
	logger *zap.Logger
}

// NewStoreListingService constructs the service.
func NewStoreListingService(stores storeDirectory, logger *zap.Logger) *StoreListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreListingService{stores: stores, logger: logger}
}

// Template renders a workbook listing every open store. Users delete the
// rows they do not want and upload it back.
func (s *StoreListingService) Template(ctx context.Context) (*dto.ExportFile, error) {
	stores, err := s.stores.Stores(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(stores))
	for _, store := range stores {
		rows = append(rows, []interface{}{store.StoreCode, store.StoreName})
	}
	data, err := spreadsheet.Build(storeListingSheet, []string{"store_code", "store_name"}, rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build store listing template")
	}
	return &dto.ExportFile{Filename: "store_listing_template.xlsx", ContentType: spreadsheet.ContentType, Data: data}, nil
}

// Parse reads store codes from an uploaded workbook and validates them.
func (s *StoreListingService) Parse(ctx context.Context, r io.Reader) (*dto.StoreListingParseResponse, error) {
	codes, err := spreadsheet.ReadColumn(r, "store_code", "store", "code")
	if errors.Is(err, spreadsheet.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the uploaded file has no store codes")
	}
	if err != nil {
		s.logger.Debug("unreadable store listing upload", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the uploaded file is not a readable xlsx workbook")
	}
	result, err := s.stores.ValidateStoreCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	return &dto.StoreListingParseResponse{StoreCodes: codes, Valid: result.Valid, Invalid: result.Invalid}, nil
}

// ValidateCodes checks codes typed or pasted by the user.
func (s *StoreListingService) ValidateCodes(ctx context.Context, codes []string) (*models.StoreCodeValidation, error) {
	return s.stores.ValidateStoreCodes(ctx, codes)
}
