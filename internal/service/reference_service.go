package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

type referenceStore interface {
	ListUOMs(ctx context.Context) ([]models.UOM, error)
	ListSellingUOMs(ctx context.Context) ([]models.SellingUOM, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	ListSubDepartments(ctx context.Context, dept string) ([]models.SubDepartment, error)
	ListStores(ctx context.Context) ([]models.Store, error)
	FindStoreCodes(ctx context.Context, codes []string) ([]string, error)
}

// ReferenceService serves item master lookups through the cache. With no
// item master configured every list is empty.
type ReferenceService struct {
	repo   referenceStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewReferenceService constructs the service.
func NewReferenceService(repo referenceStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// UOMs lists units of measure.
func (s *ReferenceService) UOMs(ctx context.Context) ([]models.UOM, error) {
	return cachedList(ctx, s, referenceCacheKey("uom"), "units of measure", func(ctx context.Context) ([]models.UOM, error) {
		return s.repo.ListUOMs(ctx)
	})
}

// SellingUOMs lists selling units.
func (s *ReferenceService) SellingUOMs(ctx context.Context) ([]models.SellingUOM, error) {
	return cachedList(ctx, s, referenceCacheKey("selling-uom"), "selling units", func(ctx context.Context) ([]models.SellingUOM, error) {
		return s.repo.ListSellingUOMs(ctx)
	})
}

// Departments lists merchandise departments.
func (s *ReferenceService) Departments(ctx context.Context) ([]models.Department, error) {
	return cachedList(ctx, s, referenceCacheKey("departments"), "departments", func(ctx context.Context) ([]models.Department, error) {
		return s.repo.ListDepartments(ctx)
	})
}

// SubDepartments lists the sub departments of dept.
func (s *ReferenceService) SubDepartments(ctx context.Context, dept string) ([]models.SubDepartment, error) {
	dept = strings.TrimSpace(dept)
	if dept == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}
	return cachedList(ctx, s, referenceCacheKey("sub-departments", dept), "sub departments", func(ctx context.Context) ([]models.SubDepartment, error) {
		return s.repo.ListSubDepartments(ctx, dept)
	})
}

// Stores lists open stores.
func (s *ReferenceService) Stores(ctx context.Context) ([]models.Store, error) {
	return cachedList(ctx, s, referenceCacheKey("stores"), "stores", func(ctx context.Context) ([]models.Store, error) {
		return s.repo.ListStores(ctx)
	})
}

// UOMResolver returns a resolver over the current UOM list. A failed load
// yields an unloaded resolver so derived standard packs stay untouched.
func (s *ReferenceService) UOMResolver(ctx context.Context) *schema.UOMResolver {
	if s == nil || s.repo == nil {
		return nil
	}
	rows, err := s.UOMs(ctx)
	if err != nil {
		s.logger.Warn("uom list unavailable", zap.Error(err))
		return nil
	}
	return schema.NewUOMResolver(rows)
}

// Derive computes the read-only fields of a partially filled form.
func (s *ReferenceService) Derive(ctx context.Context, in schema.DerivedInput) schema.DerivedFields {
	var uoms *schema.UOMResolver
	if strings.TrimSpace(in.UOM) != "" {
		uoms = s.UOMResolver(ctx)
	}
	return schema.Derive(in, uoms)
}

// ValidateStoreCodes splits codes into ones the item master knows and the
// rest. Codes are trimmed and de-duplicated keeping first-seen order.
func (s *ReferenceService) ValidateStoreCodes(ctx context.Context, codes []string) (*models.StoreCodeValidation, error) {
	cleaned := normaliseCodes(codes)
	result := &models.StoreCodeValidation{Valid: []string{}, Invalid: []string{}}
	if len(cleaned) == 0 {
		return result, nil
	}
	if s.repo == nil {
		result.Invalid = cleaned
		return result, nil
	}
	found, err := s.repo.FindStoreCodes(ctx, cleaned)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate store codes")
	}
	known := make(map[string]struct{}, len(found))
	for _, code := range found {
		known[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	for _, code := range cleaned {
		if _, ok := known[strings.ToUpper(code)]; ok {
			result.Valid = append(result.Valid, code)
		} else {
			result.Invalid = append(result.Invalid, code)
		}
	}
	return result, nil
}

func normaliseCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		key := strings.ToUpper(code)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, code)
	}
	return out
}

func cachedList[T any](ctx context.Context, s *ReferenceService, key, what string, load func(context.Context) ([]T, error)) ([]T, error) {
	if s.repo == nil {
		return []T{}, nil
	}
	var cached []T
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	rows, err := load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+what)
	}
	if rows == nil {
		rows = []T{}
	}
	_ = s.cache.Set(ctx, key, rows, s.ttl)
	return rows, nil
}
