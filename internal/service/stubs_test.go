package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/repository"
	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
	"github.com/noah-isme/merch-batch-api/pkg/storage"
)

var testNow = time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

func merchandiser() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleMerchandiser}
}

type batchRepoStub struct {
	mu          sync.Mutex
	batches     map[string]*models.Batch
	seq         map[models.RequestType]int
	filter      models.BatchFilter
	transitions []string
	getErr      error
}

func newBatchRepoStub(batches ...models.Batch) *batchRepoStub {
	stub := &batchRepoStub{batches: make(map[string]*models.Batch), seq: make(map[models.RequestType]int)}
	for i := range batches {
		b := batches[i]
		stub.batches[b.BatchNumber] = &b
	}
	return stub
}

func (s *batchRepoStub) Create(ctx context.Context, params repository.CreateBatchParams) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[params.RequestType]++
	batch := &models.Batch{
		BatchNumber: repository.FormatBatchNumber(params.Prefix, params.Now, s.seq[params.RequestType]),
		RequestType: params.RequestType,
		Status:      models.BatchStatusOpen,
		CreatedBy:   params.CreatedBy,
		DateCreated: params.Now,
	}
	s.batches[batch.BatchNumber] = batch
	copy := *batch
	return &copy, nil
}

func (s *batchRepoStub) GetByNumber(ctx context.Context, batchNumber string) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	batch, ok := s.batches[batchNumber]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *batch
	return &copy, nil
}

func (s *batchRepoStub) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	out := make([]models.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		if filter.RequestType != "" && b.RequestType != filter.RequestType {
			continue
		}
		if filter.CreatedBy != "" && b.CreatedBy != filter.CreatedBy {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, st := range filter.Status {
				match = match || b.Status == st
			}
			if !match {
				continue
			}
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchNumber < out[j].BatchNumber })
	total := len(out)
	if filter.PageSize > 0 {
		start := (filter.Page - 1) * filter.PageSize
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (s *batchRepoStub) TransitionStatus(ctx context.Context, batchNumber string, from, to models.BatchStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchNumber]
	if !ok || batch.Status != from {
		return sql.ErrNoRows
	}
	batch.Status = to
	stamp := at
	if to == models.BatchStatusPosted {
		batch.DatePosted = &stamp
	} else {
		batch.DateSubmitted = &stamp
	}
	s.transitions = append(s.transitions, batchNumber+":"+string(to))
	return nil
}

func (s *batchRepoStub) status(batchNumber string) models.BatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[batchNumber].Status
}

type recordRepoStub struct {
	mu        sync.Mutex
	batches   *batchRepoStub
	records   []models.BatchRecord
	createErr error
	creates   int
	lists     int
}

func newRecordRepoStub(batches *batchRepoStub, records ...models.BatchRecord) *recordRepoStub {
	return &recordRepoStub{batches: batches, records: records}
}

func (s *recordRepoStub) open(batchNumber string) bool {
	b, err := s.batches.GetByNumber(context.Background(), batchNumber)
	return err == nil && b.Status == models.BatchStatusOpen
}

func (s *recordRepoStub) Create(ctx context.Context, record *models.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	if !s.open(record.BatchNumber) {
		return sql.ErrNoRows
	}
	record.CreatedAt = testNow
	record.UpdatedAt = testNow
	s.records = append(s.records, *record)
	s.batches.mu.Lock()
	s.batches.batches[record.BatchNumber].TotalRecord++
	s.batches.mu.Unlock()
	return nil
}

func (s *recordRepoStub) GetByID(ctx context.Context, batchNumber, id string) (*models.BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.BatchNumber == batchNumber && r.ID == id {
			copy := r
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *recordRepoStub) ListByBatch(ctx context.Context, batchNumber string) ([]models.BatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := make([]models.BatchRecord, 0)
	for _, r := range s.records {
		if r.BatchNumber == batchNumber {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *recordRepoStub) Update(ctx context.Context, record *models.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open(record.BatchNumber) {
		return sql.ErrNoRows
	}
	for i, r := range s.records {
		if r.BatchNumber == record.BatchNumber && r.ID == record.ID {
			s.records[i] = *record
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *recordRepoStub) Delete(ctx context.Context, batchNumber, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open(batchNumber) {
		return sql.ErrNoRows
	}
	for i, r := range s.records {
		if r.BatchNumber == batchNumber && r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *recordRepoStub) FindOpenClaims(ctx context.Context, requestType models.RequestType, barcode string) ([]models.BarcodeClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := make([]models.BarcodeClaim, 0)
	for _, r := range s.records {
		if r.RequestType == requestType && r.Barcode == barcode && s.open(r.BatchNumber) {
			claims = append(claims, models.BarcodeClaim{RecordID: r.ID, BatchNumber: r.BatchNumber, RequestType: r.RequestType})
		}
	}
	return claims, nil
}

type itemMasterStub struct {
	uoms       []models.UOM
	stores     []models.Store
	items      map[string]*models.ItemMasterItem
	uomCalls   int
	storeCodes []string
}

func (s *itemMasterStub) ListUOMs(ctx context.Context) ([]models.UOM, error) {
	s.uomCalls++
	return s.uoms, nil
}

func (s *itemMasterStub) ListSellingUOMs(ctx context.Context) ([]models.SellingUOM, error) {
	return []models.SellingUOM{{Code: "PC", Description: "Piece"}}, nil
}

func (s *itemMasterStub) ListDepartments(ctx context.Context) ([]models.Department, error) {
	return []models.Department{{Code: "10", Name: "Grocery"}}, nil
}

func (s *itemMasterStub) ListSubDepartments(ctx context.Context, dept string) ([]models.SubDepartment, error) {
	return []models.SubDepartment{{Dept: dept, Code: "1", Name: "Canned"}}, nil
}

func (s *itemMasterStub) ListStores(ctx context.Context) ([]models.Store, error) {
	return s.stores, nil
}

func (s *itemMasterStub) FindStoreCodes(ctx context.Context, codes []string) ([]string, error) {
	s.storeCodes = codes
	known := make(map[string]bool, len(s.stores))
	for _, st := range s.stores {
		known[st.StoreCode] = true
	}
	found := make([]string, 0)
	for _, c := range codes {
		if known[c] {
			found = append(found, c)
		}
	}
	return found, nil
}

func (s *itemMasterStub) FindItemByBarcode(ctx context.Context, barcode string) (*models.ItemMasterItem, error) {
	item, ok := s.items[barcode]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

type auditTrailStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditTrailStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditTrailStub) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditLog, 0)
	for _, l := range a.logs {
		if l.Resource == resource && l.ResourceID != nil && *l.ResourceID == resourceID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (a *auditTrailStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type memoryCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = data
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string][]byte)
	return nil
}

type busyLocker struct {
	err  error
	keys []string
}

func (l *busyLocker) Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error) {
	l.keys = append(l.keys, key)
	if l.err == nil {
		return nil, redislock.ErrNotObtained
	}
	return nil, l.err
}

type countingGuard struct {
	inner barcodeGuard
	calls int
}

func (g *countingGuard) CheckUsed(ctx context.Context, code, batchNumber string, requestType models.RequestType) (models.GuardResult, error) {
	g.calls++
	return g.inner.CheckUsed(ctx, code, batchNumber, requestType)
}

var errBoom = errors.New("boom")
