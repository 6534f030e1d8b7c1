package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/merch-batch-api/internal/models"
)

const recordColumns = `id, batch_number, request_type, barcode, sku, description, payload, image_path, created_by, created_at, updated_at`

// BatchRecordRepository persists staged records. Every write is conditioned
// on the owning batch being OPEN and keeps batches.total_record in step.
type BatchRecordRepository struct {
	db *sqlx.DB
}

// NewBatchRecordRepository constructs the repository.
func NewBatchRecordRepository(db *sqlx.DB) *BatchRecordRepository {
	return &BatchRecordRepository{db: db}
}

// Create inserts a record and bumps the batch counter. It returns
// sql.ErrNoRows when the batch is missing or no longer open.
func (r *BatchRecordRepository) Create(ctx context.Context, record *models.BatchRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := adjustTotalInTx(ctx, tx, record.BatchNumber, 1); err != nil {
		return err
	}
	const query = `INSERT INTO batch_records (` + recordColumns + `)
	VALUES (:id, :batch_number, :request_type, :barcode, :sku, :description, :payload, :image_path, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert batch record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create record: %w", err)
	}
	return nil
}

// GetByID fetches a record scoped to its batch.
func (r *BatchRecordRepository) GetByID(ctx context.Context, batchNumber, id string) (*models.BatchRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM batch_records WHERE batch_number = $1 AND id = $2`
	var record models.BatchRecord
	if err := r.db.GetContext(ctx, &record, query, batchNumber, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByBatch returns the records of a batch in entry order.
func (r *BatchRecordRepository) ListByBatch(ctx context.Context, batchNumber string) ([]models.BatchRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM batch_records WHERE batch_number = $1 ORDER BY created_at ASC, id ASC`
	records := make([]models.BatchRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, batchNumber); err != nil {
		return nil, fmt.Errorf("list batch records: %w", err)
	}
	return records, nil
}

// Update rewrites the editable columns of a record in an open batch.
func (r *BatchRecordRepository) Update(ctx context.Context, record *models.BatchRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batch_records SET barcode = :barcode, sku = :sku, description = :description,
	payload = :payload, image_path = :image_path, updated_at = :updated_at
	WHERE id = :id AND batch_number = :batch_number
	AND EXISTS (SELECT 1 FROM batches b WHERE b.batch_number = :batch_number AND b.batch_status = 'OPEN')`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("update batch record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check record update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a record from an open batch and decrements the counter.
func (r *BatchRecordRepository) Delete(ctx context.Context, batchNumber, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `DELETE FROM batch_records WHERE batch_number = $1 AND id = $2`, batchNumber, id)
	if err != nil {
		return fmt.Errorf("delete batch record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check record delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	if err := adjustTotalInTx(ctx, tx, batchNumber, -1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete record: %w", err)
	}
	return nil
}

// FindOpenClaims lists the records of OPEN batches of a request type that
// hold barcode.
func (r *BatchRecordRepository) FindOpenClaims(ctx context.Context, requestType models.RequestType, barcode string) ([]models.BarcodeClaim, error) {
	const query = `SELECT r.id, r.batch_number, r.request_type
	FROM batch_records r
	JOIN batches b ON b.batch_number = r.batch_number
	WHERE r.request_type = $1 AND r.barcode = $2 AND b.batch_status = 'OPEN'
	ORDER BY r.created_at ASC`
	claims := make([]models.BarcodeClaim, 0)
	if err := r.db.SelectContext(ctx, &claims, query, requestType, barcode); err != nil {
		return nil, fmt.Errorf("find barcode claims: %w", err)
	}
	return claims, nil
}

func adjustTotalInTx(ctx context.Context, tx *sqlx.Tx, batchNumber string, delta int) error {
	const query = `UPDATE batches SET total_record = total_record + $1 WHERE batch_number = $2 AND batch_status = 'OPEN'`
	result, err := tx.ExecContext(ctx, query, delta, batchNumber)
	if err != nil {
		return fmt.Errorf("adjust batch total: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check batch total rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
