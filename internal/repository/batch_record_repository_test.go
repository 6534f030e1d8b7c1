package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merch-batch-api/internal/models"
)

func TestBatchRecordRepositoryCreateBumpsTotal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBatchRecordRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET total_record = total_record + $1")).
		WithArgs(1, "CD-20260102-0001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO batch_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &models.BatchRecord{
		BatchNumber: "CD-20260102-0001",
		RequestType: models.RequestChangeDescription,
		Barcode:     "4800016644290",
		Payload:     types.JSONText(`{"brand":"Acme"}`),
		CreatedBy:   "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRecordRepositoryCreateClosedBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBatchRecordRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET total_record")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.BatchRecord{BatchNumber: "CD-20260102-0001"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRecordRepositoryGetAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBatchRecordRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, batch_number, request_type, barcode")).
		WithArgs("NI-20260102-0001", "rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_number", "request_type", "barcode", "sku", "description", "payload", "image_path", "created_by", "created_at", "updated_at"}).
			AddRow("rec-1", "NI-20260102-0001", "new_item", "4800016644290", "", "Acme Soap", `{"brand":"Acme"}`, nil, "user-1", now, now))

	record, err := repo.GetByID(context.Background(), "NI-20260102-0001", "rec-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"brand":"Acme"}`, string(record.Payload))
	require.Nil(t, record.ImagePath)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM batch_records")).
		WithArgs("NI-20260102-0001", "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET total_record = total_record + $1")).
		WithArgs(-1, "NI-20260102-0001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Delete(context.Background(), "NI-20260102-0001", "rec-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRecordRepositoryFindOpenClaims(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBatchRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.id, r.batch_number, r.request_type")).
		WithArgs("change_price_cost", "4800016644290").
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_number", "request_type"}).
			AddRow("rec-9", "PC-20260101-0003", "change_price_cost"))

	claims, err := repo.FindOpenClaims(context.Background(), models.RequestChangePriceCost, "4800016644290")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.Equal(t, "PC-20260101-0003", claims[0].BatchNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
