package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/merch-batch-api/internal/models"
)

// ReferenceRepository reads lookup data and item details from the SQL Server
// item master. It never writes.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListUOMs returns buying units with their pack factors.
func (r *ReferenceRepository) ListUOMs(ctx context.Context) ([]models.UOM, error) {
	const query = `SELECT RTRIM(IUNMSR) AS IUNMSR, RTRIM(IUMDSC) AS IUMDSC, IBYFAC FROM INVUMR WHERE IUMSTS = 'A' ORDER BY IUNMSR`
	rows := make([]models.UOM, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list uom: %w", err)
	}
	return rows, nil
}

// ListSellingUOMs returns the units items can be sold in.
func (r *ReferenceRepository) ListSellingUOMs(ctx context.Context) ([]models.SellingUOM, error) {
	const query = `SELECT RTRIM(SUMCOD) AS code, RTRIM(SUMDSC) AS description FROM INVSUM ORDER BY SUMCOD`
	rows := make([]models.SellingUOM, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list selling uom: %w", err)
	}
	return rows, nil
}

// ListDepartments returns merchandise departments.
func (r *ReferenceRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT RTRIM(IDEPT) AS dept, RTRIM(DPTNAM) AS deptnm FROM INVDPT WHERE ISDEPT = 0 ORDER BY IDEPT`
	rows := make([]models.Department, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return rows, nil
}

// ListSubDepartments returns the sub-departments of dept.
func (r *ReferenceRepository) ListSubDepartments(ctx context.Context, dept string) ([]models.SubDepartment, error) {
	const query = `SELECT RTRIM(IDEPT) AS dept, RTRIM(ISDEPT) AS sdept, RTRIM(DPTNAM) AS sdeptnm
	FROM INVDPT WHERE IDEPT = @p1 AND ISDEPT <> 0 ORDER BY ISDEPT`
	rows := make([]models.SubDepartment, 0)
	if err := r.db.SelectContext(ctx, &rows, query, dept); err != nil {
		return nil, fmt.Errorf("list sub departments: %w", err)
	}
	return rows, nil
}

// ListStores returns open stores.
func (r *ReferenceRepository) ListStores(ctx context.Context) ([]models.Store, error) {
	const query = `SELECT RTRIM(STRNUM) AS store_code, RTRIM(STRNAM) AS store_name FROM TBLSTR WHERE STCLOS IS NULL ORDER BY STRNUM`
	rows := make([]models.Store, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return rows, nil
}

// FindStoreCodes returns the subset of codes that exist as open stores.
func (r *ReferenceRepository) FindStoreCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return []string{}, nil
	}
	query, args, err := sqlx.In(`SELECT RTRIM(STRNUM) FROM TBLSTR WHERE STCLOS IS NULL AND STRNUM IN (?)`, codes)
	if err != nil {
		return nil, fmt.Errorf("build store code query: %w", err)
	}
	found := make([]string, 0, len(codes))
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find store codes: %w", err)
	}
	return found, nil
}

// FindItemByBarcode returns the item master view of a barcode.
func (r *ReferenceRepository) FindItemByBarcode(ctx context.Context, barcode string) (*models.ItemMasterItem, error) {
	const query = `SELECT TOP 1 RTRIM(u.IUPC) AS barcode, CAST(m.INUMBR AS VARCHAR(20)) AS sku,
	RTRIM(m.IDESCR) AS description, RTRIM(m.IDEPT) AS dept, RTRIM(d.DPTNAM) AS deptnm,
	RTRIM(m.IBUYUM) AS uom, um.IBYFAC AS standard_pack, m.IRETPR AS current_price, m.IMCOST AS current_cost,
	m.ISTATS AS sku_status,
	(SELECT COUNT(*) FROM INVLOC l WHERE l.INUMBR = m.INUMBR) AS store_count
	FROM INVUPC u
	JOIN INVMST m ON m.INUMBR = u.INUMBR
	LEFT JOIN INVDPT d ON d.IDEPT = m.IDEPT AND d.ISDEPT = 0
	LEFT JOIN INVUMR um ON um.IUNMSR = m.IBUYUM
	WHERE u.IUPC = @p1`
	var item models.ItemMasterItem
	if err := r.db.GetContext(ctx, &item, query, barcode); err != nil {
		return nil, err
	}
	return &item, nil
}
