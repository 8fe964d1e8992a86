package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nomadsim/esim_api/internal/models"
)

// PackageRepository persists the normalized catalog snapshot. The snapshot
// exists for the admin surface (browsing, enable/disable overrides) and as
// a record of what was on sale when; the storefront serves from the live
// feed cache, not from here.
type PackageRepository struct {
	db *sqlx.DB
}

// NewPackageRepository creates a new PackageRepository.
func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// Upsert inserts or updates a package by sku. The is_active flag is only
// set on insert so admin overrides survive re-syncs.
func (r *PackageRepository) Upsert(pkg *models.Package) error {
	const q = `
        INSERT INTO packages (sku, title, provider, countries, data_amount_mb, duration_days,
                              sell_price_mnt, currency, is_regional, is_topup, is_active, synced_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        ON CONFLICT (sku) DO UPDATE SET
            title = EXCLUDED.title,
            provider = EXCLUDED.provider,
            countries = EXCLUDED.countries,
            data_amount_mb = EXCLUDED.data_amount_mb,
            duration_days = EXCLUDED.duration_days,
            sell_price_mnt = EXCLUDED.sell_price_mnt,
            currency = EXCLUDED.currency,
            is_regional = EXCLUDED.is_regional,
            is_topup = EXCLUDED.is_topup,
            synced_at = NOW(),
            updated_at = NOW()`

	_, err := r.db.Exec(q,
		pkg.SKU,
		pkg.Title,
		pkg.Provider,
		pkg.Countries,
		pkg.DataAmountMB,
		pkg.DurationDays,
		pkg.SellPriceMNT,
		pkg.Currency,
		pkg.IsRegional,
		pkg.IsTopUp,
		pkg.IsActive,
	)
	return err
}

// GetBySKU returns a single package by sku.
func (r *PackageRepository) GetBySKU(sku string) (*models.Package, error) {
	var p models.Package
	if err := r.db.Get(&p, `SELECT * FROM packages WHERE sku = $1 LIMIT 1`, sku); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &p, nil
}

// DisabledSKUs returns the set of skus an admin has switched off. The
// storefront filters these out of live-feed results.
func (r *PackageRepository) DisabledSKUs() (map[string]bool, error) {
	var skus []string
	if err := r.db.Select(&skus, `SELECT sku FROM packages WHERE is_active = false`); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(skus))
	for _, sku := range skus {
		set[sku] = true
	}
	return set, nil
}

// UpdateStatus sets the active flag of a package.
func (r *PackageRepository) UpdateStatus(sku string, isActive bool) error {
	res, err := r.db.Exec(`UPDATE packages SET is_active = $2, updated_at = NOW() WHERE sku = $1`, sku, isActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdminPackageFilter holds filters for admin snapshot queries.
type AdminPackageFilter struct {
	Country  string
	Provider string
	Search   string
	IsActive *bool
	IsTopUp  *bool
	Page     int
	Limit    int
}

// GetAllAdmin returns snapshot packages for admin with filters and
// pagination (includes inactive).
func (r *PackageRepository) GetAllAdmin(filter *AdminPackageFilter) ([]models.Package, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	offset := (filter.Page - 1) * filter.Limit

	// Build dynamic WHERE clause
	baseWhere := `WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Country != "" {
		baseWhere += fmt.Sprintf(" AND countries ILIKE $%d", argIdx)
		args = append(args, "%"+filter.Country+"%")
		argIdx++
	}
	if filter.Provider != "" {
		baseWhere += fmt.Sprintf(" AND provider ILIKE $%d", argIdx)
		args = append(args, "%"+filter.Provider+"%")
		argIdx++
	}
	if filter.Search != "" {
		baseWhere += fmt.Sprintf(" AND (title ILIKE $%d OR sku ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.IsActive != nil {
		baseWhere += fmt.Sprintf(" AND is_active = $%d", argIdx)
		args = append(args, *filter.IsActive)
		argIdx++
	}
	if filter.IsTopUp != nil {
		baseWhere += fmt.Sprintf(" AND is_topup = $%d", argIdx)
		args = append(args, *filter.IsTopUp)
		argIdx++
	}

	countQuery := `SELECT COUNT(1) FROM packages ` + baseWhere
	var total int
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`SELECT * FROM packages %s ORDER BY provider, sell_price_mnt LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	var packages []models.Package
	if err := r.db.Select(&packages, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return packages, total, nil
}

// PruneStale deactivates snapshot rows not refreshed since the cutoff,
// i.e. packages that fell out of the upstream feed.
func (r *PackageRepository) PruneStale(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`UPDATE packages SET is_active = false, updated_at = NOW() WHERE synced_at < $1 AND is_active = true`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
