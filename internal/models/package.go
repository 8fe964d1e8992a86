package models

import "time"

// UnlimitedData is the sentinel data amount for unlimited packages.
const UnlimitedData = -1

// Package is a canonical, sellable eSIM package derived from one or more
// raw catalog offers. Identity for deduplication is the tuple
// (sorted countries, DataAmountMB, DurationDays).
type Package struct {
	ID           int       `db:"id" json:"-"`
	SKU          string    `db:"sku" json:"sku"`
	Title        string    `db:"title" json:"title"`
	Provider     string    `db:"provider" json:"provider"`
	Countries    StringSet `db:"countries" json:"countries"`
	DataAmountMB int       `db:"data_amount_mb" json:"dataAmountMb"` // -1 means unlimited
	DurationDays int       `db:"duration_days" json:"durationDays"`
	SellPriceMNT int       `db:"sell_price_mnt" json:"sellPriceMnt"` // always a multiple of 100
	Currency     string    `db:"currency" json:"currency"`           // always "MNT"
	IsRegional   bool      `db:"is_regional" json:"isRegional"`
	IsTopUp      bool      `db:"is_topup" json:"isTopUp"`
	IsActive     bool      `db:"is_active" json:"-"`
	SyncedAt     time.Time `db:"synced_at" json:"-"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// Unlimited reports whether the package has unlimited data.
func (p *Package) Unlimited() bool {
	return p.DataAmountMB == UnlimitedData
}
