package models

import "time"

// PricingConfig is the snapshot of pricing parameters applied by the
// catalog normalizer. It is always passed explicitly; nothing reads
// pricing state ambiently.
type PricingConfig struct {
	USDToMNTRate  float64 `json:"usdToMntRate"`
	MarginPercent float64 `json:"marginPercent"`
}

// Setting is a single key-value configuration row.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Setting keys used by the pricing configuration store.
const (
	SettingUSDToMNTRate  = "usd_to_mnt_rate"
	SettingMarginPercent = "margin_percent"
)
