package repository

import (
	"database/sql"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/nomadsim/esim_api/internal/models"
)

// SettingsRepository is the key-value store backing the pricing
// configuration.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for a key, or sql.ErrNoRows when unset.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	if err := r.db.Get(&value, `SELECT value FROM settings WHERE key = $1`, key); err != nil {
		return "", err
	}
	return value, nil
}

// GetFloat returns a key parsed as float64; def is returned when the key is
// unset or unparseable.
func (r *SettingsRepository) GetFloat(key string, def float64) (float64, error) {
	value, err := r.Get(key)
	if err != nil {
		if err == sql.ErrNoRows {
			return def, nil
		}
		return def, err
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def, nil
	}
	return f, nil
}

// Set upserts a key-value pair.
func (r *SettingsRepository) Set(key, value string) error {
	const q = `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`
	_, err := r.db.Exec(q, key, value)
	return err
}

// List returns all settings rows.
func (r *SettingsRepository) List() ([]models.Setting, error) {
	var settings []models.Setting
	err := r.db.Select(&settings, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	return settings, err
}
