package service

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/repository"
)

// SettingsService serves the pricing configuration. The database row is the
// source of truth; an in-memory snapshot is refreshed on a ticker so catalog
// requests never block on Postgres.
type SettingsService struct {
	repo     *repository.SettingsRepository
	snapshot atomic.Value // models.PricingConfig

	defaultRate   float64
	defaultMargin float64
}

// NewSettingsService constructs a SettingsService and loads the initial
// snapshot. Missing rows fall back to the configured defaults.
func NewSettingsService(repo *repository.SettingsRepository, defaultRate, defaultMargin float64) *SettingsService {
	s := &SettingsService{
		repo:          repo,
		defaultRate:   defaultRate,
		defaultMargin: defaultMargin,
	}
	s.snapshot.Store(models.PricingConfig{
		USDToMNTRate:  defaultRate,
		MarginPercent: defaultMargin,
	})
	if err := s.Refresh(); err != nil {
		log.Warn().Err(err).Msg("settings: initial load failed, using defaults")
	}
	return s
}

// Pricing returns the current pricing snapshot. Callers get a value copy;
// the snapshot only changes through Refresh.
func (s *SettingsService) Pricing() models.PricingConfig {
	return s.snapshot.Load().(models.PricingConfig)
}

// Refresh reloads the snapshot from the database.
func (s *SettingsService) Refresh() error {
	rate, err := s.repo.GetFloat(models.SettingUSDToMNTRate, s.defaultRate)
	if err != nil {
		return fmt.Errorf("failed to load exchange rate: %w", err)
	}
	margin, err := s.repo.GetFloat(models.SettingMarginPercent, s.defaultMargin)
	if err != nil {
		return fmt.Errorf("failed to load margin: %w", err)
	}
	s.snapshot.Store(models.PricingConfig{
		USDToMNTRate:  rate,
		MarginPercent: margin,
	})
	return nil
}

// RunRefresher refreshes the snapshot on a ticker until ctx is cancelled.
func (s *SettingsService) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(); err != nil {
				log.Error().Err(err).Msg("settings: refresh failed")
			}
		}
	}
}

// UpdatePricing persists new pricing parameters and refreshes the snapshot
// immediately so the next catalog request prices with them.
func (s *SettingsService) UpdatePricing(rate, margin float64) error {
	if rate <= 0 {
		return fmt.Errorf("exchange rate must be positive")
	}
	if margin < 0 {
		return fmt.Errorf("margin percent must not be negative")
	}
	if err := s.repo.Set(models.SettingUSDToMNTRate, strconv.FormatFloat(rate, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to save exchange rate: %w", err)
	}
	if err := s.repo.Set(models.SettingMarginPercent, strconv.FormatFloat(margin, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to save margin: %w", err)
	}
	return s.Refresh()
}

// ListSettings returns all raw settings rows for the admin surface.
func (s *SettingsService) ListSettings() ([]models.Setting, error) {
	return s.repo.List()
}
