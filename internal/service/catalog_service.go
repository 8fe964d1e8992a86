package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/cache"
	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/utils"
	"github.com/nomadsim/esim_api/pkg/mobimatter"
)

// CatalogService serves the storefront catalog. Offers come from the
// Mobimatter feed through a Redis cache; normalization and pricing happen
// per request so a settings change takes effect without a resync.
//
// The catalog never fails toward the customer: when the feed is down the
// service falls back to the last good cached feed, and as a last resort to
// a tiny built-in sample so the storefront still renders.
type CatalogService struct {
	mobimatter  *mobimatter.Client
	cache       *cache.CatalogCache
	settings    *SettingsService
	packageRepo *repository.PackageRepository
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(mm *mobimatter.Client, c *cache.CatalogCache, settings *SettingsService, packageRepo *repository.PackageRepository) *CatalogService {
	return &CatalogService{
		mobimatter:  mm,
		cache:       c,
		settings:    settings,
		packageRepo: packageRepo,
	}
}

// PackageQuery carries the storefront's catalog filters.
type PackageQuery struct {
	Country   string
	Duration  string // "short", "medium", "long" or ""
	MinDataMB int
	MaxDataMB int
	Search    string
	TopUp     bool
	Sort      string // "price" (default) or "popular"
}

// ListPackages returns normalized, priced, deduplicated packages matching
// the query.
func (s *CatalogService) ListPackages(ctx context.Context, q PackageQuery) ([]models.Package, error) {
	offers, err := s.getOffers(ctx)
	if err != nil {
		return nil, err
	}

	opts := NormalizeOptions{CountryScope: strings.ToUpper(strings.TrimSpace(q.Country))}
	if q.Sort == "popular" {
		opts.Sort = SortPopular
	}

	pkgs := NormalizeOffers(offers, s.settings.Pricing(), opts)

	filters := []PackageFilter{FilterTopUp(q.TopUp)}
	if q.Country != "" {
		filters = append(filters, FilterCountry(q.Country))
	}
	if q.Duration != "" {
		filters = append(filters, FilterDuration(q.Duration))
	}
	if q.MinDataMB > 0 || q.MaxDataMB > 0 {
		filters = append(filters, FilterDataRange(q.MinDataMB, q.MaxDataMB))
	}
	if q.Search != "" {
		filters = append(filters, FilterSearch(q.Search))
	}
	pkgs = ApplyFilters(pkgs, filters...)

	return s.applyAdminOverrides(pkgs), nil
}

// GetPackageBySKU returns one normalized package by its sku, priced with
// the current settings. Used by checkout to price the order server-side.
func (s *CatalogService) GetPackageBySKU(ctx context.Context, sku string) (*models.Package, error) {
	offers, err := s.getOffers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if offers[i].SKU == sku {
			pkg := normalizeOffer(&offers[i], s.settings.Pricing())
			if disabled, err := s.packageRepo.DisabledSKUs(); err == nil && disabled[pkg.SKU] {
				return nil, utils.ErrPackageNotFound
			}
			return &pkg, nil
		}
	}
	return nil, utils.ErrPackageNotFound
}

// CountryCount is a destination with its number of purchasable packages.
type CountryCount struct {
	Code     string `json:"code"`
	Packages int    `json:"packages"`
}

// Countries returns the country codes covered by the current catalog with
// per-country package counts, for the storefront's destination picker.
// Top-up packages are not counted; the picker sells new purchases.
func (s *CatalogService) Countries(ctx context.Context) ([]CountryCount, error) {
	offers, err := s.getOffers(ctx)
	if err != nil {
		return nil, err
	}

	pkgs := NormalizeOffers(offers, s.settings.Pricing(), NormalizeOptions{})
	pkgs = s.applyAdminOverrides(ApplyFilters(pkgs, FilterTopUp(false)))

	counts := make(map[string]int)
	for i := range pkgs {
		for _, c := range pkgs[i].Countries {
			counts[strings.ToUpper(c)]++
		}
	}

	out := make([]CountryCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, CountryCount{Code: code, Packages: n})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	return out, nil
}

// RefreshFeed forces a feed refetch, bypassing the cache. Used by the sync
// worker and the admin resync endpoint.
func (s *CatalogService) RefreshFeed(ctx context.Context) error {
	offers, err := s.fetchFeed(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, offers); err != nil {
		log.Error().Err(err).Msg("catalog: failed to cache refreshed feed")
	}
	return nil
}

// SyncSnapshot refreshes the feed and mirrors the normalized result into
// the Postgres snapshot for the admin surface. Packages that fell out of
// the feed get deactivated.
func (s *CatalogService) SyncSnapshot(ctx context.Context) error {
	started := time.Now()

	offers, err := s.fetchFeed(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, offers); err != nil {
		log.Error().Err(err).Msg("catalog: failed to cache feed during sync")
	}

	pkgs := NormalizeOffers(offers, s.settings.Pricing(), NormalizeOptions{})
	var failed int
	for i := range pkgs {
		if err := s.packageRepo.Upsert(&pkgs[i]); err != nil {
			failed++
			log.Error().Err(err).Str("sku", pkgs[i].SKU).Msg("catalog: snapshot upsert failed")
		}
	}

	pruned, err := s.packageRepo.PruneStale(started)
	if err != nil {
		log.Error().Err(err).Msg("catalog: snapshot prune failed")
	}

	log.Info().
		Int("packages", len(pkgs)).
		Int("failed", failed).
		Int64("pruned", pruned).
		Dur("took", time.Since(started)).
		Msg("catalog snapshot synced")
	return nil
}

// getOffers returns raw offers, cheapest source first: fresh cache, then
// the live feed, then the last-good cache, then the built-in sample.
func (s *CatalogService) getOffers(ctx context.Context) ([]models.CatalogOffer, error) {
	if offers, err := s.cache.Get(ctx); err == nil && len(offers) > 0 {
		return offers, nil
	}

	offers, err := s.fetchFeed(ctx)
	if err == nil {
		if cerr := s.cache.Set(ctx, offers); cerr != nil {
			log.Error().Err(cerr).Msg("catalog: failed to cache feed")
		}
		return offers, nil
	}
	log.Warn().Err(err).Msg("catalog: feed unreachable, falling back")

	if offers, lerr := s.cache.GetLastGood(ctx); lerr == nil && len(offers) > 0 {
		return offers, nil
	}

	return sampleOffers(), nil
}

// fetchFeed pulls the product feed and maps it to raw offers.
func (s *CatalogService) fetchFeed(ctx context.Context) ([]models.CatalogOffer, error) {
	products, err := s.mobimatter.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	offers := make([]models.CatalogOffer, 0, len(products))
	for i := range products {
		offers = append(offers, mapProduct(&products[i]))
	}
	return offers, nil
}

// applyAdminOverrides drops packages an admin has switched off. An override
// lookup failure is logged and skipped; it must not break the listing.
func (s *CatalogService) applyAdminOverrides(pkgs []models.Package) []models.Package {
	disabled, err := s.packageRepo.DisabledSKUs()
	if err != nil {
		log.Error().Err(err).Msg("catalog: failed to load admin overrides")
		return pkgs
	}
	if len(disabled) == 0 {
		return pkgs
	}
	out := make([]models.Package, 0, len(pkgs))
	for i := range pkgs {
		if !disabled[pkgs[i].SKU] {
			out = append(out, pkgs[i])
		}
	}
	return out
}

// mapProduct converts a Mobimatter product to a raw catalog offer. Plan
// attributes arrive as loosely-typed detail strings; parse failures leave
// zero values for the normalizer to resolve.
func mapProduct(p *mobimatter.Product) models.CatalogOffer {
	title := p.Detail(mobimatter.DetailPlanTitle)
	if title == "" {
		title = p.ProviderName
	}

	dataAmount, _ := strconv.ParseFloat(p.Detail(mobimatter.DetailPlanDataLimit), 64)
	rawValidity, _ := strconv.ParseFloat(p.Detail(mobimatter.DetailPlanValidity), 64)

	unit := strings.ToUpper(p.Detail(mobimatter.DetailPlanDataUnit))
	if unit == "" {
		unit = "GB"
	}

	return models.CatalogOffer{
		SKU:           p.ProductID,
		Title:         title,
		Provider:      p.ProviderName,
		Countries:     p.Countries,
		DataAmount:    dataAmount,
		DataUnit:      unit,
		Unlimited:     strings.EqualFold(p.Detail(mobimatter.DetailPlanUnlimited), "true"),
		RawValidity:   rawValidity,
		IsTopUp:       strings.EqualFold(p.Detail(mobimatter.DetailTopUp), "true") || strings.EqualFold(p.ProductCategory, "esim_topup"),
		OriginalPrice: p.RetailPrice,
		Currency:      strings.ToUpper(p.CurrencyCode),
	}
}

// sampleOffers is the last-resort catalog shown when both the feed and the
// cache are unavailable. Kept tiny and obviously placeholder-priced.
func sampleOffers() []models.CatalogOffer {
	return []models.CatalogOffer{
		{
			SKU: "sample-mn-1gb-7d", Title: "Mongolia 1GB 7 Days", Provider: "NomadSIM",
			Countries: []string{"MN"}, DataAmount: 1, DataUnit: "GB",
			RawValidity: 7, OriginalPrice: 4.5, Currency: "USD",
		},
		{
			SKU: "sample-mn-3gb-30d", Title: "Mongolia 3GB 30 Days", Provider: "NomadSIM",
			Countries: []string{"MN"}, DataAmount: 3, DataUnit: "GB",
			RawValidity: 30, OriginalPrice: 9, Currency: "USD",
		},
		{
			SKU: "sample-asia-5gb-15d", Title: "Asia Regional 5GB 15 Days", Provider: "NomadSIM",
			Countries: []string{"MN", "KR", "JP", "CN"}, DataAmount: 5, DataUnit: "GB",
			RawValidity: 15, OriginalPrice: 14, Currency: "USD",
		},
	}
}
