package service

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nomadsim/esim_api/internal/models"
)

// lowCostMarginCap limits the margin percent applied to cheap USD offers so
// the absolute markup stays reasonable on low-cost SKUs.
const (
	lowCostMarginCap      = 15.0
	lowCostPriceThreshold = 5.0
)

// SortOrder selects the ordering of normalized packages.
type SortOrder int

const (
	SortPriceAsc SortOrder = iota // default: cheapest first
	SortPopular                   // biggest plans first, price breaks ties
)

// NormalizeOptions tunes a normalization pass.
type NormalizeOptions struct {
	// CountryScope, when set, switches the deduplication key to that single
	// country instead of the full sorted country set. The storefront country
	// page dedupes per-country; the global listing dedupes on the full set.
	CountryScope string
	Sort         SortOrder
}

// NormalizeOffers maps raw catalog offers to canonical packages, prices them
// with the given config, and deduplicates equivalent offers down to the
// cheapest SKU. A malformed offer degrades to safe defaults; it never aborts
// the batch.
func NormalizeOffers(offers []models.CatalogOffer, cfg models.PricingConfig, opts NormalizeOptions) []models.Package {
	kept := make(map[string]int, len(offers)) // dedup key -> index into out
	out := make([]models.Package, 0, len(offers))

	for i := range offers {
		// A country scope narrows the batch to offers covering that country
		// before deduplication. Offers outside the scope must not compete
		// for the scoped key, or a cheaper foreign offer would evict a
		// genuine match from the country listing.
		if opts.CountryScope != "" && !coversCountry(offers[i].Countries, opts.CountryScope) {
			continue
		}

		pkg := normalizeOffer(&offers[i], cfg)

		key := dedupKey(&pkg, opts.CountryScope)
		if j, ok := kept[key]; ok {
			// Keep the cheaper offer; ties keep the first encountered.
			if pkg.SellPriceMNT < out[j].SellPriceMNT {
				out[j] = pkg
			}
			continue
		}
		kept[key] = len(out)
		out = append(out, pkg)
	}

	switch opts.Sort {
	case SortPopular:
		sort.SliceStable(out, func(a, b int) bool {
			// Unlimited (-1) sorts as the largest plan.
			da, db := dataRank(out[a].DataAmountMB), dataRank(out[b].DataAmountMB)
			if da != db {
				return da > db
			}
			return out[a].SellPriceMNT < out[b].SellPriceMNT
		})
	default:
		sort.SliceStable(out, func(a, b int) bool {
			return out[a].SellPriceMNT < out[b].SellPriceMNT
		})
	}

	return out
}

func normalizeOffer(offer *models.CatalogOffer, cfg models.PricingConfig) models.Package {
	return models.Package{
		SKU:          offer.SKU,
		Title:        offer.Title,
		Provider:     offer.Provider,
		Countries:    models.StringSet(offer.Countries),
		DataAmountMB: resolveDataAmountMB(offer),
		DurationDays: resolveValidityDays(offer.RawValidity, offer.Title),
		SellPriceMNT: computeSellPriceMNT(offer.OriginalPrice, offer.Currency, cfg),
		Currency:     "MNT",
		IsRegional:   len(offer.Countries) > 1,
		IsTopUp:      offer.IsTopUp,
		IsActive:     true,
	}
}

// resolveDataAmountMB converts an offer's declared data allowance to
// megabytes. Unlimited plans get the -1 sentinel; anything malformed
// resolves to 0 rather than failing the batch.
func resolveDataAmountMB(offer *models.CatalogOffer) int {
	if offer.Unlimited {
		return models.UnlimitedData
	}
	v := offer.DataAmount
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if strings.EqualFold(offer.DataUnit, "GB") {
		v *= 1024
	}
	return int(math.Round(v))
}

var titleDayPattern = regexp.MustCompile(`(?i)(\d+)\s*-?\s*d(?:ays?)?\b`)

// resolveValidityDays resolves the feed's ambiguous validity encoding to a
// day count. The upstream feed mixes hours and days in the same field, so
// this is heuristic by necessity and the heuristic order is load-bearing:
//
//  1. values above 60 are assumed to be hours and divided by 24 when the
//     resulting day count lands in (0, 366);
//  2. a zero or still-implausible value falls back to scanning the title
//     for an "N day"/"Nd" pattern;
//  3. otherwise the raw value passes through unchanged, ambiguity intact.
//
// Note the hours assumption also swallows genuine 61..365 day counts
// (90 "days" becomes 4); that is the historical behavior and downstream
// consumers depend on stable output, so it stays.
func resolveValidityDays(raw float64, title string) int {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		raw = 0
	}
	days := int(math.Round(raw))

	if days > 60 {
		if d := int(math.Round(raw / 24)); d > 0 && d < 366 {
			return d
		}
	}

	if days == 0 || days > 365 {
		if m := titleDayPattern.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n < 366 {
				return n
			}
		}
	}

	return days
}

// computeSellPriceMNT derives the sell price from cost, margin and exchange
// rate, then ceiling-rounds to the nearest 100 MNT. The rounded value is the
// only price ever stored or shown.
func computeSellPriceMNT(originalPrice float64, currency string, cfg models.PricingConfig) int {
	margin := cfg.MarginPercent
	if margin < 0 {
		margin = 0
	}
	// Cap the margin on cheap USD offers before applying the multiplier.
	if currency == "USD" && originalPrice <= lowCostPriceThreshold && margin > lowCostMarginCap {
		margin = lowCostMarginCap
	}

	multiplier := 1 + margin/100
	price := originalPrice * multiplier
	if currency != "MNT" {
		price *= cfg.USDToMNTRate
	}

	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0
	}
	return int(math.Ceil(price/100)) * 100
}

// dedupKey builds the deduplication identity for a package. Country order
// never matters for identity, so the set is sorted first.
func dedupKey(pkg *models.Package, countryScope string) string {
	var countryPart string
	if countryScope != "" {
		countryPart = countryScope
	} else {
		countries := make([]string, len(pkg.Countries))
		copy(countries, pkg.Countries)
		sort.Strings(countries)
		countryPart = strings.Join(countries, ",")
	}
	return countryPart + "-" + strconv.Itoa(pkg.DataAmountMB) + "-" + strconv.Itoa(pkg.DurationDays)
}

// coversCountry reports whether the country set contains code
// (case-insensitive).
func coversCountry(countries []string, code string) bool {
	for _, c := range countries {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// dataRank orders data amounts with unlimited above everything else.
func dataRank(mb int) int {
	if mb == models.UnlimitedData {
		return math.MaxInt
	}
	return mb
}
