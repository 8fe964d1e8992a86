package service

import (
	"strings"

	"github.com/nomadsim/esim_api/internal/models"
)

// PackageFilter is a pure predicate over a canonical package. Filters are
// independent and combined by AND, so application order never changes the
// result.
type PackageFilter func(*models.Package) bool

// Duration range bounds for the storefront's three duration buckets.
const (
	shortTripMaxDays  = 7
	mediumTripMaxDays = 15
)

// FilterCountry matches packages covering the given ISO country code.
func FilterCountry(code string) PackageFilter {
	code = strings.ToUpper(strings.TrimSpace(code))
	return func(p *models.Package) bool {
		for _, c := range p.Countries {
			if strings.ToUpper(c) == code {
				return true
			}
		}
		return false
	}
}

// FilterDuration matches packages in a named duration bucket:
// "short" (≤7 days), "medium" (8–15), "long" (>15). Unknown bucket names
// match everything.
func FilterDuration(bucket string) PackageFilter {
	return func(p *models.Package) bool {
		if p.DurationDays < 0 {
			// Unlimited-validity sentinel passes every bucket.
			return true
		}
		switch bucket {
		case "short":
			return p.DurationDays <= shortTripMaxDays
		case "medium":
			return p.DurationDays > shortTripMaxDays && p.DurationDays <= mediumTripMaxDays
		case "long":
			return p.DurationDays > mediumTripMaxDays
		default:
			return true
		}
	}
}

// FilterDataRange matches packages whose data allowance lies in [minMB, maxMB].
// maxMB <= 0 means no upper bound. Unlimited packages always pass.
func FilterDataRange(minMB, maxMB int) PackageFilter {
	return func(p *models.Package) bool {
		if p.Unlimited() {
			return true
		}
		if p.DataAmountMB < minMB {
			return false
		}
		if maxMB > 0 && p.DataAmountMB > maxMB {
			return false
		}
		return true
	}
}

// FilterSearch matches a case-insensitive free-text query against title,
// provider and country codes.
func FilterSearch(query string) PackageFilter {
	query = strings.ToLower(strings.TrimSpace(query))
	return func(p *models.Package) bool {
		if query == "" {
			return true
		}
		if strings.Contains(strings.ToLower(p.Title), query) {
			return true
		}
		if strings.Contains(strings.ToLower(p.Provider), query) {
			return true
		}
		for _, c := range p.Countries {
			if strings.Contains(strings.ToLower(c), query) {
				return true
			}
		}
		return false
	}
}

// FilterTopUp matches packages by their top-up flag. New-purchase listings
// pass false; the top-up picker passes true.
func FilterTopUp(isTopUp bool) PackageFilter {
	return func(p *models.Package) bool {
		return p.IsTopUp == isTopUp
	}
}

// ApplyFilters returns the packages passing every given filter.
func ApplyFilters(pkgs []models.Package, filters ...PackageFilter) []models.Package {
	if len(filters) == 0 {
		return pkgs
	}
	out := make([]models.Package, 0, len(pkgs))
outer:
	for i := range pkgs {
		for _, f := range filters {
			if !f(&pkgs[i]) {
				continue outer
			}
		}
		out = append(out, pkgs[i])
	}
	return out
}
