package service

import (
	"testing"

	"github.com/nomadsim/esim_api/internal/models"
)

func TestFilterCountry(t *testing.T) {
	pkg := models.Package{Countries: models.StringSet{"MN", "KR"}}

	if !FilterCountry("mn")(&pkg) {
		t.Error("lowercase query must match")
	}
	if !FilterCountry(" KR ")(&pkg) {
		t.Error("padded query must match")
	}
	if FilterCountry("JP")(&pkg) {
		t.Error("uncovered country must not match")
	}
}

func TestFilterDuration(t *testing.T) {
	tests := []struct {
		bucket string
		days   int
		want   bool
	}{
		{"short", 7, true},
		{"short", 8, false},
		{"medium", 7, false},
		{"medium", 8, true},
		{"medium", 15, true},
		{"medium", 16, false},
		{"long", 15, false},
		{"long", 16, true},
		{"long", 30, true},
		{"", 30, true},       // no bucket matches everything
		{"weird", 3, true},   // unknown bucket matches everything
		{"short", -1, true},  // unlimited sentinel passes every bucket
		{"medium", -1, true},
		{"long", -1, true},
	}

	for _, tt := range tests {
		pkg := models.Package{DurationDays: tt.days}
		if got := FilterDuration(tt.bucket)(&pkg); got != tt.want {
			t.Errorf("FilterDuration(%q) on %d days = %v, want %v", tt.bucket, tt.days, got, tt.want)
		}
	}
}

func TestFilterDataRange(t *testing.T) {
	tests := []struct {
		name       string
		minMB, max int
		dataMB     int
		want       bool
	}{
		{"in range", 1024, 5120, 3072, true},
		{"below min", 1024, 5120, 512, false},
		{"above max", 1024, 5120, 10240, false},
		{"no upper bound", 1024, 0, 999999, true},
		{"unlimited always passes", 1024, 2048, models.UnlimitedData, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := models.Package{DataAmountMB: tt.dataMB}
			if got := FilterDataRange(tt.minMB, tt.max)(&pkg); got != tt.want {
				t.Errorf("FilterDataRange(%d, %d) on %d MB = %v, want %v", tt.minMB, tt.max, tt.dataMB, got, tt.want)
			}
		})
	}
}

func TestFilterSearch(t *testing.T) {
	pkg := models.Package{
		Title:     "Asia Explorer 5GB",
		Provider:  "SkyRoam",
		Countries: models.StringSet{"MN", "KR"},
	}

	if !FilterSearch("explorer")(&pkg) {
		t.Error("title match failed")
	}
	if !FilterSearch("SKYROAM")(&pkg) {
		t.Error("provider match must be case insensitive")
	}
	if !FilterSearch("kr")(&pkg) {
		t.Error("country code match failed")
	}
	if !FilterSearch("  ")(&pkg) {
		t.Error("blank query must match everything")
	}
	if FilterSearch("europe")(&pkg) {
		t.Error("unrelated query must not match")
	}
}

func TestApplyFiltersAnd(t *testing.T) {
	pkgs := []models.Package{
		{SKU: "a", Countries: models.StringSet{"MN"}, DurationDays: 7, DataAmountMB: 1024},
		{SKU: "b", Countries: models.StringSet{"MN"}, DurationDays: 30, DataAmountMB: 5120},
		{SKU: "c", Countries: models.StringSet{"KR"}, DurationDays: 7, DataAmountMB: 1024},
	}

	got := ApplyFilters(pkgs, FilterCountry("MN"), FilterDuration("short"))

	if len(got) != 1 || got[0].SKU != "a" {
		t.Fatalf("expected only sku a, got %+v", got)
	}

	all := ApplyFilters(pkgs)
	if len(all) != len(pkgs) {
		t.Errorf("no filters must return all packages, got %d", len(all))
	}
}
