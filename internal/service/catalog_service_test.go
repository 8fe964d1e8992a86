package service

import (
	"testing"

	"github.com/nomadsim/esim_api/pkg/mobimatter"
)

func TestMapProduct(t *testing.T) {
	p := mobimatter.Product{
		ProductID:       "mm-123",
		ProductCategory: "esim_realtime",
		ProviderName:    "SkyRoam",
		RetailPrice:     9.5,
		CurrencyCode:    "usd",
		Countries:       []string{"MN", "KR"},
		ProductDetails: []mobimatter.ProductDetail{
			{Name: "PLAN_TITLE", Value: "Asia 3GB"},
			{Name: "PLAN_DATA_LIMIT", Value: "3"},
			{Name: "PLAN_DATA_UNIT", Value: "GB"},
			{Name: "PLAN_VALIDITY", Value: "168"},
		},
	}

	offer := mapProduct(&p)

	if offer.SKU != "mm-123" {
		t.Errorf("SKU = %s", offer.SKU)
	}
	if offer.Title != "Asia 3GB" {
		t.Errorf("Title = %s", offer.Title)
	}
	if offer.DataAmount != 3 || offer.DataUnit != "GB" {
		t.Errorf("data = %v %s", offer.DataAmount, offer.DataUnit)
	}
	if offer.RawValidity != 168 {
		t.Errorf("RawValidity = %v", offer.RawValidity)
	}
	if offer.Currency != "USD" {
		t.Errorf("Currency = %s, want uppercased", offer.Currency)
	}
	if offer.IsTopUp || offer.Unlimited {
		t.Errorf("flags: topup=%v unlimited=%v, want both false", offer.IsTopUp, offer.Unlimited)
	}
}

func TestMapProductFallbacks(t *testing.T) {
	p := mobimatter.Product{
		ProductID:       "mm-456",
		ProductCategory: "esim_topup",
		ProviderName:    "SkyRoam",
		RetailPrice:     4,
		CurrencyCode:    "USD",
		Countries:       []string{"MN"},
		ProductDetails: []mobimatter.ProductDetail{
			{Name: "PLAN_DATA_LIMIT", Value: "not-a-number"},
			{Name: "PLAN_UNLIMITED", Value: "TRUE"},
		},
	}

	offer := mapProduct(&p)

	if offer.Title != "SkyRoam" {
		t.Errorf("Title = %s, want provider-name fallback", offer.Title)
	}
	if offer.DataAmount != 0 {
		t.Errorf("unparseable data limit = %v, want 0", offer.DataAmount)
	}
	if offer.DataUnit != "GB" {
		t.Errorf("DataUnit = %s, want GB default", offer.DataUnit)
	}
	if !offer.Unlimited {
		t.Error("PLAN_UNLIMITED=TRUE must set the flag")
	}
	if !offer.IsTopUp {
		t.Error("esim_topup category must set the top-up flag")
	}
}
