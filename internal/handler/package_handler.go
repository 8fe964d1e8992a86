package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// PackageHandler handles the storefront catalog endpoints.
type PackageHandler struct {
	catalog *service.CatalogService
}

// NewPackageHandler constructs a PackageHandler.
func NewPackageHandler(catalog *service.CatalogService) *PackageHandler {
	return &PackageHandler{catalog: catalog}
}

// GetPackages returns the normalized catalog with optional filters.
func (h *PackageHandler) GetPackages(c *gin.Context) {
	q := service.PackageQuery{
		Country:  c.Query("country"),
		Duration: c.Query("duration"), // short, medium, long
		Search:   c.Query("search"),
		Sort:     c.Query("sort"), // price (default), popular
		TopUp:    c.Query("topup") == "true",
	}
	if v := c.Query("min_data_mb"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.MinDataMB = n
		}
	}
	if v := c.Query("max_data_mb"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.MaxDataMB = n
		}
	}

	packages, err := h.catalog.ListPackages(c.Request.Context(), q)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get packages")
		return
	}

	utils.Success(c, 200, "Packages retrieved successfully", gin.H{
		"packages": packages,
		"count":    len(packages),
	})
}

// GetPackage returns a single package by sku.
func (h *PackageHandler) GetPackage(c *gin.Context) {
	sku := c.Param("sku")

	pkg, err := h.catalog.GetPackageBySKU(c.Request.Context(), sku)
	if err != nil {
		if errors.Is(err, utils.ErrPackageNotFound) {
			utils.Error(c, 404, "PACKAGE_NOT_FOUND", "Package not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get package")
		return
	}

	utils.Success(c, 200, "Package retrieved successfully", gin.H{
		"package": pkg,
	})
}

// GetCountries returns the destination country codes available in the
// catalog.
func (h *PackageHandler) GetCountries(c *gin.Context) {
	countries, err := h.catalog.Countries(c.Request.Context())
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get countries")
		return
	}

	utils.Success(c, 200, "Countries retrieved successfully", gin.H{
		"countries": countries,
	})
}
