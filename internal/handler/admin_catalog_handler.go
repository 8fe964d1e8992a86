package handler

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// AdminCatalogHandler handles back-office catalog management.
type AdminCatalogHandler struct {
	catalog     *service.CatalogService
	packageRepo *repository.PackageRepository
}

// NewAdminCatalogHandler constructs an AdminCatalogHandler.
func NewAdminCatalogHandler(catalog *service.CatalogService, packageRepo *repository.PackageRepository) *AdminCatalogHandler {
	return &AdminCatalogHandler{catalog: catalog, packageRepo: packageRepo}
}

// GetPackages returns the catalog snapshot including inactive packages.
func (h *AdminCatalogHandler) GetPackages(c *gin.Context) {
	filter := &repository.AdminPackageFilter{
		Country:  c.Query("country"),
		Provider: c.Query("provider"),
		Search:   c.Query("search"),
		Page:     1,
		Limit:    50,
	}
	if v := c.Query("is_active"); v != "" {
		b := v == "true"
		filter.IsActive = &b
	}
	if v := c.Query("is_topup"); v != "" {
		b := v == "true"
		filter.IsTopUp = &b
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Page = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	packages, total, err := h.packageRepo.GetAllAdmin(filter)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get packages")
		return
	}

	utils.SuccessWithPagination(c, 200, "Packages retrieved successfully", gin.H{
		"packages": packages,
	}, filter.Page, filter.Limit, total)
}

// UpdatePackageStatus switches a package on or off in the storefront.
func (h *AdminCatalogHandler) UpdatePackageStatus(c *gin.Context) {
	sku := c.Param("sku")

	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "isActive is required")
		return
	}

	if err := h.packageRepo.UpdateStatus(sku, *req.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(c, 404, "PACKAGE_NOT_FOUND", "Package not found in snapshot")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to update package")
		return
	}

	utils.Success(c, 200, "Package updated", gin.H{
		"sku":      sku,
		"isActive": *req.IsActive,
	})
}

// Resync forces a feed refetch and snapshot rebuild right now.
func (h *AdminCatalogHandler) Resync(c *gin.Context) {
	if err := h.catalog.SyncSnapshot(c.Request.Context()); err != nil {
		utils.Error(c, 502, "SYNC_FAILED", "Catalog sync failed")
		return
	}

	utils.Success(c, 200, "Catalog resynced", nil)
}
