package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"luxestore-backend/internal/domains/product/model"
	"luxestore-backend/internal/domains/product/service"
	"luxestore-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	staging *service.StagingService
}

func NewProductHandler(staging *service.StagingService) *ProductHandler {
	return &ProductHandler{staging: staging}
}

func listFilterFromQuery(c *gin.Context) model.ListFilter {
	filter := model.ListFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Limit:    20,
	}
	if raw := c.Query("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &filter.Limit)
	}
	if raw := c.Query("offset"); raw != "" {
		fmt.Sscanf(raw, "%d", &filter.Offset)
	}
	if raw := c.Query("import_job_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.ImportJobID = &id
		}
	}
	return filter
}

// ListLive returns the public catalog. Staging rows are never visible here.
// GET /api/products
func (h *ProductHandler) ListLive(c *gin.Context) {
	filter := listFilterFromQuery(c)
	products, total, err := h.staging.ListLive(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		response.InternalServerError(c, "Failed to list products")
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, products, &response.Meta{
		Limit: filter.Limit,
		Total: total,
	})
}

// ListStaging returns imported products awaiting review.
// GET /api/products/staging
func (h *ProductHandler) ListStaging(c *gin.Context) {
	filter := listFilterFromQuery(c)
	products, total, err := h.staging.ListStaging(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list staging products")
		response.InternalServerError(c, "Failed to list staging products")
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, products, &response.Meta{
		Limit: filter.Limit,
		Total: total,
	})
}

// ExportStaging streams the staging list as an XLSX download.
// GET /api/products/staging/export
func (h *ProductHandler) ExportStaging(c *gin.Context) {
	data, err := h.staging.ExportStaging(c.Request.Context(), listFilterFromQuery(c))
	if err != nil {
		log.Error().Err(err).Msg("Failed to export staging products")
		response.InternalServerError(c, "Failed to export staging products")
		return
	}

	filename := fmt.Sprintf("staging-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

type updateStagingRequest struct {
	Name        *string          `json:"name"`
	NameAr      *string          `json:"name_ar"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Images      *[]string        `json:"images"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
}

func (r updateStagingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 500)),
		validation.Field(&r.Price, validation.By(func(value interface{}) error {
			price, ok := value.(*decimal.Decimal)
			if !ok || price == nil {
				return nil
			}
			if !price.IsPositive() {
				return fmt.Errorf("must be positive")
			}
			return nil
		})),
		validation.Field(&r.Stock, validation.Min(0)),
	)
}

// UpdateStaging edits the reviewable fields of a staging row.
// PUT /api/products/staging/:id
func (h *ProductHandler) UpdateStaging(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid product id")
		return
	}

	var req updateStagingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product update", err)
		return
	}

	product, err := h.staging.UpdateStaging(c.Request.Context(), id, model.StagingUpdate{
		Name:        req.Name,
		NameAr:      req.NameAr,
		Description: req.Description,
		Price:       req.Price,
		Images:      req.Images,
		Category:    req.Category,
		Stock:       req.Stock,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNoFieldsToUpdate):
			response.BadRequest(c, "No fields to update")
		case errors.Is(err, model.ErrProductNotFound):
			response.NotFound(c, "Product not found")
		case errors.Is(err, model.ErrNotStaging):
			response.Conflict(c, "Product is already published")
		default:
			log.Error().Err(err).Msg("Failed to update staging product")
			response.InternalServerError(c, "Failed to update staging product")
		}
		return
	}
	response.Success(c, http.StatusOK, product)
}

type publishRequest struct {
	ProductIDs []string `json:"product_ids"`
	// Older clients send "ids".
	IDs []string `json:"ids"`
}

func (r publishRequest) productIDs() []string {
	if len(r.ProductIDs) > 0 {
		return r.ProductIDs
	}
	return r.IDs
}

func (r publishRequest) Validate() error {
	return validation.Validate(r.productIDs(), validation.Required, validation.Length(1, 500))
}

// Publish promotes staging rows to the live catalog.
// POST /api/products/publish-staging
func (h *ProductHandler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid publish request", err)
		return
	}

	rawIDs := req.productIDs()
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, fmt.Sprintf("Invalid product id %q", raw))
			return
		}
		ids = append(ids, id)
	}

	actor := ""
	if raw, ok := c.Get("userID"); ok {
		actor = fmt.Sprint(raw)
	}

	result, err := h.staging.Publish(c.Request.Context(), ids, actor)
	if err != nil {
		log.Error().Err(err).Msg("Failed to publish staging products")
		response.InternalServerError(c, "Failed to publish staging products")
		return
	}
	response.Success(c, http.StatusOK, result)
}
