package model

import (
	"time"

	"luxestore-backend/internal/domains/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is one row of the products table. Staging rows are import output
// awaiting review; live rows are the public catalog.
type Product struct {
	ID                    uuid.UUID          `json:"id"`
	Source                string             `json:"source"`
	ExternalID            string             `json:"external_id"`
	ImportJobID           *uuid.UUID         `json:"import_job_id,omitempty"`
	Name                  string             `json:"name"`
	NameAr                string             `json:"name_ar,omitempty"`
	Description           string             `json:"description,omitempty"`
	Images                []string           `json:"images"`
	SKU                   string             `json:"sku,omitempty"`
	Category              string             `json:"category,omitempty"`
	WeightKg              float64            `json:"weight_kg"`
	Stock                 int                `json:"stock"`
	InStock               bool               `json:"in_stock"`
	SupplierPrice         *decimal.Decimal   `json:"supplier_price,omitempty"`
	SupplierShipping      *decimal.Decimal   `json:"supplier_shipping,omitempty"`
	Price                 decimal.Decimal    `json:"price"`
	OriginalPrice         *decimal.Decimal   `json:"original_price,omitempty"`
	PriceBreakdown        *pricing.Breakdown `json:"price_breakdown,omitempty"`
	PricingAutoCalculated bool               `json:"pricing_auto_calculated"`
	Staging               bool               `json:"staging"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// StagingUpdate carries the fields an admin may edit on a staging row. Nil
// means "leave unchanged".
type StagingUpdate struct {
	Name        *string          `json:"name,omitempty"`
	NameAr      *string          `json:"name_ar,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Images      *[]string        `json:"images,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u StagingUpdate) Empty() bool {
	return u.Name == nil && u.NameAr == nil && u.Description == nil &&
		u.Price == nil && u.Images == nil && u.Category == nil && u.Stock == nil
}

// ListFilter narrows product listings.
type ListFilter struct {
	ImportJobID *uuid.UUID
	Search      string
	Category    string
	Limit       int
	Offset      int
}

// PublishResult summarizes a publish call. Published counts every requested
// id that exists (already-live rows included); Failed lists unknown ids.
type PublishResult struct {
	Published int      `json:"published"`
	Failed    []string `json:"failed"`
}
