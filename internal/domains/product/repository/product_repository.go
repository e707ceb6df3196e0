package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"luxestore-backend/internal/domains/product/model"
	"luxestore-backend/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = `
	id, source, external_id, import_job_id, name, name_ar, description, images,
	sku, category, weight_kg, stock, in_stock, supplier_price, supplier_shipping,
	price, original_price, price_breakdown, pricing_auto_calculated, staging,
	created_at, updated_at`

// ProductRepository persists catalog rows, both staging and live.
type ProductRepository interface {
	InsertStaging(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListStaging(ctx context.Context, filter model.ListFilter) ([]model.Product, int, error)
	ListLive(ctx context.Context, filter model.ListFilter) ([]model.Product, int, error)
	UpdateStaging(ctx context.Context, id uuid.UUID, update model.StagingUpdate) (*model.Product, error)
	Publish(ctx context.Context, ids []uuid.UUID) (*model.PublishResult, error)
	ListLiveForRepricing(ctx context.Context) ([]model.Product, error)
	ListLiveBySource(ctx context.Context, source string) ([]model.Product, error)
	UpdatePricing(ctx context.Context, id uuid.UUID, price decimal.Decimal, original *decimal.Decimal, breakdown any) error
	UpdateStock(ctx context.Context, id uuid.UUID, stock int, inStock bool) error
}

type productRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID, &p.Source, &p.ExternalID, &p.ImportJobID, &p.Name, &p.NameAr,
		&p.Description, &p.Images, &p.SKU, &p.Category, &p.WeightKg, &p.Stock,
		&p.InStock, &p.SupplierPrice, &p.SupplierShipping, &p.Price,
		&p.OriginalPrice, &p.PriceBreakdown, &p.PricingAutoCalculated,
		&p.Staging, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return &p, nil
}

func (r *productRepository) InsertStaging(ctx context.Context, p *model.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.Staging = true
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Images == nil {
		p.Images = []string{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (
			id, source, external_id, import_job_id, name, name_ar, description,
			images, sku, category, weight_kg, stock, in_stock, supplier_price,
			supplier_shipping, price, original_price, price_breakdown,
			pricing_auto_calculated, staging, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, TRUE, $20, $21
		)`,
		p.ID, p.Source, p.ExternalID, p.ImportJobID, p.Name, p.NameAr,
		p.Description, p.Images, p.SKU, p.Category, p.WeightKg, p.Stock,
		p.InStock, p.SupplierPrice, p.SupplierShipping, p.Price,
		p.OriginalPrice, p.PriceBreakdown, p.PricingAutoCalculated,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrDuplicateInJob
		}
		return fmt.Errorf("failed to insert staging product: %w", err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *productRepository) ListStaging(ctx context.Context, filter model.ListFilter) ([]model.Product, int, error) {
	return r.list(ctx, filter, true)
}

func (r *productRepository) ListLive(ctx context.Context, filter model.ListFilter) ([]model.Product, int, error) {
	return r.list(ctx, filter, false)
}

func (r *productRepository) list(ctx context.Context, filter model.ListFilter, staging bool) ([]model.Product, int, error) {
	where := []string{"staging = $1"}
	args := []any{staging}

	if filter.ImportJobID != nil {
		args = append(args, *filter.ImportJobID)
		where = append(where, fmt.Sprintf("import_job_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR name_ar ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM products WHERE "+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM products WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		productColumns, whereClause, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *productRepository) UpdateStaging(ctx context.Context, id uuid.UUID, update model.StagingUpdate) (*model.Product, error) {
	if update.Empty() {
		return nil, model.ErrNoFieldsToUpdate
	}

	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.NameAr != nil {
		add("name_ar", *update.NameAr)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Price != nil {
		add("price", *update.Price)
		// Manual edits detach the row from automatic re-pricing.
		set = append(set, "pricing_auto_calculated = FALSE")
	}
	if update.Images != nil {
		add("images", *update.Images)
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.Stock != nil {
		add("stock", *update.Stock)
		args = append(args, *update.Stock > 0)
		set = append(set, fmt.Sprintf("in_stock = $%d", len(args)))
	}

	query := fmt.Sprintf(
		"UPDATE products SET %s WHERE id = $1 AND staging RETURNING %s",
		strings.Join(set, ", "), productColumns,
	)

	p, err := scanProduct(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, model.ErrProductNotFound) {
			// Distinguish "missing" from "already published".
			if _, getErr := r.GetByID(ctx, id); getErr == nil {
				return nil, model.ErrNotStaging
			}
		}
		return nil, err
	}
	return p, nil
}

// Publish flips staging rows live. Idempotent: ids that already exist count
// as published whether or not they were still staging; unknown ids are
// reported back as failed.
func (r *productRepository) Publish(ctx context.Context, ids []uuid.UUID) (*model.PublishResult, error) {
	result := &model.PublishResult{Failed: []string{}}
	if len(ids) == 0 {
		return result, nil
	}

	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("failed to resolve publish ids: %w", err)
		}
		existing := make(map[uuid.UUID]bool)
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			existing[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products SET staging = FALSE, updated_at = now()
			WHERE id = ANY($1) AND staging`, ids,
		); err != nil {
			return fmt.Errorf("failed to publish products: %w", err)
		}

		for _, id := range ids {
			if existing[id] {
				result.Published++
			} else {
				result.Failed = append(result.Failed, id.String())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *productRepository) ListLiveForRepricing(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE NOT staging AND supplier_price IS NOT NULL AND pricing_auto_calculated
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products for repricing: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *productRepository) ListLiveBySource(ctx context.Context, source string) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE NOT staging AND source = $1 AND external_id <> ''
		ORDER BY created_at`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by source: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *productRepository) UpdatePricing(ctx context.Context, id uuid.UUID, price decimal.Decimal, original *decimal.Decimal, breakdown any) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET price = $2, original_price = $3, price_breakdown = $4, updated_at = now()
		WHERE id = $1`,
		id, price, original, breakdown,
	)
	if err != nil {
		return fmt.Errorf("failed to update product pricing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock int, inStock bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET stock = $2, in_stock = $3, updated_at = now()
		WHERE id = $1`,
		id, stock, inStock,
	)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}
	return nil
}
