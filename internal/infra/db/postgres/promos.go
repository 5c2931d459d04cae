package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/daterange"
)

type PromoRepository struct {
	db dbtx
}

func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{db: pool}
}

const promoColumns = `code, discount_type, discount_value, valid_from, valid_to, usage_limit, usage_count, created_at, updated_at`

func (r *PromoRepository) ByCode(ctx context.Context, code string) (*domainpromo.Code, error) {
	return r.get(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code)
}

// Lock holds the code's row so usage can be checked and incremented safely.
func (r *PromoRepository) Lock(ctx context.Context, code string) (*domainpromo.Code, error) {
	return r.get(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 FOR UPDATE`, code)
}

func (r *PromoRepository) get(ctx context.Context, query, code string) (*domainpromo.Code, error) {
	var c domainpromo.Code
	err := conn(ctx, r.db).QueryRow(ctx, query, domainpromo.Normalize(code)).Scan(
		&c.Code, &c.DiscountType, &c.DiscountValue, &c.ValidFrom, &c.ValidTo,
		&c.UsageLimit, &c.UsageCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainpromo.ErrUnknown
		}
		return nil, mapError("get promo code", err)
	}
	c.ValidFrom = daterange.Day(c.ValidFrom)
	c.ValidTo = daterange.Day(c.ValidTo)
	return &c, nil
}

func (r *PromoRepository) Create(ctx context.Context, c *domainpromo.Code) error {
	const stmt = `
INSERT INTO promo_codes (code, discount_type, discount_value, valid_from, valid_to, usage_limit, usage_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(ctx, r.db).Exec(ctx, stmt, c.Code, c.DiscountType, c.DiscountValue, c.ValidFrom, c.ValidTo,
		c.UsageLimit, c.UsageCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domainpromo.ErrAlreadyExists
		}
		return mapError("create promo code", err)
	}
	return nil
}

func (r *PromoRepository) Save(ctx context.Context, c *domainpromo.Code) error {
	const stmt = `UPDATE promo_codes SET usage_count = $2, updated_at = $3 WHERE code = $1`
	tag, err := conn(ctx, r.db).Exec(ctx, stmt, c.Code, c.UsageCount, c.UpdatedAt)
	if err != nil {
		return mapError("save promo code", err)
	}
	if tag.RowsAffected() == 0 {
		return domainpromo.ErrUnknown
	}
	return nil
}

var _ domainpromo.Repository = (*PromoRepository)(nil)
