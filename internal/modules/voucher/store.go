// README: Voucher store backed by PostgreSQL; usage changes are single conditional UPDATEs.
package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, v *Voucher) error
	GetByCode(ctx context.Context, code string) (*Voucher, error)
	Deactivate(ctx context.Context, code string) error
	// IncrementUsage returns false when the voucher was not usable at now.
	IncrementUsage(ctx context.Context, code string, now time.Time) (*Voucher, bool, error)
	DecrementUsage(ctx context.Context, code string, now time.Time) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const voucherColumns = `id, code, discount_percentage, expiry_date, is_active, usage_count, max_usage`

func scanVoucher(row pgx.Row) (*Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Code, &v.DiscountPercentage, &v.ExpiryDate, &v.IsActive, &v.UsageCount, &v.MaxUsage)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) Create(ctx context.Context, v *Voucher) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO vouchers (code, discount_percentage, expiry_date, is_active, usage_count, max_usage)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		v.Code, v.DiscountPercentage, v.ExpiryDate, v.IsActive, v.UsageCount, v.MaxUsage,
	).Scan(&v.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (s *Store) GetByCode(ctx context.Context, code string) (*Voucher, error) {
	v, err := scanVoucher(s.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *Store) Deactivate(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `UPDATE vouchers SET is_active = FALSE WHERE code = $1`, code)
	return err
}

func (s *Store) IncrementUsage(ctx context.Context, code string, now time.Time) (*Voucher, bool, error) {
	v, err := scanVoucher(s.db.QueryRow(ctx, `
		UPDATE vouchers
		SET usage_count = usage_count + 1,
		    is_active = (usage_count + 1 < max_usage)
		WHERE code = $1
		  AND is_active
		  AND expiry_date > $2
		  AND usage_count < max_usage
		RETURNING `+voucherColumns,
		code, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) DecrementUsage(ctx context.Context, code string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE vouchers
		SET usage_count = usage_count - 1,
		    is_active = (expiry_date > $2)
		WHERE code = $1 AND usage_count > 0`,
		code, now,
	)
	return err
}
