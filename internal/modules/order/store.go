// README: Order store backed by PostgreSQL (checkout transaction, versioned status updates, events).
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fulfil/internal/types"
)

type Repository interface {
	CartLines(ctx context.Context, customerID types.ID) ([]CartLine, error)
	// CreateFromCart inserts the order and its items and removes exactly the
	// snapshotted cart lines, atomically. A cart that no longer holds those
	// lines yields ErrConflict.
	CreateFromCart(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id types.ID) (bool, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CartLines(ctx context.Context, customerID types.ID) ([]CartLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.product_id, c.quantity, c.size, p.price
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.customer_id = $1
		ORDER BY c.product_id, c.size`, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Size, &l.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CreateFromCart(ctx context.Context, o *Order) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if o.ShippingAddressID != nil {
			if err := checkAddressOwner(ctx, tx, *o.ShippingAddressID, o.CustomerID); err != nil {
				return err
			}
		}
		if err := lockCartLines(ctx, tx, o); err != nil {
			return err
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO orders (
				customer_id, order_status, status_version, fulfilment_staff_id,
				subtotal, discount, shipping_fee, total,
				shipping_address_id, contact_name, contact_phone, contact_email,
				voucher_id, payment_reference
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7, $8,
				$9, $10, $11, $12,
				$13, $14
			)
			RETURNING id, order_date`,
			o.CustomerID, string(o.Status), o.StatusVersion, o.FulfilmentStaffID,
			o.Subtotal, o.Discount, o.ShippingFee, o.Total,
			o.ShippingAddressID, o.ContactName, o.ContactPhone, o.ContactEmail,
			o.VoucherID, o.PaymentReference,
		).Scan(&o.ID, &o.OrderDate)
		if err != nil {
			return err
		}

		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, product_id, price, quantity, size)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				it.OrderID, it.ProductID, it.Price, it.Quantity, it.Size,
			).Scan(&it.ID)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				DELETE FROM cart_items
				WHERE customer_id = $1 AND product_id = $2 AND size = $3`,
				o.CustomerID, it.ProductID, it.Size,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: referenced %s does not exist", ErrBadRequest, pgErr.ColumnName)
	}
	return err
}

func checkAddressOwner(ctx context.Context, tx pgx.Tx, addressID, customerID types.ID) error {
	var owner types.ID
	err := tx.QueryRow(ctx, `SELECT customer_id FROM addresses WHERE id = $1`, addressID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: shipping address %d not found", ErrBadRequest, addressID)
	}
	if err != nil {
		return err
	}
	if owner != customerID {
		return fmt.Errorf("%w: shipping address %d belongs to another customer", ErrBadRequest, addressID)
	}
	return nil
}

type cartKey struct {
	productID types.ID
	size      string
}

func cartKeyOf(productID types.ID, size decimal.Decimal) cartKey {
	return cartKey{productID: productID, size: size.StringFixed(1)}
}

// lockCartLines row-locks the customer's cart and checks every order item is
// still there with the same quantity. A concurrent checkout of the same cart
// blocks here and then sees its lines gone.
func lockCartLines(ctx context.Context, tx pgx.Tx, o *Order) error {
	rows, err := tx.Query(ctx, `
		SELECT product_id, size, quantity
		FROM cart_items
		WHERE customer_id = $1
		FOR UPDATE`, o.CustomerID,
	)
	if err != nil {
		return err
	}
	current := map[cartKey]int{}
	for rows.Next() {
		var (
			productID types.ID
			size      decimal.Decimal
			qty       int
		)
		if err := rows.Scan(&productID, &size, &qty); err != nil {
			rows.Close()
			return err
		}
		current[cartKeyOf(productID, size)] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, it := range o.Items {
		qty, ok := current[cartKeyOf(it.ProductID, it.Size)]
		if !ok || qty != it.Quantity {
			return fmt.Errorf("%w: cart changed during checkout", ErrConflict)
		}
	}
	return nil
}

const orderColumns = `id, order_date, customer_id, order_status, status_version, fulfilment_staff_id,
	subtotal, discount, shipping_fee, total,
	shipping_address_id, contact_name, contact_phone, contact_email,
	voucher_id, payment_reference`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderDate, &o.CustomerID, &o.Status, &o.StatusVersion, &o.FulfilmentStaffID,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.Total,
		&o.ShippingAddressID, &o.ContactName, &o.ContactPhone, &o.ContactEmail,
		&o.VoucherID, &o.PaymentReference,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY order_date DESC, id DESC`, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) attachItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	byID := make(map[types.ID]*Order, len(orders))
	for _, o := range orders {
		ids = append(ids, int64(o.ID))
		byID[o.ID] = o
		o.Items = []Item{}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, price, quantity, size
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Price, &it.Quantity, &it.Size); err != nil {
			return err
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET order_status = $1,
		    status_version = status_version + 1
		WHERE id = $2 AND order_status = $3 AND status_version = $4`,
		string(to),
		id,
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.OrderID,
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		e.ActorID,
		e.CreatedAt,
	).Scan(&e.ID)
}

func (s *Store) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
