package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

const (
	nextOrderNumberSQL = `SELECT nextval('order_number_seq')`

	insertOrderSQL = `INSERT INTO orders
		(id, order_number, customer_name, customer_email, customer_phone,
		 shipping, items, subtotal, shipping_price, discount_code, discount_amount,
		 total, currency, payment_method, payment_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	orderColumns = `id, order_number, customer_name, customer_email, customer_phone,
		shipping, items, subtotal, shipping_price, discount_code, discount_amount,
		total, currency, payment_method, payment_status, status,
		payment_ref, tracking_ref, review_reason,
		created_at, updated_at, shipped_at, delivered_at, estimated_delivery`

	updateStatusSQL = `UPDATE orders SET status = $2, updated_at = now(),
		delivered_at = CASE WHEN $2 = 'delivered' THEN now() ELSE delivered_at END
		WHERE id = $1`

	setPaymentIntentSQL = `UPDATE orders SET payment_ref = $2, updated_at = now() WHERE id = $1`

	setShipmentSQL = `UPDATE orders SET tracking_ref = $2, estimated_delivery = $3,
		status = 'shipped', shipped_at = now(), updated_at = now()
		WHERE id = $1 AND tracking_ref = ''`

	markReviewSQL = `UPDATE orders SET review_reason = $2, updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The item
// snapshot and the shipping selection are serialized to JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert persists a new order, assigning its unique human order number from
// the database sequence. The number never changes afterwards.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	var seq int64
	if err := r.pool.QueryRow(ctx, nextOrderNumberSQL).Scan(&seq); err != nil {
		return fmt.Errorf("allocating order number: %w", err)
	}
	o.Number = fmt.Sprintf("SO-%d", seq)

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shippingJSON, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping selection: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		shippingJSON, itemsJSON, o.Subtotal, o.ShippingPrice, o.DiscountCode,
		o.DiscountAmount, o.Total, o.Currency, string(o.PaymentMethod),
		string(o.PaymentStatus), string(o.Status),
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByNumber returns a single order by its human order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

// GetByPaymentRef returns the order a gateway payment reference belongs to.
func (r *OrderRepository) GetByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_ref = $1`, ref)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

// UpdateStatus persists a status change. The legality of the transition is
// checked by the caller against the transition table.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// SetPaymentIntent attaches the gateway reference to the order.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, id, paymentRef string) error {
	tag, err := r.pool.Exec(ctx, setPaymentIntentSQL, id, paymentRef)
	if err != nil {
		return fmt.Errorf("attaching payment intent to order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// SetShipment records the tracking reference and moves the order to shipped.
// The tracking_ref guard makes the write idempotent: a second dispatch never
// overwrites the first shipment.
func (r *OrderRepository) SetShipment(ctx context.Context, id, trackingRef string, estimatedDelivery time.Time) error {
	_, err := r.pool.Exec(ctx, setShipmentSQL, id, trackingRef, estimatedDelivery)
	if err != nil {
		return fmt.Errorf("recording shipment for order %q: %w", id, err)
	}
	return nil
}

// MarkReview flags the order for manual review.
func (r *OrderRepository) MarkReview(ctx context.Context, id, reason string) error {
	_, err := r.pool.Exec(ctx, markReviewSQL, id, reason)
	if err != nil {
		return fmt.Errorf("flagging order %q for review: %w", id, err)
	}
	return nil
}

// Search lists orders matching the filter, newest first.
func (r *OrderRepository) Search(ctx context.Context, filter order.SearchFilter) ([]order.Order, error) {
	builder := sq.Select(orderColumns).
		From("orders").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.PaymentStatus != "" {
		builder = builder.Where(sq.Eq{"payment_status": string(filter.PaymentStatus)})
	}
	if filter.CreatedAfter != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *filter.CreatedAfter})
	}
	if filter.CreatedBefore != nil {
		builder = builder.Where(sq.Lt{"created_at": *filter.CreatedBefore})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order search query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                         order.Order
		shippingJSON, itemsJSON   []byte
		method, payStatus, status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&shippingJSON, &itemsJSON, &o.Subtotal, &o.ShippingPrice, &o.DiscountCode,
		&o.DiscountAmount, &o.Total, &o.Currency, &method, &payStatus, &status,
		&o.PaymentRef, &o.TrackingRef, &o.ReviewReason,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt, &o.EstimatedDelivery,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(shippingJSON, &o.Shipping); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling shipping selection: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}

	o.PaymentMethod = payment.Method(method)
	o.PaymentStatus = order.PaymentStatus(payStatus)
	o.Status = order.Status(status)
	return o, nil
}
