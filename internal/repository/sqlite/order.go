package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

const orderColumns = `id, reference, userId, status, createdAt, updatedAt, totalAmount, orderDetails, paymentMethod`

// OrderRepo stores placed orders in the Orders table.
type OrderRepo struct {
	db *DB
}

// Create inserts an order. It generates the public Reference, stamps
// CreatedAt/UpdatedAt and defaults Status to Pending, writing all of
// them plus the new id back into o.
//
// o.UserID must name an existing user; the foreign key rejects anything else.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) (int64, error) {
	if o.Status == "" {
		o.Status = model.OrderPending
	}
	if o.Reference == "" {
		// xid is k-sortable and URL-safe, so references double as a
		// creation-ordered public order number.
		o.Reference = xid.New().String()
	}
	details, err := encodeOrderLines(o.OrderDetails)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()

	res, err := r.db.Execute(ctx,
		`INSERT INTO Orders (reference, userId, status, createdAt, updatedAt, totalAmount, orderDetails, paymentMethod)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Reference,
		o.UserID,
		string(o.Status),
		formatTime(now),
		formatTime(now),
		o.TotalAmount.String(),
		details,
		nullable(o.PaymentMethod),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting order for user %d: %w", o.UserID, err)
	}

	o.ID = res.LastInsertID
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.OrderDetails == nil {
		o.OrderDetails = []model.OrderLine{}
	}
	return o.ID, nil
}

// GetAll returns a page of orders, newest first.
func (r *OrderRepo) GetAll(ctx context.Context, opts repository.ListOptions) ([]model.Order, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	return r.list(ctx,
		`SELECT `+orderColumns+` FROM Orders ORDER BY createdAt DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// GetByID returns (nil, nil) when the order does not exist.
func (r *OrderRepo) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	res, err := r.db.Execute(ctx, `SELECT `+orderColumns+` FROM Orders WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting order %d: %w", id, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	o, err := scanOrder(res.Rows[0])
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByUser returns every order of one user, newest first.
func (r *OrderRepo) GetByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM Orders WHERE userId = ? ORDER BY createdAt DESC, id DESC`,
		userID,
	)
}

// UpdateStatus stores the new status and bumps UpdatedAt. Whether the
// transition is allowed is OrderService's decision; the table only rejects
// unknown statuses.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	res, err := r.db.Execute(ctx,
		`UPDATE Orders SET status = ?, updatedAt = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating status of order %d: %w", id, err)
	}
	return requireAffected(res, "order", id)
}

func (r *OrderRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Execute(ctx, `DELETE FROM Orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting order %d: %w", id, err)
	}
	return requireAffected(res, "order", id)
}

func (r *OrderRepo) list(ctx context.Context, stmt string, args ...any) ([]model.Order, error) {
	res, err := r.db.Execute(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing orders: %w", err)
	}
	orders := make([]model.Order, 0, len(res.Rows))
	for _, row := range res.Rows {
		o, err := scanOrder(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func scanOrder(row Row) (model.Order, error) {
	r := rowReader{row: row}
	o := model.Order{
		ID:            r.int64("id"),
		Reference:     r.string("reference"),
		UserID:        r.int64("userId"),
		Status:        model.OrderStatus(r.string("status")),
		CreatedAt:     r.time("createdAt"),
		UpdatedAt:     r.time("updatedAt"),
		TotalAmount:   r.decimal("totalAmount"),
		PaymentMethod: r.string("paymentMethod"),
	}
	if r.err != nil {
		return model.Order{}, r.err
	}
	lines, err := decodeOrderLines(r.string("orderDetails"))
	if err != nil {
		return model.Order{}, err
	}
	o.OrderDetails = lines
	return o, nil
}
