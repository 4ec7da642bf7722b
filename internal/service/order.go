package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/cart"
	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// PaymentMethods the checkout accepts.
var PaymentMethods = []string{"card", "transfer", "cash"}

// OrderService turns carts into orders and moves orders through their
// lifecycle.
//
// STOCK:
// Checkout takes stock with VinylRepository.AdjustStock, which only succeeds
// when enough copies remain. There is no transaction across the lines, so if
// a later step fails the lines already taken are put back.
type OrderService struct {
	orders repository.OrderRepository
	vinyls repository.VinylRepository
	carts  *cart.Store
	logger *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, vinyls repository.VinylRepository, carts *cart.Store, logger *slog.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		vinyls: vinyls,
		carts:  carts,
		logger: logger,
	}
}

// Checkout places an order for everything in the caller's cart at current
// catalog prices, then empties the cart.
func (s *OrderService) Checkout(ctx context.Context, sess auth.Session, paymentMethod string) (*model.Order, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	paymentMethod = strings.ToLower(strings.TrimSpace(paymentMethod))
	if paymentMethod == "" {
		paymentMethod = PaymentMethods[0]
	}
	if !validPaymentMethod(paymentMethod) {
		return nil, apperror.ValidationFailed("paymentMethod",
			fmt.Sprintf("payment method must be one of %s", strings.Join(PaymentMethods, ", ")))
	}

	c := s.carts.For(sess.UserID)
	items := c.Items()
	if len(items) == 0 {
		return nil, apperror.ValidationFailed("cart", "your cart is empty")
	}

	lines := make([]model.OrderLine, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		v, err := s.vinyls.GetByID(ctx, it.VinylID)
		if err != nil {
			return nil, fmt.Errorf("getting vinyl %d: %w", it.VinylID, err)
		}
		if v == nil {
			return nil, apperror.NotFound("vinyl", strconv.FormatInt(it.VinylID, 10))
		}
		if !v.IsAvailable {
			return nil, apperror.ConflictMessage(fmt.Sprintf("%q is not available", v.Titulo))
		}
		if v.Stock < it.Quantity {
			return nil, apperror.ConflictMessage(fmt.Sprintf("not enough stock for %q", v.Titulo))
		}
		line := model.OrderLine{
			VinylID:   v.ID,
			Titulo:    v.Titulo,
			Artista:   v.Artista,
			Quantity:  it.Quantity,
			UnitPrice: v.Precio,
		}
		lines = append(lines, line)
		total = total.Add(line.Subtotal())
	}

	for i, line := range lines {
		if err := s.vinyls.AdjustStock(ctx, line.VinylID, -line.Quantity); err != nil {
			s.restock(ctx, lines[:i])
			if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("reserving stock for vinyl %d: %w", line.VinylID, err)
		}
	}

	order := &model.Order{
		UserID:        sess.UserID,
		Status:        model.OrderPending,
		TotalAmount:   total,
		OrderDetails:  lines,
		PaymentMethod: paymentMethod,
	}
	if _, err := s.orders.Create(ctx, order); err != nil {
		s.restock(ctx, lines)
		return nil, fmt.Errorf("creating order for user %d: %w", sess.UserID, err)
	}

	c.Clear()
	s.logger.Info("order placed",
		slog.Int64("orderID", order.ID),
		slog.String("reference", order.Reference),
		slog.Int64("userID", sess.UserID),
		slog.String("total", total.String()),
		slog.Int("lines", len(lines)),
	)
	return order, nil
}

// ListMine returns the caller's own orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, sess auth.Session) ([]model.Order, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	orders, err := s.orders.GetByUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", sess.UserID, err)
	}
	return orders, nil
}

// ListAll returns a page of every order. Staff only.
func (s *OrderService) ListAll(ctx context.Context, actor auth.Session, opts repository.ListOptions) ([]model.Order, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	orders, err := s.orders.GetAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// Get returns one order. Customers only see their own; someone else's order
// is reported as not found rather than forbidden.
func (s *OrderService) Get(ctx context.Context, actor auth.Session, id int64) (*model.Order, error) {
	if actor.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if o == nil || (o.UserID != actor.UserID && !actor.IsStaff()) {
		return nil, apperror.NotFound("order", strconv.FormatInt(id, 10))
	}
	return o, nil
}

// UpdateStatus moves an order to next. Staff only. Canceling puts the
// order's copies back in stock.
func (s *OrderService) UpdateStatus(ctx context.Context, actor auth.Session, id int64, next model.OrderStatus) (*model.Order, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", next))
	}

	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, apperror.ConflictMessage(
			fmt.Sprintf("order cannot move from %s to %s", o.Status, next))
	}

	if err := s.orders.UpdateStatus(ctx, id, next); err != nil {
		return nil, fmt.Errorf("updating status of order %d: %w", id, err)
	}
	if next == model.OrderCanceled {
		s.restock(ctx, o.OrderDetails)
	}

	s.logger.Info("order status changed",
		slog.Int64("orderID", id),
		slog.String("from", string(o.Status)),
		slog.String("to", string(next)),
		slog.Int64("actor", actor.UserID),
	)
	return s.Get(ctx, actor, id)
}

// restock gives copies back. Failures are logged and not returned.
func (s *OrderService) restock(ctx context.Context, lines []model.OrderLine) {
	for _, line := range lines {
		if err := s.vinyls.AdjustStock(ctx, line.VinylID, line.Quantity); err != nil {
			s.logger.Warn("failed to restock vinyl",
				slog.Int64("vinylID", line.VinylID),
				slog.Int("quantity", line.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

func validPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}
