package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/cart"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// CartService manages the signed-in user's cart against the live catalog.
type CartService struct {
	vinyls repository.VinylRepository
	carts  *cart.Store
}

func NewCartService(vinyls repository.VinylRepository, carts *cart.Store) *CartService {
	return &CartService{
		vinyls: vinyls,
		carts:  carts,
	}
}

// CartView is the cart as the storefront renders it.
type CartView struct {
	Items []cart.Item     `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func (s *CartService) View(_ context.Context, sess auth.Session) (*CartView, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	return view(s.carts.For(sess.UserID)), nil
}

// Add puts one copy of a vinyl in the cart. The item must be on sale and
// have stock for one more copy than the cart already holds.
func (s *CartService) Add(ctx context.Context, sess auth.Session, vinylID int64) (*CartView, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	v, err := s.vinyls.GetByID(ctx, vinylID)
	if err != nil {
		return nil, fmt.Errorf("getting vinyl %d: %w", vinylID, err)
	}
	if v == nil {
		return nil, apperror.NotFound("vinyl", strconv.FormatInt(vinylID, 10))
	}
	if !v.IsAvailable {
		return nil, apperror.ConflictMessage(fmt.Sprintf("%q is not available", v.Titulo))
	}

	c := s.carts.For(sess.UserID)
	if quantityOf(c, vinylID)+1 > v.Stock {
		return nil, apperror.ConflictMessage(fmt.Sprintf("not enough stock for %q", v.Titulo))
	}
	c.Add(*v)
	return view(c), nil
}

// SetQuantity changes how many copies of an item are in the cart. Zero or
// less removes the item.
func (s *CartService) SetQuantity(ctx context.Context, sess auth.Session, vinylID int64, quantity int) (*CartView, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	c := s.carts.For(sess.UserID)
	if quantity > 0 {
		v, err := s.vinyls.GetByID(ctx, vinylID)
		if err != nil {
			return nil, fmt.Errorf("getting vinyl %d: %w", vinylID, err)
		}
		if v == nil {
			return nil, apperror.NotFound("vinyl", strconv.FormatInt(vinylID, 10))
		}
		if quantity > v.Stock {
			return nil, apperror.ConflictMessage(fmt.Sprintf("not enough stock for %q", v.Titulo))
		}
	}
	if !c.SetQuantity(vinylID, quantity) {
		return nil, apperror.NotFound("cart item", strconv.FormatInt(vinylID, 10))
	}
	return view(c), nil
}

func (s *CartService) Remove(_ context.Context, sess auth.Session, vinylID int64) (*CartView, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	c := s.carts.For(sess.UserID)
	if !c.Remove(vinylID) {
		return nil, apperror.NotFound("cart item", strconv.FormatInt(vinylID, 10))
	}
	return view(c), nil
}

func (s *CartService) Clear(_ context.Context, sess auth.Session) error {
	if sess.UserID == 0 {
		return apperror.Unauthorized("valid authentication required")
	}
	s.carts.For(sess.UserID).Clear()
	return nil
}

func view(c *cart.Cart) *CartView {
	return &CartView{
		Items: c.Items(),
		Total: c.Total(),
		Count: c.Count(),
	}
}

func quantityOf(c *cart.Cart, vinylID int64) int {
	for _, it := range c.Items() {
		if it.VinylID == vinylID {
			return it.Quantity
		}
	}
	return 0
}
