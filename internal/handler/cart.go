package handler

import (
	"net/http"

	"github.com/sakif/vinyl-storefront/internal/service"
)

// CartHandler exposes the signed-in user's cart. Every route requires auth.
type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// HandleView returns the items, total and count.
//
// HTTP: GET /api/cart
func (h *CartHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.View(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type cartItemRequest struct {
	VinylID  int64 `json:"vinylId"`
	Quantity *int  `json:"quantity,omitempty"`
}

// HandleAdd adds one copy, or sets the quantity when "quantity" is given.
//
// HTTP: POST /api/cart/items
// REQUEST BODY: {"vinylId": 1} or {"vinylId": 1, "quantity": 3}
func (h *CartHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		view *service.CartView
		err  error
	)
	if req.Quantity != nil {
		view, err = h.carts.SetQuantity(r.Context(), session(r), req.VinylID, *req.Quantity)
	} else {
		view, err = h.carts.Add(r.Context(), session(r), req.VinylID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleRemove drops one line.
//
// HTTP: DELETE /api/cart/items/{id}
func (h *CartHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.carts.Remove(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleClear empties the cart.
//
// HTTP: DELETE /api/cart
func (h *CartHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), session(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
