package handler

import (
	"net/http"
	"strconv"

	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
	"github.com/sakif/vinyl-storefront/internal/service"
)

// OrderHandler covers checkout, order history and the staff order desk.
type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

// HandleCheckout turns the caller's cart into an order.
//
// HTTP: POST /api/orders/checkout
// REQUEST BODY: {"paymentMethod":"card"} (optional)
func (h *OrderHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	order, err := h.orders.Checkout(r.Context(), session(r), req.PaymentMethod)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// HandleListMine returns the caller's orders, newest first.
//
// HTTP: GET /api/orders
func (h *OrderHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMine(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// HandleGet returns one order: the caller's own, or any order for staff.
//
// HTTP: GET /api/orders/{id}
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.orders.Get(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// HandleListAll returns a page of every order. Staff only.
//
// HTTP: GET /api/admin/orders?limit=50&offset=0
//
// Bad or missing numbers fall back to the defaults rather than failing.
func (h *OrderHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.orders.ListAll(r.Context(), session(r), repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// HandleUpdateStatus moves an order along its lifecycle. Staff only.
//
// HTTP: PATCH /api/admin/orders/{id}/status
// REQUEST BODY: {"status":"Shipped"}
func (h *OrderHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.orders.UpdateStatus(r.Context(), session(r), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
