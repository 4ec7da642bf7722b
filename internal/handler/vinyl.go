package handler

import (
	"net/http"

	"github.com/sakif/vinyl-storefront/internal/service"
)

// VinylHandler serves the catalog.
type VinylHandler struct {
	catalog *service.CatalogService
}

func NewVinylHandler(catalog *service.CatalogService) *VinylHandler {
	return &VinylHandler{catalog: catalog}
}

// HandleList returns the catalog. Staff also see hidden and sold-out items.
//
// HTTP: GET /api/vinyls
func (h *VinylHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	vinyls, err := h.catalog.List(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vinyls)
}

// HandleSearch matches title or artist.
//
// HTTP: GET /api/vinyls/search?q=billie
func (h *VinylHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	vinyls, err := h.catalog.Search(r.Context(), session(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vinyls)
}

// HandleGet returns one item.
//
// HTTP: GET /api/vinyls/{id}
func (h *VinylHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleCreate adds an item. Staff only.
//
// HTTP: POST /api/vinyls
// REQUEST BODY: {"titulo":"...","artista":"...","stock":10,"precio":"39990","isAvailable":true}
func (h *VinylHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.VinylInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.catalog.Create(r.Context(), session(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleUpdate replaces an item's editable fields. Staff only.
//
// HTTP: PUT /api/vinyls/{id}
func (h *VinylHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in service.VinylInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.catalog.Update(r.Context(), session(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type stockRequest struct {
	Stock *int `json:"stock"`
}

// HandleSetStock sets the stock count. Staff only.
//
// HTTP: PATCH /api/vinyls/{id}/stock
// REQUEST BODY: {"stock": 12}
func (h *VinylHandler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Stock == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "stock is required",
			Field:   "stock",
		})
		return
	}
	v, err := h.catalog.SetStock(r.Context(), session(r), id, *req.Stock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type availabilityRequest struct {
	IsAvailable bool `json:"isAvailable"`
}

// HandleSetAvailability puts an item on sale or takes it off. Staff only.
//
// HTTP: PATCH /api/vinyls/{id}/availability
func (h *VinylHandler) HandleSetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.catalog.SetAvailability(r.Context(), session(r), id, req.IsAvailable)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDelete removes an item. Staff only.
//
// HTTP: DELETE /api/vinyls/{id}
func (h *VinylHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.catalog.Delete(r.Context(), session(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
