package model

import "github.com/shopspring/decimal"

// Vinyl is a catalog item.
//
// Descripcion and Tracklist are ordered string sequences. The Vinyls table
// stores them as JSON text; the repository encodes on write and decodes on
// read, so callers only ever see slices.
//
// Precio uses decimal.Decimal rather than float64 so peso amounts add up
// exactly through storage, cart totals and order lines.
type Vinyl struct {
	ID          int64           `json:"id"`
	Titulo      string          `json:"titulo"`
	Artista     string          `json:"artista"`
	Imagen      string          `json:"imagen"`
	Descripcion []string        `json:"descripcion"`
	Tracklist   []string        `json:"tracklist"`
	Stock       int             `json:"stock"`
	Precio      decimal.Decimal `json:"precio"`
	IsAvailable bool            `json:"isAvailable"`
}
