package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

var _ repository.VinylRepository = (*VinylRepo)(nil)

const vinylColumns = `id, titulo, artista, imagen, descripcion, tracklist, stock, precio, isAvailable`

// VinylRepo stores the catalog in the Vinyls table.
type VinylRepo struct {
	db *DB
}

// Create inserts a catalog item and writes the new id back into v.
// Two items with the same titulo and artista are a unique ConstraintViolation.
func (r *VinylRepo) Create(ctx context.Context, v *model.Vinyl) (int64, error) {
	desc, tracks, err := encodeVinylLists(v)
	if err != nil {
		return 0, err
	}
	res, err := r.db.Execute(ctx,
		`INSERT INTO Vinyls (`+strings.TrimPrefix(vinylColumns, "id, ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Titulo,
		v.Artista,
		v.Imagen,
		desc,
		tracks,
		v.Stock,
		v.Precio.String(),
		boolToInt(v.IsAvailable),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting vinyl %q: %w", v.Titulo, err)
	}
	v.ID = res.LastInsertID
	return v.ID, nil
}

func (r *VinylRepo) GetAll(ctx context.Context) ([]model.Vinyl, error) {
	return r.list(ctx, `SELECT `+vinylColumns+` FROM Vinyls ORDER BY id`)
}

// GetAvailable lists the items shown in the storefront: flagged available
// and in stock.
func (r *VinylRepo) GetAvailable(ctx context.Context) ([]model.Vinyl, error) {
	return r.list(ctx,
		`SELECT `+vinylColumns+` FROM Vinyls WHERE isAvailable = 1 AND stock > 0 ORDER BY id`,
	)
}

// Search matches term against titulo and artista, case-insensitively for
// ASCII letters. An empty term lists everything.
func (r *VinylRepo) Search(ctx context.Context, term string) ([]model.Vinyl, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.GetAll(ctx)
	}
	pattern := "%" + escapeLike(term) + "%"
	return r.list(ctx,
		`SELECT `+vinylColumns+` FROM Vinyls
		 WHERE titulo LIKE ? ESCAPE '\' OR artista LIKE ? ESCAPE '\'
		 ORDER BY id`,
		pattern, pattern,
	)
}

// GetByID returns (nil, nil) when the item does not exist.
func (r *VinylRepo) GetByID(ctx context.Context, id int64) (*model.Vinyl, error) {
	res, err := r.db.Execute(ctx, `SELECT `+vinylColumns+` FROM Vinyls WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting vinyl %d: %w", id, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	v, err := scanVinyl(res.Rows[0])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update overwrites every column of the item with id v.ID.
func (r *VinylRepo) Update(ctx context.Context, v *model.Vinyl) error {
	desc, tracks, err := encodeVinylLists(v)
	if err != nil {
		return err
	}
	res, err := r.db.Execute(ctx,
		`UPDATE Vinyls
		 SET titulo = ?, artista = ?, imagen = ?, descripcion = ?, tracklist = ?,
		     stock = ?, precio = ?, isAvailable = ?
		 WHERE id = ?`,
		v.Titulo, v.Artista, v.Imagen, desc, tracks,
		v.Stock, v.Precio.String(), boolToInt(v.IsAvailable),
		v.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating vinyl %d: %w", v.ID, err)
	}
	return requireAffected(res, "vinyl", v.ID)
}

// UpdateStock sets the stock count as given. The table has no lower bound on
// stock; CatalogService rejects negative values before they get here.
func (r *VinylRepo) UpdateStock(ctx context.Context, id int64, stock int) error {
	res, err := r.db.Execute(ctx, `UPDATE Vinyls SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating stock of vinyl %d: %w", id, err)
	}
	return requireAffected(res, "vinyl", id)
}

// AdjustStock adds delta to the stock count in one statement. A delta that
// would take stock below zero changes nothing and returns a conflict, so two
// concurrent checkouts can never oversell the last copy.
func (r *VinylRepo) AdjustStock(ctx context.Context, id int64, delta int) error {
	res, err := r.db.Execute(ctx,
		`UPDATE Vinyls SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`,
		delta, id, delta,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adjusting stock of vinyl %d: %w", id, err)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperror.NotFound("vinyl", strconv.FormatInt(id, 10))
	}
	return apperror.ConflictMessage(fmt.Sprintf("insufficient stock for %q", existing.Titulo))
}

func (r *VinylRepo) SetAvailability(ctx context.Context, id int64, available bool) error {
	res, err := r.db.Execute(ctx,
		`UPDATE Vinyls SET isAvailable = ? WHERE id = ?`,
		boolToInt(available), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating availability of vinyl %d: %w", id, err)
	}
	return requireAffected(res, "vinyl", id)
}

// Delete removes the item. Orders keep their own copy of the line data, so
// past orders are unaffected.
func (r *VinylRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Execute(ctx, `DELETE FROM Vinyls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting vinyl %d: %w", id, err)
	}
	return requireAffected(res, "vinyl", id)
}

func (r *VinylRepo) list(ctx context.Context, stmt string, args ...any) ([]model.Vinyl, error) {
	res, err := r.db.Execute(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing vinyls: %w", err)
	}
	vinyls := make([]model.Vinyl, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, err := scanVinyl(row)
		if err != nil {
			return nil, err
		}
		vinyls = append(vinyls, v)
	}
	return vinyls, nil
}

func encodeVinylLists(v *model.Vinyl) (desc, tracks string, err error) {
	if desc, err = encodeStrings(v.Descripcion); err != nil {
		return "", "", err
	}
	if tracks, err = encodeStrings(v.Tracklist); err != nil {
		return "", "", err
	}
	return desc, tracks, nil
}

func scanVinyl(row Row) (model.Vinyl, error) {
	r := rowReader{row: row}
	v := model.Vinyl{
		ID:          r.int64("id"),
		Titulo:      r.string("titulo"),
		Artista:     r.string("artista"),
		Imagen:      r.string("imagen"),
		Descripcion: r.strings("descripcion"),
		Tracklist:   r.strings("tracklist"),
		Stock:       r.int("stock"),
		Precio:      r.decimal("precio"),
		IsAvailable: r.bool("isAvailable"),
	}
	if r.err != nil {
		return model.Vinyl{}, r.err
	}
	return v, nil
}

// escapeLike escapes LIKE wildcards so a search for "100%" matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
