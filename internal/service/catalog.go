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
	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// CatalogService serves the vinyl catalog. Reads are public; writes are
// staff only.
type CatalogService struct {
	vinyls repository.VinylRepository
	logger *slog.Logger
}

func NewCatalogService(vinyls repository.VinylRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		vinyls: vinyls,
		logger: logger,
	}
}

// VinylInput is the editable part of a catalog item.
type VinylInput struct {
	Titulo      string          `json:"titulo"`
	Artista     string          `json:"artista"`
	Imagen      string          `json:"imagen"`
	Descripcion []string        `json:"descripcion"`
	Tracklist   []string        `json:"tracklist"`
	Stock       int             `json:"stock"`
	Precio      decimal.Decimal `json:"precio"`
	IsAvailable bool            `json:"isAvailable"`
}

func (in *VinylInput) validate() error {
	in.Titulo = strings.TrimSpace(in.Titulo)
	in.Artista = strings.TrimSpace(in.Artista)
	in.Imagen = strings.TrimSpace(in.Imagen)

	if in.Titulo == "" {
		return apperror.ValidationFailed("titulo", "title is required")
	}
	if len(in.Titulo) > MaxTitleLength {
		return apperror.ValidationFailed("titulo",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if in.Artista == "" {
		return apperror.ValidationFailed("artista", "artist is required")
	}
	if in.Stock < 0 {
		return apperror.ValidationFailed("stock", "stock cannot be negative")
	}
	if in.Precio.IsNegative() {
		return apperror.ValidationFailed("precio", "price cannot be negative")
	}
	return nil
}

func (in VinylInput) apply(v *model.Vinyl) {
	v.Titulo = in.Titulo
	v.Artista = in.Artista
	v.Imagen = in.Imagen
	v.Descripcion = in.Descripcion
	v.Tracklist = in.Tracklist
	v.Stock = in.Stock
	v.Precio = in.Precio
	v.IsAvailable = in.IsAvailable
}

// List returns the catalog. Staff see every item; everyone else sees only
// items that are available and in stock.
func (s *CatalogService) List(ctx context.Context, actor auth.Session) ([]model.Vinyl, error) {
	var (
		vinyls []model.Vinyl
		err    error
	)
	if actor.IsStaff() {
		vinyls, err = s.vinyls.GetAll(ctx)
	} else {
		vinyls, err = s.vinyls.GetAvailable(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("listing vinyls: %w", err)
	}
	return vinyls, nil
}

// Get returns one item or apperror.ErrNotFound.
func (s *CatalogService) Get(ctx context.Context, id int64) (*model.Vinyl, error) {
	v, err := s.vinyls.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting vinyl %d: %w", id, err)
	}
	if v == nil {
		return nil, apperror.NotFound("vinyl", strconv.FormatInt(id, 10))
	}
	return v, nil
}

// Search matches title and artist. Hidden items are left out for non-staff.
func (s *CatalogService) Search(ctx context.Context, actor auth.Session, term string) ([]model.Vinyl, error) {
	found, err := s.vinyls.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("searching vinyls: %w", err)
	}
	if actor.IsStaff() {
		return found, nil
	}
	visible := found[:0]
	for _, v := range found {
		if v.IsAvailable && v.Stock > 0 {
			visible = append(visible, v)
		}
	}
	return visible, nil
}

func (s *CatalogService) Create(ctx context.Context, actor auth.Session, in VinylInput) (*model.Vinyl, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	v := &model.Vinyl{}
	in.apply(v)
	if _, err := s.vinyls.Create(ctx, v); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMessage("this album is already in the catalog")
		}
		return nil, fmt.Errorf("creating vinyl %q: %w", in.Titulo, err)
	}

	s.logger.Info("vinyl created",
		slog.Int64("id", v.ID),
		slog.String("titulo", v.Titulo),
		slog.Int64("actor", actor.UserID),
	)
	return v, nil
}

func (s *CatalogService) Update(ctx context.Context, actor auth.Session, id int64, in VinylInput) (*model.Vinyl, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(v)
	if err := s.vinyls.Update(ctx, v); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMessage("this album is already in the catalog")
		}
		return nil, fmt.Errorf("updating vinyl %d: %w", id, err)
	}
	return v, nil
}

// SetStock sets the stock count. The storage layer accepts any integer, so
// negative stock is refused here.
func (s *CatalogService) SetStock(ctx context.Context, actor auth.Session, id int64, stock int) (*model.Vinyl, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if stock < 0 {
		return nil, apperror.ValidationFailed("stock", "stock cannot be negative")
	}
	if err := s.vinyls.UpdateStock(ctx, id, stock); err != nil {
		return nil, fmt.Errorf("setting stock of vinyl %d: %w", id, err)
	}
	s.logger.Info("stock updated",
		slog.Int64("id", id),
		slog.Int("stock", stock),
		slog.Int64("actor", actor.UserID),
	)
	return s.Get(ctx, id)
}

func (s *CatalogService) SetAvailability(ctx context.Context, actor auth.Session, id int64, available bool) (*model.Vinyl, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.vinyls.SetAvailability(ctx, id, available); err != nil {
		return nil, fmt.Errorf("setting availability of vinyl %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

func (s *CatalogService) Delete(ctx context.Context, actor auth.Session, id int64) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.vinyls.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting vinyl %d: %w", id, err)
	}
	s.logger.Info("vinyl deleted",
		slog.Int64("id", id),
		slog.Int64("actor", actor.UserID),
	)
	return nil
}
