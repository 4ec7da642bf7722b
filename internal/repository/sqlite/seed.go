package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/vinyl-storefront/internal/model"
)

// defaultSeedPassword is the password the baseline accounts get when the
// configuration leaves it empty. Startup logs a warning whenever it is used.
const defaultSeedPassword = "1234"

type seedUser struct {
	username string
	name     string
	email    string
	password string
	role     model.Role
}

func (db *DB) seedUsers() []seedUser {
	s := db.cfg.Seed
	users := []seedUser{
		{username: "admin", name: "Administrador", email: s.AdminEmail, password: s.AdminPassword, role: model.RoleAdmin},
		{username: "cliente", name: "Cliente", email: s.CustomerEmail, password: s.CustomerPassword, role: model.RoleCustomer},
	}
	for i := range users {
		if users[i].email == "" {
			users[i].email = users[i].username + "@vinyls.local"
		}
		if users[i].password == "" {
			db.logger.Warn("seeding account with the default password",
				slog.String("username", users[i].username),
			)
			users[i].password = defaultSeedPassword
		}
	}
	return users
}

// seedVinyls is the baseline catalog. Prices are Chilean pesos.
var seedVinyls = []model.Vinyl{
	{
		Titulo:  "Hit me hard & soft",
		Artista: "Billie Eilish",
		Imagen:  "assets/img/hitme.jpg",
		Descripcion: []string{
			"El tercer álbum de estudio de Billie Eilish, «HIT ME HARD AND SOFT», lanzado a través de Darkroom/Interscope Records, es su trabajo más atrevido hasta la fecha, una colección diversa pero cohesiva de canciones, idealmente escuchadas en su totalidad, de principio a fin.",
			"Exactamente como sugiere el título del álbum; te golpea fuerte y suave tanto lírica como sonoramente, mientras cambia géneros y desafía tendencias a lo largo del camino.",
			"Con la ayuda de su hermano y único colaborador, FINNEAS, la pareja escribió, grabó y produjo el álbum juntos en su ciudad natal de Los Ángeles.",
			"Este álbum llega inmediatamente después de sus dos álbumes de gran éxito, «WHEN WE ALL FALL ASLEEP WHERE DO WE GO?» y «Happier Than Ever», y trabaja para desarrollar aún más el mundo de Billie Eilish.",
		},
		Tracklist: []string{
			"Skinny", "Lunch", "Chihiro", "Birds Of A Feather", "Wildflower",
			"The Greatest", "LAmour De Ma Vie", "The Diner", "Bittersuite", "Blue",
		},
		Stock:       10,
		Precio:      decimal.NewFromInt(39990),
		IsAvailable: true,
	},
}

// seedIfEmpty loads the baseline rows into each seeded table that is empty.
//
// Each table is probed on its own, so a database holding users but no catalog
// still gets its catalog. The inserts are upserts keyed on the natural key
// (username, titulo+artista), which keeps row ids stable if two processes race
// on the same empty file.
func (db *DB) seedIfEmpty(ctx context.Context) error {
	n, err := db.count(ctx, tableUsers)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := db.insertSeedUsers(ctx); err != nil {
			return err
		}
	}

	n, err = db.count(ctx, tableVinyls)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := db.insertSeedVinyls(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Seed runs the seed loader against a ready database. Tables that already
// hold rows are left alone.
func (db *DB) Seed(ctx context.Context) error {
	if err := db.awaitReady(ctx); err != nil {
		return err
	}
	if err := db.seedIfEmpty(ctx); err != nil {
		return fmt.Errorf("sqlite: seeding: %w", err)
	}
	return nil
}

func (db *DB) count(ctx context.Context, table string) (int64, error) {
	res, err := db.run(ctx, "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("probing %s: %w", table, err)
	}
	r := rowReader{row: res.Rows[0]}
	return r.int64("n"), r.err
}

func (db *DB) insertSeedUsers(ctx context.Context) error {
	if db.passwords == nil {
		return fmt.Errorf("seeding users: no password hasher configured")
	}
	now := formatTime(time.Now())

	users := db.seedUsers()
	for _, u := range users {
		hash, err := db.passwords.Hash(u.password)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", u.username, err)
		}
		_, err = db.run(ctx,
			`INSERT INTO Users (username, password, role, name, email, createdAt)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(username) DO UPDATE SET
			     password = excluded.password,
			     role     = excluded.role,
			     name     = excluded.name,
			     email    = excluded.email`,
			u.username, hash, string(u.role), u.name, nullable(u.email), now,
		)
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", u.username, err)
		}
	}
	db.logger.Info("seeded users", slog.Int("count", len(users)))
	return nil
}

func (db *DB) insertSeedVinyls(ctx context.Context) error {
	for _, v := range seedVinyls {
		desc, err := encodeStrings(v.Descripcion)
		if err != nil {
			return err
		}
		tracks, err := encodeStrings(v.Tracklist)
		if err != nil {
			return err
		}
		_, err = db.run(ctx,
			`INSERT INTO Vinyls (titulo, artista, imagen, descripcion, tracklist, stock, precio, isAvailable)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(titulo, artista) DO UPDATE SET
			     imagen      = excluded.imagen,
			     descripcion = excluded.descripcion,
			     tracklist   = excluded.tracklist,
			     stock       = excluded.stock,
			     precio      = excluded.precio,
			     isAvailable = excluded.isAvailable`,
			v.Titulo, v.Artista, v.Imagen, desc, tracks, v.Stock, v.Precio.String(), boolToInt(v.IsAvailable),
		)
		if err != nil {
			return fmt.Errorf("seeding vinyl %q: %w", v.Titulo, err)
		}
	}
	db.logger.Info("seeded catalog", slog.Int("count", len(seedVinyls)))
	return nil
}
