package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// MovieRepo manages persistence for movies.
type MovieRepo struct {
	db *sql.DB
}

func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

const movieColumns = `id, name, description, length_minutes, cast_members, director, genre, certificate, release_date, created_at, updated_at`

func scanMovie(row interface{ Scan(...any) error }, m *model.Movie) error {
	var desc sql.NullString
	var cast []byte
	if err := row.Scan(&m.ID, &m.Name, &desc, &m.LengthMinutes, &cast, &m.Director, &m.Genre,
		&m.Certificate, &m.ReleaseDate, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return err
	}
	m.Cast = []string{}
	if len(cast) > 0 {
		if err := json.Unmarshal(cast, &m.Cast); err != nil {
			return fmt.Errorf("movie %d cast: %w", m.ID, err)
		}
	}
	if desc.Valid {
		d := desc.String
		m.Description = &d
	}
	return nil
}

// Create inserts a movie and assigns its generated ID.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if m.Cast == nil {
		m.Cast = []string{}
	}
	cast, err := json.Marshal(m.Cast)
	if err != nil {
		return err
	}
	const q = `INSERT INTO movies (name, description, length_minutes, cast_members, director, genre, certificate, release_date, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.Name, m.Description, m.LengthMinutes, cast, m.Director, m.Genre,
		m.Certificate, m.ReleaseDate, now, now)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	var m model.Movie
	if err := scanMovie(r.db.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM movies WHERE id = ?", id), &m); err != nil {
		return nil, notFound(err, "movie", id)
	}
	return &m, nil
}

// List returns all movies, newest release first.
func (r *MovieRepo) List(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+movieColumns+" FROM movies ORDER BY release_date DESC, id")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Movie, 0)
	for rows.Next() {
		var m model.Movie
		if err := scanMovie(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
