package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

const searchFrom = `
		FROM shows s
		JOIN movies m   ON m.id = s.movie_id
		JOIN halls h    ON h.id = s.hall_id
		JOIN theatres t ON t.id = h.theatre_id
		WHERE `

// Search lists shows joined with their movie, hall and theatre, one page
// at a time, ordered by start time.  It also returns the total number of
// matching shows.
func (r *ShowRepo) Search(ctx context.Context, q model.ShowSearch) ([]model.ShowListing, int64, error) {
	q = q.Normalize()
	where := []string{}
	args := []any{}

	switch q.When {
	case model.WhenAny:
	case model.WhenActive:
		where = append(where, "s.ends_at >= ?")
		args = append(args, q.Now)
	default:
		where = append(where, "s.starts_at >= ?")
		args = append(args, q.Now)
	}
	if q.Movie != "" {
		where = append(where, "LOWER(m.name) LIKE ?")
		args = append(args, like(q.Movie))
	}
	if q.Theatre != "" {
		where = append(where, "LOWER(t.name) LIKE ?")
		args = append(args, like(q.Theatre))
	}
	if q.City != "" {
		where = append(where, "LOWER(t.city) LIKE ?")
		args = append(args, like(q.City))
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+searchFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	dataSQL := `SELECT
			s.id, m.id, m.name, h.id, h.name, t.id, t.name, t.city,
			s.starts_at, s.ends_at, s.base_price,
			(SELECT COUNT(*) FROM tickets k WHERE k.show_id = s.id AND k.booking_id IS NULL) AS available` +
		searchFrom + cond + `
		ORDER BY s.starts_at ASC, s.id
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	out := make([]model.ShowListing, 0, q.PageSize)
	for rows.Next() {
		var l model.ShowListing
		if err := rows.Scan(
			&l.ShowID, &l.MovieID, &l.Movie,
			&l.HallID, &l.Hall,
			&l.TheatreID, &l.Theatre, &l.City,
			&l.StartsAt, &l.EndsAt, &l.BasePrice, &l.Available,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// like builds a case-insensitive substring pattern, escaping the LIKE
// wildcards in s.
func like(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
