package radar

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Positions live on the users table created by the auth store.
const schemaSQL = `
ALTER TABLE users
	ADD COLUMN IF NOT EXISTS latitude  DOUBLE PRECISION,
	ADD COLUMN IF NOT EXISTS longitude DOUBLE PRECISION,
	ADD COLUMN IF NOT EXISTS last_seen TIMESTAMPTZ`

// Haversine distance in meters from ($2, $3); plain SQL so no PostGIS is needed.
const nearbySQL = `
SELECT id, name, email, latitude, longitude, last_seen, distance FROM (
	SELECT id, name, email, latitude, longitude, last_seen,
		2 * 6371000 * asin(least(1, sqrt(
			power(sin(radians(latitude - $2) / 2), 2) +
			cos(radians($2)) * cos(radians(latitude)) *
			power(sin(radians(longitude - $3) / 2), 2)
		))) AS distance
	FROM users
	WHERE id <> $1 AND latitude IS NOT NULL AND longitude IS NOT NULL AND last_seen IS NOT NULL
) AS candidates
WHERE distance <= $4
ORDER BY distance`

// PGStore keeps positions in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema adds the position columns to the users table.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to add location columns: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateLocation(ctx context.Context, userID int64, loc Location) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET latitude = $2, longitude = $3, last_seen = NOW() WHERE id = $1`,
		userID, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update location: user %d not found", userID)
	}
	return nil
}

func (s *PGStore) Nearby(ctx context.Context, userID int64, loc Location, radius float64) ([]Contact, error) {
	rows, err := s.pool.Query(ctx, nearbySQL, userID, loc.Latitude, loc.Longitude, radius)
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby users: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Location.Latitude, &c.Location.Longitude, &c.LastSeen, &c.Distance); err != nil {
			return nil, fmt.Errorf("failed to read nearby user: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nearby users: %w", err)
	}
	return contacts, nil
}
