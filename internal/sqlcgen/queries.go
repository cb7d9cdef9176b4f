package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listMapProperties = `-- name: ListMapProperties :many
SELECT p.id,
       p.title,
       p.price,
       p.availability_status,
       p.address,
       p.latitude,
       p.longitude,
       p.geohash,
       p.content_hash,
       p.raw,
       p.synced_at
FROM properties p
WHERE ($1::text IS NULL OR p.availability_status = $1::text)
  AND ($2::text[] IS NULL OR EXISTS (
        SELECT 1 FROM unnest($2::text[]) AS c(prefix)
        WHERE p.geohash LIKE c.prefix || '%'
      ))
ORDER BY p.id
LIMIT $3
`

type ListMapPropertiesParams struct {
	Status *string
	// Cells are geohash prefixes; nil disables the filter.
	Cells []string
	Limit int32
}

func (q *Queries) ListMapProperties(ctx context.Context, arg ListMapPropertiesParams) ([]MapProperty, error) {
	rows, err := q.db.Query(ctx, listMapProperties, arg.Status, arg.Cells, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MapProperty
	for rows.Next() {
		var i MapProperty
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Price,
			&i.AvailabilityStatus,
			&i.Address,
			&i.Latitude,
			&i.Longitude,
			&i.Geohash,
			&i.ContentHash,
			&i.Raw,
			&i.SyncedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMapProperty = `-- name: GetMapProperty :one
SELECT id, title, price, availability_status, address, latitude, longitude, geohash, content_hash, raw, synced_at
FROM properties
WHERE id = $1
`

func (q *Queries) GetMapProperty(ctx context.Context, id string) (MapProperty, error) {
	row := q.db.QueryRow(ctx, getMapProperty, id)
	var i MapProperty
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Price,
		&i.AvailabilityStatus,
		&i.Address,
		&i.Latitude,
		&i.Longitude,
		&i.Geohash,
		&i.ContentHash,
		&i.Raw,
		&i.SyncedAt,
	)
	return i, err
}

const upsertMapProperty = `-- name: UpsertMapProperty :execrows
INSERT INTO properties (
  id,
  title,
  price,
  availability_status,
  address,
  latitude,
  longitude,
  geohash,
  content_hash,
  raw,
  synced_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title,
    price = EXCLUDED.price,
    availability_status = EXCLUDED.availability_status,
    address = EXCLUDED.address,
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    geohash = EXCLUDED.geohash,
    content_hash = EXCLUDED.content_hash,
    raw = EXCLUDED.raw,
    synced_at = EXCLUDED.synced_at
WHERE properties.content_hash IS DISTINCT FROM EXCLUDED.content_hash
`

type UpsertMapPropertyParams struct {
	ID                 string
	Title              string
	Price              *float64
	AvailabilityStatus string
	Address            *string
	Latitude           *float64
	Longitude          *float64
	Geohash            *string
	ContentHash        string
	Raw                []byte
	SyncedAt           time.Time
}

// UpsertMapProperty reports 0 rows when the stored content hash already
// matches.
func (q *Queries) UpsertMapProperty(ctx context.Context, arg UpsertMapPropertyParams) (int64, error) {
	result, err := q.db.Exec(ctx, upsertMapProperty,
		arg.ID,
		arg.Title,
		arg.Price,
		arg.AvailabilityStatus,
		arg.Address,
		arg.Latitude,
		arg.Longitude,
		arg.Geohash,
		arg.ContentHash,
		arg.Raw,
		arg.SyncedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteStaleMapProperties = `-- name: DeleteStaleMapProperties :execrows
DELETE FROM properties
WHERE synced_at < $1
`

// DeleteStaleMapProperties removes rows not touched since before.
func (q *Queries) DeleteStaleMapProperties(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, deleteStaleMapProperties, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const touchMapProperties = `-- name: TouchMapProperties :exec
UPDATE properties
SET synced_at = $2
WHERE id = ANY($1::text[])
`

// TouchMapProperties marks unchanged rows as seen in the current sync.
func (q *Queries) TouchMapProperties(ctx context.Context, ids []string, at time.Time) error {
	_, err := q.db.Exec(ctx, touchMapProperties, ids, at)
	return err
}
