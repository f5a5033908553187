package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-oracle/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracked_oracles (
	seq         BIGSERIAL,
	id          TEXT PRIMARY KEY,
	predict_id  TEXT NOT NULL,
	city_name   TEXT NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	target_time BIGINT NOT NULL,
	target_temp DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS tracked_oracles_seq_idx ON tracked_oracles (seq);

CREATE TABLE IF NOT EXISTS oracle_settlements (
	oracle_id            TEXT PRIMARY KEY REFERENCES tracked_oracles (id),
	attempts             INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_temperature     DOUBLE PRECISION,
	last_ended           BOOLEAN NOT NULL DEFAULT FALSE,
	last_error           TEXT NOT NULL DEFAULT '',
	last_digest          TEXT NOT NULL DEFAULT '',
	last_attempt_at      TIMESTAMPTZ,
	settled_at           TIMESTAMPTZ,
	dead_lettered        BOOLEAN NOT NULL DEFAULT FALSE
);
`

const oracleColumns = `id, predict_id, city_name, latitude, longitude, target_time, target_temp, created_at`

// SQLSTATE codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore implements domain.OracleRepository on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ domain.OracleRepository = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres connects to databaseURL and makes sure the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Append(ctx context.Context, o domain.TrackedOracle) error {
	query := `INSERT INTO tracked_oracles (` + oracleColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.PredictionRegistryID, o.CityName, o.Latitude, o.Longitude,
		o.TargetTimestamp, o.TargetTemperature, o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: failed to insert oracle: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.TrackedOracle, error) {
	query := `SELECT ` + oracleColumns + ` FROM tracked_oracles WHERE id = $1`

	o, err := scanOracle(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TrackedOracle{}, ErrNotFound
	}
	if err != nil {
		return domain.TrackedOracle{}, fmt.Errorf("postgres: failed to get oracle: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.TrackedOracle, error) {
	query := `SELECT ` + oracleColumns + ` FROM tracked_oracles ORDER BY seq`
	return s.queryOracles(ctx, query)
}

// Page walks tracked_oracles by seq. Rows committed late with a lower seq
// than the cursor are left for the next pass instead of shifting the page.
func (s *PostgresStore) Page(ctx context.Context, after int64, limit int) ([]domain.TrackedOracle, int64, error) {
	if after < 0 || limit <= 0 {
		return nil, after, nil
	}
	query := `SELECT seq, ` + oracleColumns + ` FROM tracked_oracles WHERE seq > $1 ORDER BY seq LIMIT $2`

	rows, err := s.pool.Query(ctx, query, after, limit)
	if err != nil {
		return nil, after, fmt.Errorf("postgres: failed to query oracle page: %w", err)
	}
	defer rows.Close()

	next := after
	results := []domain.TrackedOracle{}
	for rows.Next() {
		var o domain.TrackedOracle
		err := rows.Scan(
			&next, &o.ID, &o.PredictionRegistryID, &o.CityName, &o.Latitude, &o.Longitude,
			&o.TargetTimestamp, &o.TargetTemperature, &o.CreatedAt,
		)
		if err != nil {
			return nil, after, fmt.Errorf("postgres: failed to scan oracle row: %w", err)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, after, fmt.Errorf("postgres: failed to iterate oracle page: %w", err)
	}
	return results, next, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tracked_oracles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: failed to count oracles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Settlement(ctx context.Context, id string) (domain.SettlementState, error) {
	query := `
		SELECT o.id,
		       coalesce(st.attempts, 0), coalesce(st.consecutive_failures, 0),
		       st.last_temperature, coalesce(st.last_ended, false),
		       coalesce(st.last_error, ''), coalesce(st.last_digest, ''),
		       st.last_attempt_at, st.settled_at, coalesce(st.dead_lettered, false)
		FROM tracked_oracles o
		LEFT JOIN oracle_settlements st ON st.oracle_id = o.id
		WHERE o.id = $1
	`

	var st domain.SettlementState
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&st.OracleID, &st.Attempts, &st.ConsecutiveFailures,
		&st.LastTemperature, &st.LastEnded,
		&st.LastError, &st.LastDigest,
		&st.LastAttemptAt, &st.SettledAt, &st.DeadLettered,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SettlementState{}, ErrNotFound
	}
	if err != nil {
		return domain.SettlementState{}, fmt.Errorf("postgres: failed to get settlement: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) SaveSettlement(ctx context.Context, st domain.SettlementState) error {
	query := `
		INSERT INTO oracle_settlements (
			oracle_id, attempts, consecutive_failures, last_temperature, last_ended,
			last_error, last_digest, last_attempt_at, settled_at, dead_lettered
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (oracle_id) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_temperature = EXCLUDED.last_temperature,
			last_ended = EXCLUDED.last_ended,
			last_error = EXCLUDED.last_error,
			last_digest = EXCLUDED.last_digest,
			last_attempt_at = EXCLUDED.last_attempt_at,
			settled_at = EXCLUDED.settled_at,
			dead_lettered = EXCLUDED.dead_lettered
	`

	_, err := s.pool.Exec(ctx, query,
		st.OracleID, st.Attempts, st.ConsecutiveFailures, st.LastTemperature, st.LastEnded,
		st.LastError, st.LastDigest, st.LastAttemptAt, st.SettledAt, st.DeadLettered,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("postgres: failed to save settlement: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeadLetters(ctx context.Context) ([]domain.TrackedOracle, error) {
	query := `
		SELECT o.id, o.predict_id, o.city_name, o.latitude, o.longitude,
		       o.target_time, o.target_temp, o.created_at
		FROM tracked_oracles o
		JOIN oracle_settlements st ON st.oracle_id = o.id
		WHERE st.dead_lettered
		ORDER BY o.seq
	`
	return s.queryOracles(ctx, query)
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryOracles(ctx context.Context, query string, args ...interface{}) ([]domain.TrackedOracle, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query oracles: %w", err)
	}
	defer rows.Close()

	results := []domain.TrackedOracle{}
	for rows.Next() {
		o, err := scanOracle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan oracle row: %w", err)
		}
		results = append(results, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate oracles: %w", err)
	}
	return results, nil
}

func scanOracle(row pgx.Row) (domain.TrackedOracle, error) {
	var o domain.TrackedOracle
	err := row.Scan(
		&o.ID, &o.PredictionRegistryID, &o.CityName, &o.Latitude, &o.Longitude,
		&o.TargetTimestamp, &o.TargetTemperature, &o.CreatedAt,
	)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, err
}
