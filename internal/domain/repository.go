package domain

import "context"

// OracleRepository persists tracked oracles and their settlement state.
// Implementations keep records in creation order.
type OracleRepository interface {
	// Append stores a new record; an existing id is rejected.
	Append(ctx context.Context, o TrackedOracle) error

	Get(ctx context.Context, id string) (TrackedOracle, error)

	// List returns every record in creation order.
	List(ctx context.Context) ([]TrackedOracle, error)

	// Page returns at most limit records created after the cursor, in
	// creation order, and the cursor of the last returned record. A zero
	// cursor starts from the first record.
	Page(ctx context.Context, after int64, limit int) ([]TrackedOracle, int64, error)

	Count(ctx context.Context) (int, error)

	// Settlement returns the state for id, or a zero state if none was saved
	// yet. Unknown ids fail with ErrNotFound from the store package.
	Settlement(ctx context.Context, id string) (SettlementState, error)

	SaveSettlement(ctx context.Context, s SettlementState) error

	// DeadLetters returns the records whose settlement was given up.
	DeadLetters(ctx context.Context) ([]TrackedOracle, error)

	// Ping checks storage connectivity
	Ping(ctx context.Context) error
}
