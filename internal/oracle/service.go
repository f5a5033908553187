package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-oracle/internal/domain"
	"github.com/i474232898/weather-oracle/internal/ledger"
	"github.com/i474232898/weather-oracle/internal/weather"
)

var ErrLedgerUnavailable = errors.New("ledger client not configured")

// Ledger is the settlement side of the oracle contract.
type Ledger interface {
	CreateOracle(ctx context.Context, p ledger.CreateParams) (ledger.CreateResult, error)
	UpdateOracle(ctx context.Context, oracleID string, celsius float64, ended bool) (string, error)
}

// WeatherSource returns the current observation at a location.
type WeatherSource interface {
	Current(ctx context.Context, loc weather.Location) (weather.Reading, error)
}

type Options struct {
	// RecordDelay is the pause between two settled records of one tick.
	RecordDelay time.Duration
	// PageSize is the number of records loaded from the store at once.
	PageSize int
	// MaxConsecutiveFailures dead-letters a record after that many failed
	// attempts in a row. Zero retries forever.
	MaxConsecutiveFailures int
	// StopWhenSettled stops polling a record once an ended=true update was
	// confirmed. By default ended records keep receiving updates.
	StopWhenSettled bool
	// CallTimeout bounds each weather lookup and each ledger call.
	CallTimeout time.Duration
}

const defaultPageSize = 100

// Service creates tracked oracles and settles them against live weather.
type Service struct {
	repo    domain.OracleRepository
	weather WeatherSource
	ledger  Ledger
	opts    Options

	// key: oracle id, value: id of the tick holding the lease
	leases cmap.ConcurrentMap[string, string]

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a Service. ledger may be nil, in which case creation
// fails with ErrLedgerUnavailable and ticks do nothing.
func NewService(repo domain.OracleRepository, ws WeatherSource, l Ledger, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Service{
		repo:    repo,
		weather: ws,
		ledger:  l,
		opts:    opts,
		leases:  cmap.New[string](),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// CreateRequest describes a new oracle. Temperatures are Celsius, TargetTime
// is ms since epoch.
type CreateRequest struct {
	Latitude   float64
	Longitude  float64
	CityName   string
	TargetTemp float64
	TargetTime int64
}

// Create reads the current temperature, creates the on-chain oracle and
// starts tracking it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.TrackedOracle, error) {
	if s.ledger == nil {
		return domain.TrackedOracle{}, ErrLedgerUnavailable
	}

	loc := weather.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	callCtx, cancel := s.callContext(ctx)
	reading, err := s.weather.Current(callCtx, loc)
	cancel()
	if err != nil {
		return domain.TrackedOracle{}, fmt.Errorf("fetch current weather: %w", err)
	}

	callCtx, cancel = s.callContext(ctx)
	created, err := s.ledger.CreateOracle(callCtx, ledger.CreateParams{
		CityName:    req.CityName,
		Temperature: reading.Celsius(),
		TargetTemp:  req.TargetTemp,
		TargetTime:  req.TargetTime,
	})
	cancel()
	if err != nil {
		return domain.TrackedOracle{}, fmt.Errorf("create oracle on ledger: %w", err)
	}

	o := domain.TrackedOracle{
		ID:                   created.OracleID,
		PredictionRegistryID: created.PredictionID,
		CityName:             req.CityName,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		TargetTimestamp:      req.TargetTime,
		TargetTemperature:    req.TargetTemp,
		CreatedAt:            s.now().UTC(),
	}
	if err := s.repo.Append(ctx, o); err != nil {
		return domain.TrackedOracle{}, fmt.Errorf("track oracle %s: %w", o.ID, err)
	}

	log.Ctx(ctx).Info().
		Str("oracle", o.ID).
		Str("predict", o.PredictionRegistryID).
		Str("city", o.CityName).
		Str("digest", created.Digest).
		Float64("temperature", reading.Celsius()).
		Msg("oracle created")
	return o, nil
}

func (s *Service) List(ctx context.Context) ([]domain.TrackedOracle, error) {
	return s.repo.List(ctx)
}

// Detail is a tracked record together with its settlement bookkeeping.
type Detail struct {
	Oracle     domain.TrackedOracle   `json:"oracle"`
	Settlement domain.SettlementState `json:"settlement"`
}

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	st, err := s.repo.Settlement(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Oracle: o, Settlement: st}, nil
}

func (s *Service) DeadLetters(ctx context.Context) ([]domain.TrackedOracle, error) {
	return s.repo.DeadLetters(ctx)
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
