package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-oracle/internal/domain"
	"github.com/i474232898/weather-oracle/internal/ledger"
	"github.com/i474232898/weather-oracle/internal/logging"
	"github.com/i474232898/weather-oracle/internal/store"
	"github.com/i474232898/weather-oracle/internal/weather"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeWeather struct {
	mu     sync.Mutex
	kelvin float64
	// failures by latitude
	fail  map[float64]error
	calls []weather.Location
}

func (f *fakeWeather) Current(_ context.Context, loc weather.Location) (weather.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, loc)
	if err := f.fail[loc.Latitude]; err != nil {
		return weather.Reading{}, err
	}
	return weather.Reading{ProviderName: "fake", Timestamp: fixedNow, TemperatureK: f.kelvin}, nil
}

type update struct {
	ID      string
	Celsius float64
	Ended   bool
}

type fakeLedger struct {
	mu      sync.Mutex
	seq     int
	creates []ledger.CreateParams
	updates []update
	fail    map[string]error
}

func (f *fakeLedger) CreateOracle(_ context.Context, p ledger.CreateParams) (ledger.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.creates = append(f.creates, p)
	return ledger.CreateResult{
		OracleID:     fmt.Sprintf("0xoracle%d", f.seq),
		PredictionID: fmt.Sprintf("0xpredict%d", f.seq),
		Digest:       "digest",
	}, nil
}

func (f *fakeLedger) UpdateOracle(_ context.Context, id string, celsius float64, ended bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[id]; err != nil {
		return "", err
	}
	f.updates = append(f.updates, update{ID: id, Celsius: celsius, Ended: ended})
	return "digest-" + id, nil
}

func (f *fakeLedger) updatedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.updates))
	for _, u := range f.updates {
		ids = append(ids, u.ID)
	}
	return ids
}

type fixture struct {
	svc     *Service
	repo    *store.MemoryStore
	weather *fakeWeather
	ledger  *fakeLedger
	sleeps  int
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logging.ConfigureTestLogging(t)

	f := &fixture{
		repo:    store.NewMemoryStore(),
		weather: &fakeWeather{kelvin: 293.15, fail: map[float64]error{}},
		ledger:  &fakeLedger{fail: map[string]error{}},
	}
	f.svc = NewService(f.repo, f.weather, f.ledger, opts)
	f.svc.now = func() time.Time { return fixedNow }
	f.svc.sleep = func(ctx context.Context, _ time.Duration) error {
		f.sleeps++
		return ctx.Err()
	}
	return f
}

func (f *fixture) track(t *testing.T, id string, lat float64, target time.Time) domain.TrackedOracle {
	t.Helper()
	o := domain.TrackedOracle{
		ID:                   id,
		PredictionRegistryID: "pred-" + id,
		CityName:             "City " + id,
		Latitude:             lat,
		Longitude:            10,
		TargetTimestamp:      target.UnixMilli(),
		TargetTemperature:    21,
		CreatedAt:            fixedNow,
	}
	require.NoError(t, f.repo.Append(context.Background(), o))
	return o
}

func (f *fixture) settlement(t *testing.T, id string) domain.SettlementState {
	t.Helper()
	st, err := f.repo.Settlement(context.Background(), id)
	require.NoError(t, err)
	return st
}

func TestCreateTracksLedgerIDs(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	o, err := f.svc.Create(ctx, CreateRequest{
		Latitude:   48.85,
		Longitude:  2.35,
		CityName:   "Paris",
		TargetTemp: 25.5,
		TargetTime: fixedNow.Add(time.Hour).UnixMilli(),
	})
	require.NoError(t, err)
	assert.Equal(t, "0xoracle1", o.ID)
	assert.Equal(t, "0xpredict1", o.PredictionRegistryID)
	assert.Equal(t, fixedNow, o.CreatedAt)

	require.Len(t, f.ledger.creates, 1)
	assert.Equal(t, ledger.CreateParams{
		CityName:    "Paris",
		Temperature: 20,
		TargetTemp:  25.5,
		TargetTime:  fixedNow.Add(time.Hour).UnixMilli(),
	}, f.ledger.creates[0])

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.TrackedOracle{o}, all)
}

func TestCreateWeatherFailureTracksNothing(t *testing.T) {
	f := newFixture(t, Options{})
	f.weather.fail[1] = errors.New("provider down")

	_, err := f.svc.Create(context.Background(), CreateRequest{Latitude: 1, CityName: "X", TargetTime: 1})
	require.Error(t, err)
	assert.Empty(t, f.ledger.creates)

	n, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateWithoutLedger(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), &fakeWeather{}, nil, Options{})
	_, err := svc.Create(context.Background(), CreateRequest{CityName: "X"})
	assert.ErrorIs(t, err, ErrLedgerUnavailable)

	stats, err := svc.Tick(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, stats.Attempted)
}

func TestConcurrentCreatesAreDistinct(t *testing.T) {
	f := newFixture(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), CreateRequest{Latitude: 1, CityName: "X", TargetTime: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 20)
	seen := map[string]bool{}
	for _, o := range all {
		assert.False(t, seen[o.ID])
		seen[o.ID] = true
	}
}

func TestGetReturnsSettlement(t *testing.T) {
	f := newFixture(t, Options{})
	f.track(t, "0x1", 1, fixedNow.Add(time.Hour))

	d, err := f.svc.Get(context.Background(), "0x1")
	require.NoError(t, err)
	assert.Equal(t, "0x1", d.Oracle.ID)
	assert.Equal(t, "0x1", d.Settlement.OracleID)

	_, err = f.svc.Get(context.Background(), "0xnope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
