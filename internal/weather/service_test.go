package weather

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	reading Reading
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Current(_ context.Context, _ Location) (Reading, error) {
	f.calls++
	return f.reading, f.err
}

type fakeGeocoder struct {
	query string
	limit int
}

func (f *fakeGeocoder) Search(_ context.Context, q string, limit int) (json.RawMessage, error) {
	f.query, f.limit = q, limit
	return json.RawMessage(`[{"name":"Paris"}]`), nil
}

func TestKelvinToCelsius(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{293.15, 20.00},
		{273.15, 0},
		{0, -273.15},
		{300.456, 27.31},
		{260.004, -13.15},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, KelvinToCelsius(c.in), 1e-9, "input %v", c.in)
	}
}

func TestCelsiusRoundTrip(t *testing.T) {
	assert.InDelta(t, 21.5, KelvinToCelsius(CelsiusToKelvin(21.5)), 1e-9)
	assert.InDelta(t, 20.0, Reading{TemperatureK: 293.15}.Celsius(), 1e-9)
}

func TestCurrentFailsOver(t *testing.T) {
	first := &fakeProvider{name: "a", err: errors.New("boom")}
	second := &fakeProvider{name: "b", reading: Reading{ProviderName: "b", TemperatureK: 290}}
	third := &fakeProvider{name: "c"}

	svc := NewService([]Provider{first, second, third}, nil)
	r, err := svc.Current(context.Background(), Location{Latitude: 1, Longitude: 2})
	require.NoError(t, err)

	assert.Equal(t, "b", r.ProviderName)
	assert.False(t, r.Timestamp.IsZero())
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestCurrentAllFail(t *testing.T) {
	svc := NewService([]Provider{
		&fakeProvider{name: "a", err: errors.New("down")},
		&fakeProvider{name: "b", err: errors.New("also down")},
	}, nil)

	_, err := svc.Current(context.Background(), Location{})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "also down")
}

func TestCurrentNoProviders(t *testing.T) {
	_, err := NewService(nil, nil).Current(context.Background(), Location{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestCurrentKeepsProviderTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService([]Provider{&fakeProvider{name: "a", reading: Reading{Timestamp: ts}}}, nil)

	r, err := svc.Current(context.Background(), Location{})
	require.NoError(t, err)
	assert.Equal(t, ts, r.Timestamp)
}

func TestSearch(t *testing.T) {
	_, err := NewService(nil, nil).Search(context.Background(), "paris")
	assert.ErrorIs(t, err, ErrNoGeocoder)

	g := &fakeGeocoder{}
	raw, err := NewService(nil, g).Search(context.Background(), "paris")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Paris"}]`, string(raw))
	assert.Equal(t, "paris", g.query)
	assert.Equal(t, SearchLimit, g.limit)
}
