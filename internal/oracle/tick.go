package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-oracle/internal/domain"
	"github.com/i474232898/weather-oracle/internal/logging"
	"github.com/i474232898/weather-oracle/internal/weather"
)

// TickStats summarizes one settlement pass.
type TickStats struct {
	Total     int
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
}

// Tick pushes the current temperature and ended flag of every tracked oracle
// to the ledger, one record at a time. The record count is fixed when the tick
// starts; records appended meanwhile are picked up by the next tick. A failing
// record never stops the pass. The returned error aggregates per-record
// failures.
func (s *Service) Tick(ctx context.Context) (TickStats, error) {
	tickID := uuid.NewString()
	ctx = logging.ContextWithTick(ctx, tickID)
	logger := log.Ctx(ctx)

	var stats TickStats
	if s.ledger == nil {
		logger.Warn().Msg("ledger not configured; skipping settlement")
		return stats, nil
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count oracles: %w", err)
	}
	stats.Total = total

	start := time.Now()
	var result *multierror.Error

	var cursor int64
	seen := 0
pages:
	for seen < total {
		limit := s.opts.PageSize
		if seen+limit > total {
			limit = total - seen
		}
		page, next, err := s.repo.Page(ctx, cursor, limit)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("load oracles after cursor %d: %w", cursor, err))
			break
		}
		if len(page) == 0 {
			break
		}
		cursor = next
		seen += len(page)

		for _, o := range page {
			if ctx.Err() != nil {
				result = multierror.Append(result, ctx.Err())
				break pages
			}

			attempted, err := s.process(ctx, tickID, o, stats.Attempted > 0)
			switch {
			case !attempted && err == nil:
				stats.Skipped++
			case err != nil:
				if attempted {
					stats.Attempted++
					stats.Failed++
				}
				result = multierror.Append(result, fmt.Errorf("oracle %s: %w", o.ID, err))
			default:
				stats.Attempted++
				stats.Succeeded++
			}
		}
	}

	logger.Info().
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Dur("took", time.Since(start)).
		Msg("tick finished")

	return stats, result.ErrorOrNil()
}

// process settles one record under a lease. attempted is false when the
// record was skipped or the tick was cancelled before the ledger was tried.
func (s *Service) process(ctx context.Context, tickID string, o domain.TrackedOracle, pace bool) (bool, error) {
	logger := log.Ctx(ctx).With().Str("oracle", o.ID).Logger()

	if !s.leases.SetIfAbsent(o.ID, tickID) {
		holder, _ := s.leases.Get(o.ID)
		logger.Debug().Str("holder", holder).Msg("oracle is being settled elsewhere; skipping")
		return false, nil
	}
	defer s.leases.Remove(o.ID)

	st, err := s.repo.Settlement(ctx, o.ID)
	if err != nil {
		return false, fmt.Errorf("load settlement: %w", err)
	}
	if st.DeadLettered {
		return false, nil
	}
	if st.Settled() && s.opts.StopWhenSettled {
		return false, nil
	}

	if pace {
		if err := s.sleep(ctx, s.opts.RecordDelay); err != nil {
			return false, err
		}
	}

	now := s.now()
	celsius, digest, ended, err := s.settle(ctx, o, now)
	if err != nil && ctx.Err() != nil {
		// shutdown, not a failure of this record
		return false, ctx.Err()
	}

	attemptAt := now.UTC()
	st.Attempts++
	st.LastAttemptAt = &attemptAt
	if celsius != nil {
		st.LastTemperature = celsius
	}

	if err != nil {
		st.ConsecutiveFailures++
		st.LastError = err.Error()
		if s.opts.MaxConsecutiveFailures > 0 && st.ConsecutiveFailures >= s.opts.MaxConsecutiveFailures {
			st.DeadLettered = true
			logger.Warn().Int("failures", st.ConsecutiveFailures).Msg("oracle dead-lettered")
		}
		logger.Error().Err(err).Int("failures", st.ConsecutiveFailures).Msg("settlement failed")
	} else {
		st.ConsecutiveFailures = 0
		st.LastError = ""
		st.LastEnded = ended
		st.LastDigest = digest
		if ended && st.SettledAt == nil {
			st.SettledAt = &attemptAt
		}
		logger.Info().
			Float64("temperature", *celsius).
			Bool("ended", ended).
			Str("digest", digest).
			Msg("oracle updated")
	}

	if saveErr := s.repo.SaveSettlement(ctx, st); saveErr != nil {
		if err == nil {
			return true, fmt.Errorf("save settlement: %w", saveErr)
		}
		return true, multierror.Append(err, fmt.Errorf("save settlement: %w", saveErr))
	}
	return true, err
}

// settle performs the weather lookup and the ledger update for one record.
// celsius is set whenever the lookup succeeded.
func (s *Service) settle(ctx context.Context, o domain.TrackedOracle, now time.Time) (*float64, string, bool, error) {
	callCtx, cancel := s.callContext(ctx)
	reading, err := s.weather.Current(callCtx, weather.Location{Latitude: o.Latitude, Longitude: o.Longitude})
	cancel()
	if err != nil {
		return nil, "", false, fmt.Errorf("weather lookup: %w", err)
	}

	celsius := reading.Celsius()
	ended := o.Ended(now)

	callCtx, cancel = s.callContext(ctx)
	digest, err := s.ledger.UpdateOracle(callCtx, o.ID, celsius, ended)
	cancel()
	if err != nil {
		return &celsius, "", ended, fmt.Errorf("ledger update: %w", err)
	}
	return &celsius, digest, ended, nil
}
