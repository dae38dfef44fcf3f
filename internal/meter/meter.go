// Package meter enforces the daily guest message quota.
package meter

import (
	"context"
	"time"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
)

const periodFormat = "2006-01-02"

// Meter counts guest messages per principal per UTC day. Authenticated
// principals pass through unmetered.
type Meter struct {
	store   interfaces.UsageStore
	logger  *common.Logger
	ceiling int

	now func() time.Time
}

// New creates a usage meter. A ceiling of 0 disables guest metering.
func New(store interfaces.UsageStore, ceiling int, logger *common.Logger) *Meter {
	return &Meter{
		store:   store,
		logger:  logger,
		ceiling: ceiling,
		now:     time.Now,
	}
}

// Allow counts the message and reports whether it may proceed. The
// first over-quota attempt is counted before being blocked; once the
// record sits past the ceiling, further denials stop bumping it so the
// stored count never exceeds ceiling+1.
func (m *Meter) Allow(ctx context.Context, principal string, authenticated bool) (bool, int, int, error) {
	if authenticated || m.ceiling <= 0 {
		return true, 0, 0, nil
	}

	period := m.now().UTC().Format(periodFormat)
	count, err := m.store.Get(ctx, principal, period)
	if err != nil {
		// Fail open: a broken counter must not take the chat down.
		m.logger.Error().Err(err).Str("principal", principal).Msg("Usage counter failed, allowing message")
		return true, 0, m.ceiling, nil
	}

	if count <= m.ceiling {
		count, err = m.store.Increment(ctx, principal, period)
		if err != nil {
			m.logger.Error().Err(err).Str("principal", principal).Msg("Usage counter failed, allowing message")
			return true, 0, m.ceiling, nil
		}
	}

	if count > m.ceiling {
		m.logger.Info().
			Str("principal", principal).
			Int("count", count).
			Int("ceiling", m.ceiling).
			Msg("Guest quota exceeded")
		return false, count, m.ceiling, nil
	}
	return true, count, m.ceiling, nil
}

var _ interfaces.UsageMeter = (*Meter)(nil)
