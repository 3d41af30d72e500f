package providers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ghanemar/stakeledger/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
)

// Throttled wraps an Adapter with the per-provider token bucket and retry
// policy. One Throttled instance carries the whole process-wide quota for its
// provider, so the limiter must be (and is) safe for concurrent acquisition
// from multiple ingestion workers.
type Throttled struct {
	adapter       Adapter
	limiter       *rate.Limiter
	retryAttempts int
	logger        *zap.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewThrottled(adapter Adapter, rateLimit int, retryAttempts int, l *zap.Logger) *Throttled {
	return &Throttled{
		adapter:        adapter,
		limiter:        rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		retryAttempts:  retryAttempts,
		logger:         l,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
}

func (t *Throttled) Name() string {
	return t.adapter.Name()
}

func (t *Throttled) EventTypeRules() map[string]storage.EventType {
	return t.adapter.EventTypeRules()
}

// Fetch acquires a limiter token, performs the underlying fetch, and retries
// timeout/rate-limit failures up to retryAttempts times with exponential
// backoff and jitter. Data-not-found is collapsed into an empty page. All
// other failures are surfaced immediately, unchanged in kind.
func (t *Throttled) Fetch(ctx context.Context, req *FetchRequest) (*Page, error) {
	var page *Page

	operation := func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		p, err := t.adapter.Fetch(ctx, req)
		if err == nil {
			page = p
			return nil
		}

		pe, ok := AsProviderError(err)
		if ok && pe.Kind == ErrorKind_NotFound {
			page = &Page{}
			return nil
		}
		if IsRetryable(err) {
			t.logger.Sugar().Debugw("Retrying provider fetch",
				zap.String("provider", t.adapter.Name()),
				zap.String("chainId", req.ChainId),
				zap.String("kind", string(req.Kind)),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.initialBackoff
	bo.MaxInterval = t.maxBackoff

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(t.retryAttempts)), ctx))
	if err != nil {
		return nil, err
	}
	return page, nil
}
