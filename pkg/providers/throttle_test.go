package providers

import (
	"context"
	"testing"
	"time"

	"github.com/ghanemar/stakeledger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type scriptedAdapter struct {
	failures []error
	page     *Page
	calls    int
}

func (s *scriptedAdapter) Name() string { return "scripted" }

func (s *scriptedAdapter) EventTypeRules() map[string]storage.EventType {
	return map[string]storage.EventType{"delegate": storage.EventType_Stake}
}

func (s *scriptedAdapter) Fetch(ctx context.Context, req *FetchRequest) (*Page, error) {
	call := s.calls
	s.calls++
	if call < len(s.failures) {
		return nil, s.failures[call]
	}
	return s.page, nil
}

func newTestThrottled(adapter Adapter, retryAttempts int) *Throttled {
	t := NewThrottled(adapter, 1000, retryAttempts, zap.NewNop())
	t.initialBackoff = time.Millisecond
	t.maxBackoff = 5 * time.Millisecond
	return t
}

func Test_Throttled(t *testing.T) {
	req := &FetchRequest{ChainId: "solana-mainnet", Kind: DataKind_Rewards}
	successPage := &Page{Records: []*RawRecord{{PayloadId: "p1"}}}

	t.Run("Should return the result after retry_attempts rate-limit failures", func(t *testing.T) {
		adapter := &scriptedAdapter{
			failures: []error{
				NewRateLimitError("scripted", 429, nil),
				NewRateLimitError("scripted", 429, nil),
				NewRateLimitError("scripted", 429, nil),
			},
			page: successPage,
		}
		throttled := newTestThrottled(adapter, 3)

		page, err := throttled.Fetch(context.Background(), req)
		assert.Nil(t, err)
		assert.Equal(t, successPage, page)
		assert.Equal(t, 4, adapter.calls)
	})
	t.Run("Should surface the rate-limit error once retries are exhausted", func(t *testing.T) {
		adapter := &scriptedAdapter{
			failures: []error{
				NewRateLimitError("scripted", 429, nil),
				NewRateLimitError("scripted", 429, nil),
				NewRateLimitError("scripted", 429, nil),
			},
			page: successPage,
		}
		throttled := newTestThrottled(adapter, 2)

		_, err := throttled.Fetch(context.Background(), req)
		assert.NotNil(t, err)
		pe, ok := AsProviderError(err)
		assert.True(t, ok)
		assert.Equal(t, ErrorKind_RateLimited, pe.Kind)
		assert.Equal(t, 3, adapter.calls)
	})
	t.Run("Should retry timeouts", func(t *testing.T) {
		adapter := &scriptedAdapter{
			failures: []error{NewTimeoutError("scripted", nil)},
			page:     successPage,
		}
		throttled := newTestThrottled(adapter, 1)

		page, err := throttled.Fetch(context.Background(), req)
		assert.Nil(t, err)
		assert.Equal(t, successPage, page)
		assert.Equal(t, 2, adapter.calls)
	})
	t.Run("Should map data-not-found to an empty page without retrying", func(t *testing.T) {
		adapter := &scriptedAdapter{
			failures: []error{NewNotFoundError("scripted")},
			page:     successPage,
		}
		throttled := newTestThrottled(adapter, 3)

		page, err := throttled.Fetch(context.Background(), req)
		assert.Nil(t, err)
		assert.Empty(t, page.Records)
		assert.Equal(t, "", page.NextCursor)
		assert.Equal(t, 1, adapter.calls)
	})
	t.Run("Should never retry upstream errors", func(t *testing.T) {
		adapter := &scriptedAdapter{
			failures: []error{NewUpstreamError("scripted", 500, nil)},
			page:     successPage,
		}
		throttled := newTestThrottled(adapter, 3)

		_, err := throttled.Fetch(context.Background(), req)
		assert.NotNil(t, err)
		pe, ok := AsProviderError(err)
		assert.True(t, ok)
		assert.Equal(t, ErrorKind_Upstream, pe.Kind)
		assert.Equal(t, 1, adapter.calls)
	})
	t.Run("Should stop when the context is cancelled", func(t *testing.T) {
		adapter := &scriptedAdapter{
			failures: []error{
				NewRateLimitError("scripted", 429, nil),
				NewRateLimitError("scripted", 429, nil),
			},
			page: successPage,
		}
		throttled := newTestThrottled(adapter, 5)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := throttled.Fetch(ctx, req)
		assert.NotNil(t, err)
	})
	t.Run("Should delegate the event type rules table", func(t *testing.T) {
		adapter := &scriptedAdapter{page: successPage}
		throttled := newTestThrottled(adapter, 0)
		assert.Equal(t, adapter.EventTypeRules(), throttled.EventTypeRules())
		assert.Equal(t, "scripted", throttled.Name())
	})
}
