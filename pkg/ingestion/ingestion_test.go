package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ghanemar/stakeledger/pkg/chainRegistry"
	"github.com/ghanemar/stakeledger/pkg/normalization"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"github.com/ghanemar/stakeledger/pkg/storage"
	"github.com/ghanemar/stakeledger/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testChainConfig = `
chains:
  - chain_id: solana-mainnet
    period_type: epoch
    native_unit: SOL
    native_decimals: 9
    finality_lag: 32
`

var testRules = map[string]storage.EventType{
	"delegate":   storage.EventType_Stake,
	"deactivate": storage.EventType_Unstake,
}

// pagedAdapter serves a scripted sequence of pages keyed by request cursor.
type pagedAdapter struct {
	name  string
	pages map[string]*providers.Page
	err   error
	calls int
}

func (a *pagedAdapter) Name() string {
	return a.name
}

func (a *pagedAdapter) EventTypeRules() map[string]storage.EventType {
	return testRules
}

func (a *pagedAdapter) Fetch(ctx context.Context, req *providers.FetchRequest) (*providers.Page, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	page, ok := a.pages[req.Cursor]
	if !ok {
		return nil, providers.NewUpstreamError(a.name, 500, fmt.Errorf("unexpected cursor '%s'", req.Cursor))
	}
	return page, nil
}

type stubResolver struct {
	adapters map[string]*providers.Throttled
}

func (r *stubResolver) ForChain(chainId string, kind providers.DataKind) (*providers.Throttled, error) {
	adapter, ok := r.adapters[chainId+"/"+string(kind)]
	if !ok {
		return nil, fmt.Errorf("no provider bound for chain '%s' kind '%s'", chainId, kind)
	}
	return adapter, nil
}

func record(payloadId string) *providers.RawRecord {
	return &providers.RawRecord{
		PayloadId:     payloadId,
		ValidatorKey:  "vote111",
		StakerAddress: "staker111",
		Action:        "delegate",
		Amount:        "1.5",
		Timestamp:     time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC),
	}
}

func testUnit(kind providers.DataKind) Unit {
	return Unit{
		ChainId: "solana-mainnet",
		Kind:    kind,
		Period:  providers.Period{PeriodId: "solana-mainnet-700", Index: 700},
	}
}

func setupIngestor(t *testing.T, resolver AdapterResolver) (*Ingestor, *memory.MemoryStore) {
	t.Helper()

	chains, err := chainRegistry.NewChainRegistry("chains.yaml", []byte(testChainConfig))
	assert.Nil(t, err)

	store := memory.NewMemoryStore()
	pipeline := normalization.NewPipeline(store, chains, zap.NewNop())
	return NewIngestor(resolver, pipeline, nil, zap.NewNop(), 2), store
}

func throttled(adapter providers.Adapter) *providers.Throttled {
	return providers.NewThrottled(adapter, 100, 0, zap.NewNop())
}

func Test_Ingestor(t *testing.T) {
	t.Run("Should walk pagination cursors sequentially within a unit", func(t *testing.T) {
		adapter := &pagedAdapter{
			name: "scripted",
			pages: map[string]*providers.Page{
				"":     {Records: []*providers.RawRecord{record("p-1"), record("p-2")}, NextCursor: "c-1"},
				"c-1":  {Records: []*providers.RawRecord{record("p-3")}, NextCursor: "last"},
				"last": {Records: []*providers.RawRecord{}},
			},
		}
		resolver := &stubResolver{adapters: map[string]*providers.Throttled{
			"solana-mainnet/fees": throttled(adapter),
		}}
		ingestor, store := setupIngestor(t, resolver)

		result := ingestor.Run(context.Background(), []Unit{testUnit(providers.DataKind_Fees)})
		assert.Equal(t, 1, len(result.Succeeded))
		assert.Equal(t, 0, len(result.Failed))
		assert.Equal(t, 3, result.EventsCreated)
		assert.Equal(t, 3, adapter.calls)

		events, err := store.ListEventsForPeriod(context.Background(), "solana-mainnet", "solana-mainnet-700")
		assert.Nil(t, err)
		assert.Equal(t, 3, len(events))
	})
	t.Run("Should isolate a failed unit from its siblings", func(t *testing.T) {
		good := &pagedAdapter{
			name: "scripted",
			pages: map[string]*providers.Page{
				"": {Records: []*providers.RawRecord{record("p-1")}},
			},
		}
		bad := &pagedAdapter{
			name: "scripted",
			err:  providers.NewUpstreamError("scripted", 502, fmt.Errorf("bad gateway")),
		}
		resolver := &stubResolver{adapters: map[string]*providers.Throttled{
			"solana-mainnet/fees": throttled(good),
			"solana-mainnet/mev":  throttled(bad),
		}}
		ingestor, _ := setupIngestor(t, resolver)

		result := ingestor.Run(context.Background(), []Unit{
			testUnit(providers.DataKind_Fees),
			testUnit(providers.DataKind_Mev),
		})
		assert.Equal(t, 1, len(result.Succeeded))
		assert.Equal(t, 1, len(result.Failed))
		assert.Equal(t, providers.DataKind_Mev, result.Failed[0].Unit.Kind)
		assert.Equal(t, 1, result.EventsCreated)
	})
	t.Run("Should fail the unit when no provider is bound", func(t *testing.T) {
		resolver := &stubResolver{adapters: map[string]*providers.Throttled{}}
		ingestor, _ := setupIngestor(t, resolver)

		result := ingestor.Run(context.Background(), []Unit{testUnit(providers.DataKind_Rewards)})
		assert.Equal(t, 0, len(result.Succeeded))
		assert.Equal(t, 1, len(result.Failed))
		assert.Contains(t, result.Failed[0].Err.Error(), "no provider bound")
	})
	t.Run("Should carry record errors without failing the unit", func(t *testing.T) {
		malformed := record("p-bad")
		malformed.Action = "mystery"
		adapter := &pagedAdapter{
			name: "scripted",
			pages: map[string]*providers.Page{
				"": {Records: []*providers.RawRecord{record("p-1"), malformed}},
			},
		}
		resolver := &stubResolver{adapters: map[string]*providers.Throttled{
			"solana-mainnet/fees": throttled(adapter),
		}}
		ingestor, _ := setupIngestor(t, resolver)

		result := ingestor.Run(context.Background(), []Unit{testUnit(providers.DataKind_Fees)})
		assert.Equal(t, 1, len(result.Succeeded))
		assert.Equal(t, 1, result.EventsCreated)
		assert.Equal(t, 1, len(result.RecordErrors))
		assert.Equal(t, "p-bad", result.RecordErrors[0].PayloadId)
	})
	t.Run("Should skip duplicates when a unit re-runs", func(t *testing.T) {
		adapter := &pagedAdapter{
			name: "scripted",
			pages: map[string]*providers.Page{
				"": {Records: []*providers.RawRecord{record("p-1"), record("p-2")}},
			},
		}
		resolver := &stubResolver{adapters: map[string]*providers.Throttled{
			"solana-mainnet/fees": throttled(adapter),
		}}
		ingestor, store := setupIngestor(t, resolver)

		first := ingestor.Run(context.Background(), []Unit{testUnit(providers.DataKind_Fees)})
		assert.Equal(t, 2, first.EventsCreated)

		second := ingestor.Run(context.Background(), []Unit{testUnit(providers.DataKind_Fees)})
		assert.Equal(t, 0, second.EventsCreated)
		assert.Equal(t, 2, second.DuplicatesSkipped)

		events, err := store.ListEventsForPeriod(context.Background(), "solana-mainnet", "solana-mainnet-700")
		assert.Nil(t, err)
		assert.Equal(t, 2, len(events))
	})
	t.Run("Should report every unit as failed when the context is already cancelled", func(t *testing.T) {
		adapter := &pagedAdapter{
			name: "scripted",
			pages: map[string]*providers.Page{
				"": {Records: []*providers.RawRecord{record("p-1")}},
			},
		}
		resolver := &stubResolver{adapters: map[string]*providers.Throttled{
			"solana-mainnet/fees": throttled(adapter),
		}}
		ingestor, _ := setupIngestor(t, resolver)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := ingestor.Run(ctx, []Unit{
			testUnit(providers.DataKind_Fees),
			testUnit(providers.DataKind_Mev),
		})
		assert.Equal(t, 0, len(result.Succeeded))
		assert.Equal(t, 2, len(result.Failed))
		assert.Equal(t, 0, result.EventsCreated)
	})
}
