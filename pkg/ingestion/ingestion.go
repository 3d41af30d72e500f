package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghanemar/stakeledger/internal/metrics"
	"github.com/ghanemar/stakeledger/pkg/normalization"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"go.uber.org/zap"
)

const DefaultWorkerCount = 4

// Unit is one independently schedulable (chain, data kind, period) ingestion
// job. Units run in parallel; pages within a unit are fetched sequentially
// because pagination cursors are causally dependent.
type Unit struct {
	ChainId string
	Kind    providers.DataKind
	Period  providers.Period
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s/%s", u.ChainId, u.Kind, u.Period.PeriodId)
}

type UnitFailure struct {
	Unit Unit
	Err  error
}

// RunResult is the structured outcome of an ingestion run. Isolated unit
// failures never fail the whole run.
type RunResult struct {
	Succeeded         []Unit
	Failed            []*UnitFailure
	EventsCreated     int
	DuplicatesSkipped int
	RecordErrors      []*normalization.RecordError
}

// AdapterResolver yields a configured adapter for a (chain, kind) pair. The
// provider factory satisfies this.
type AdapterResolver interface {
	ForChain(chainId string, kind providers.DataKind) (*providers.Throttled, error)
}

type Ingestor struct {
	resolver    AdapterResolver
	pipeline    *normalization.Pipeline
	metrics     *metrics.Metrics
	logger      *zap.Logger
	workerCount int
}

func NewIngestor(
	resolver AdapterResolver,
	pipeline *normalization.Pipeline,
	m *metrics.Metrics,
	l *zap.Logger,
	workerCount int,
) *Ingestor {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Ingestor{
		resolver:    resolver,
		pipeline:    pipeline,
		metrics:     m,
		logger:      l,
		workerCount: workerCount,
	}
}

// Run executes the units over a bounded worker pool and aggregates outcomes.
// Cancellation is honored at the next I/O boundary; an in-flight adapter call
// completes or times out, never truncating a page.
func (i *Ingestor) Run(ctx context.Context, units []Unit) *RunResult {
	jobs := make(chan Unit)
	result := &RunResult{
		Succeeded: make([]Unit, 0, len(units)),
		Failed:    make([]*UnitFailure, 0),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < i.workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range jobs {
				unitResult, err := i.runUnit(ctx, unit)

				mu.Lock()
				if err != nil {
					result.Failed = append(result.Failed, &UnitFailure{Unit: unit, Err: err})
					i.logger.Sugar().Errorw("Ingestion unit failed",
						zap.String("unit", unit.String()),
						zap.Error(err),
					)
				} else {
					result.Succeeded = append(result.Succeeded, unit)
					result.EventsCreated += unitResult.EventsCreated
					result.DuplicatesSkipped += unitResult.DuplicatesSkipped
					result.RecordErrors = append(result.RecordErrors, unitResult.RecordErrors...)
				}
				mu.Unlock()
			}
		}()
	}

	for _, unit := range units {
		select {
		case jobs <- unit:
		case <-ctx.Done():
			mu.Lock()
			result.Failed = append(result.Failed, &UnitFailure{Unit: unit, Err: ctx.Err()})
			mu.Unlock()
		}
	}
	close(jobs)
	wg.Wait()

	return result
}

type unitResult struct {
	EventsCreated     int
	DuplicatesSkipped int
	RecordErrors      []*normalization.RecordError
}

func (i *Ingestor) runUnit(ctx context.Context, unit Unit) (*unitResult, error) {
	adapter, err := i.resolver.ForChain(unit.ChainId, unit.Kind)
	if err != nil {
		return nil, err
	}

	result := &unitResult{}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := adapter.Fetch(ctx, &providers.FetchRequest{
			ChainId: unit.ChainId,
			Kind:    unit.Kind,
			Period:  unit.Period,
			Cursor:  cursor,
		})
		if err != nil {
			return nil, err
		}
		i.metrics.IncrRecordsFetched(unit.ChainId, string(unit.Kind), len(page.Records))

		normalized, err := i.pipeline.NormalizePage(ctx, unit.ChainId, unit.Period.PeriodId, adapter.Name(), adapter.EventTypeRules(), page)
		if err != nil {
			return nil, err
		}
		result.EventsCreated += normalized.InsertedCount
		result.DuplicatesSkipped += normalized.DuplicatesSkipped
		result.RecordErrors = append(result.RecordErrors, normalized.Errors...)
		i.metrics.IncrEventsNormalized(unit.ChainId, string(unit.Kind), normalized.InsertedCount)
		i.metrics.IncrRecordErrors(unit.ChainId, string(unit.Kind), len(normalized.Errors))

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return result, nil
}
