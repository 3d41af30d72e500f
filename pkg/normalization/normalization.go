package normalization

import (
	"context"
	"fmt"
	"time"

	"github.com/ghanemar/stakeledger/internal/types/numbers"
	"github.com/ghanemar/stakeledger/pkg/chainRegistry"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"github.com/ghanemar/stakeledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RecordError is a per-record data error. Malformed records never abort the
// batch; they are collected and reported alongside the usable output.
type RecordError struct {
	PayloadId string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.PayloadId, e.Err)
}

type Result struct {
	Events            []*storage.CanonicalStakeEvent
	InsertedCount     int
	DuplicatesSkipped int
	Errors            []*RecordError
}

// Pipeline converts raw provider pages into canonical stake events. It is the
// sole writer of canonical events; rows are appended, never mutated.
type Pipeline struct {
	eventStore storage.StakeEventStore
	chains     *chainRegistry.ChainRegistry
	logger     *zap.Logger
	now        func() time.Time
}

func NewPipeline(
	eventStore storage.StakeEventStore,
	chains *chainRegistry.ChainRegistry,
	l *zap.Logger,
) *Pipeline {
	return &Pipeline{
		eventStore: eventStore,
		chains:     chains,
		logger:     l,
		now:        time.Now,
	}
}

// DedupKey flattens the natural key of a canonical event. Re-ingesting a
// payload yields the same key, which the store's unique index turns into a
// no-op.
func DedupKey(chainId, periodId, validatorKey, stakerAddress string, eventType storage.EventType, eventTimestamp time.Time, sourcePayloadId string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s_%d_%s",
		chainId, periodId, validatorKey, stakerAddress, eventType, eventTimestamp.UTC().Unix(), sourcePayloadId)
}

// NormalizePage converts one page of raw records for a (chain, period) unit.
// providerName is stamped for lineage; rules is the adapter's action mapping
// table. Partial failure: bad records land in Result.Errors, good records are
// appended idempotently.
func (p *Pipeline) NormalizePage(
	ctx context.Context,
	chainId string,
	periodId string,
	providerName string,
	rules map[string]storage.EventType,
	page *providers.Page,
) (*Result, error) {
	chain, err := p.chains.GetChain(chainId)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Events: make([]*storage.CanonicalStakeEvent, 0, len(page.Records)),
		Errors: make([]*RecordError, 0),
	}

	normalizedAt := p.now().UTC()

	for _, record := range page.Records {
		event, err := p.normalizeRecord(chain, periodId, providerName, rules, record, normalizedAt)
		if err != nil {
			result.Errors = append(result.Errors, &RecordError{
				PayloadId: record.PayloadId,
				Err:       err,
			})
			continue
		}
		result.Events = append(result.Events, event)
	}

	inserted, err := p.eventStore.AppendEvents(ctx, result.Events)
	if err != nil {
		return nil, errors.Wrap(err, "failed to append canonical stake events")
	}
	result.InsertedCount = inserted
	result.DuplicatesSkipped = len(result.Events) - inserted

	if len(result.Errors) > 0 {
		p.logger.Sugar().Warnw("Normalized page with record errors",
			zap.String("chainId", chainId),
			zap.String("periodId", periodId),
			zap.String("provider", providerName),
			zap.Int("errorCount", len(result.Errors)),
			zap.Int("eventCount", len(result.Events)),
		)
	}

	return result, nil
}

func (p *Pipeline) normalizeRecord(
	chain *chainRegistry.ChainConfig,
	periodId string,
	providerName string,
	rules map[string]storage.EventType,
	record *providers.RawRecord,
	normalizedAt time.Time,
) (*storage.CanonicalStakeEvent, error) {
	eventType, ok := rules[record.Action]
	if !ok {
		return nil, fmt.Errorf("unmapped action '%s'", record.Action)
	}
	if !eventType.IsValid() {
		return nil, fmt.Errorf("rule for action '%s' yields invalid event type '%s'", record.Action, eventType)
	}
	if record.StakerAddress == "" {
		return nil, fmt.Errorf("missing staker address")
	}
	if record.Timestamp.IsZero() {
		return nil, fmt.Errorf("missing event timestamp")
	}

	amount, err := numbers.ParseNativeAmount(record.Amount, chain.NativeDecimals)
	if err != nil {
		return nil, err
	}

	dedupId := DedupKey(chain.ChainId, periodId, record.ValidatorKey, record.StakerAddress, eventType, record.Timestamp, record.PayloadId)

	return &storage.CanonicalStakeEvent{
		// Deterministic id: replaying the same payload mints the same event id.
		StakeEventId:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(dedupId)).String(),
		ChainId:           chain.ChainId,
		PeriodId:          periodId,
		ValidatorKey:      record.ValidatorKey,
		StakerAddress:     record.StakerAddress,
		EventType:         eventType,
		StakeAmountNative: amount,
		EventTimestamp:    record.Timestamp.UTC(),
		SourceProviderId:  providerName,
		SourcePayloadId:   record.PayloadId,
		DedupId:           dedupId,
		NormalizedAt:      normalizedAt,
	}, nil
}
