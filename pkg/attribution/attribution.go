package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/ghanemar/stakeledger/pkg/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnattributedPolicy decides what happens to a wallet-attribution event whose
// staker has no matching active wallet: fall back to a validator-level line or
// exclude the event entirely. The engine refuses to guess a default.
type UnattributedPolicy string

const (
	UnattributedPolicy_ValidatorFallback UnattributedPolicy = "validator_fallback"
	UnattributedPolicy_Exclude           UnattributedPolicy = "exclude"
)

func ParseUnattributedPolicy(s string) (UnattributedPolicy, error) {
	switch UnattributedPolicy(s) {
	case UnattributedPolicy_ValidatorFallback:
		return UnattributedPolicy_ValidatorFallback, nil
	case UnattributedPolicy_Exclude:
		return UnattributedPolicy_Exclude, nil
	}
	return "", fmt.Errorf("invalid unattributed policy '%s' (expected validator_fallback or exclude)", s)
}

// IntegrityError marks inconsistency in our own data, surfaced distinctly
// from provider failures so operators can tell "upstream flaked" apart from
// "our data is wrong".
type IntegrityError struct {
	Message string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("data integrity error: %s", e.Message)
}

// Snapshot is the partner/wallet/agreement state at computation time. The
// engine is a pure function of (event, snapshot); re-running with a fresh
// snapshot re-derives attribution, which is how retroactive wallet
// introductions take effect without re-ingesting raw data.
type Snapshot struct {
	agreementsByValidator map[string]*storage.Agreement
	walletsByAddress      map[string][]*storage.PartnerWallet
}

func validatorKeyOf(chainId, validatorKey string) string {
	return chainId + "|" + validatorKey
}

func walletKeyOf(chainId, address string) string {
	return chainId + "|" + address
}

// NewSnapshot indexes current state. Callers pass agreements and wallets read
// from storage with soft-deleted rows already filtered out; inactive wallets
// are tolerated here and filtered at match time.
func NewSnapshot(agreements []*storage.Agreement, wallets []*storage.PartnerWallet) *Snapshot {
	snap := &Snapshot{
		agreementsByValidator: make(map[string]*storage.Agreement),
		walletsByAddress:      make(map[string][]*storage.PartnerWallet),
	}
	for _, agreement := range agreements {
		if agreement.IsDeleted() {
			continue
		}
		snap.agreementsByValidator[validatorKeyOf(agreement.ChainId, agreement.ValidatorKey)] = agreement
	}
	for _, wallet := range wallets {
		if !wallet.IsActive {
			continue
		}
		key := walletKeyOf(wallet.ChainId, wallet.WalletAddress)
		snap.walletsByAddress[key] = append(snap.walletsByAddress[key], wallet)
	}
	return snap
}

func NewSnapshotFromStore(ctx context.Context, store storage.PartnerStore, chainIds []string) (*Snapshot, error) {
	agreements, err := store.ActiveAgreements(ctx)
	if err != nil {
		return nil, err
	}
	wallets := make([]*storage.PartnerWallet, 0)
	for _, chainId := range chainIds {
		chainWallets, err := store.ActiveWalletsForChain(ctx, chainId)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, chainWallets...)
	}
	return NewSnapshot(agreements, wallets), nil
}

type BatchResult struct {
	Lines            []*storage.CommissionLine
	WalletLevel      int
	ValidatorLevel   int
	UnattributedSkip int
	NoAgreementSkip  int
}

type Engine struct {
	policy UnattributedPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(policy UnattributedPolicy, l *zap.Logger) (*Engine, error) {
	if _, err := ParseUnattributedPolicy(string(policy)); err != nil {
		return nil, err
	}
	return &Engine{
		policy: policy,
		logger: l,
		now:    time.Now,
	}, nil
}

// AttributeEvent resolves the commission-bearing partner for one canonical
// event. Returns (nil, nil) when the event carries no commission under
// current state: no agreement, soft-deleted agreement, or unattributed under
// the exclude policy.
func (e *Engine) AttributeEvent(event *storage.CanonicalStakeEvent, snap *Snapshot, runId string) (*storage.CommissionLine, error) {
	agreement, ok := snap.agreementsByValidator[validatorKeyOf(event.ChainId, event.ValidatorKey)]
	if !ok {
		return nil, nil
	}

	if !agreement.WalletAttributionEnabled {
		return e.buildLine(event, agreement, nil, runId), nil
	}

	wallets := snap.walletsByAddress[walletKeyOf(event.ChainId, event.StakerAddress)]
	if len(wallets) > 1 {
		// The (chain_id, wallet_address) uniqueness constraint should make
		// this impossible; never silently pick one.
		return nil, &IntegrityError{
			Message: fmt.Sprintf("multiple active partner wallets for chain '%s' address '%s'", event.ChainId, event.StakerAddress),
		}
	}

	if len(wallets) == 1 && !wallets[0].IntroducedDate.After(dateOf(event.EventTimestamp)) {
		return e.buildLine(event, agreement, wallets[0], runId), nil
	}

	// Wallet never introduced, introduced after the event date, or inactive.
	if e.policy == UnattributedPolicy_ValidatorFallback {
		return e.buildLine(event, agreement, nil, runId), nil
	}
	return nil, nil
}

// AttributeEvents processes a batch, carrying per-event integrity errors into
// the returned error only; one bad event does not block its siblings.
func (e *Engine) AttributeEvents(events []*storage.CanonicalStakeEvent, snap *Snapshot, runId string) (*BatchResult, []error) {
	result := &BatchResult{
		Lines: make([]*storage.CommissionLine, 0, len(events)),
	}
	errs := make([]error, 0)

	for _, event := range events {
		line, err := e.AttributeEvent(event, snap, runId)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if line == nil {
			if _, hasAgreement := snap.agreementsByValidator[validatorKeyOf(event.ChainId, event.ValidatorKey)]; hasAgreement {
				result.UnattributedSkip++
			} else {
				result.NoAgreementSkip++
			}
			continue
		}
		if line.AttributionLevel == storage.AttributionLevel_Wallet {
			result.WalletLevel++
		} else {
			result.ValidatorLevel++
		}
		result.Lines = append(result.Lines, line)
	}

	return result, errs
}

func (e *Engine) buildLine(event *storage.CanonicalStakeEvent, agreement *storage.Agreement, wallet *storage.PartnerWallet, runId string) *storage.CommissionLine {
	line := &storage.CommissionLine{
		CommissionLineId:       uuid.New().String(),
		RunId:                  runId,
		StakeEventId:           event.StakeEventId,
		AgreementId:            agreement.AgreementId,
		PartnerId:              agreement.PartnerId,
		ChainId:                event.ChainId,
		ValidatorKey:           event.ValidatorKey,
		AttributionLevel:       storage.AttributionLevel_Validator,
		CommissionRate:         agreement.CommissionRate,
		CommissionAmountNative: event.StakeAmountNative.Mul(agreement.CommissionRate),
		ComputedAt:             e.now().UTC(),
	}
	if wallet != nil {
		line.AttributionLevel = storage.AttributionLevel_Wallet
		address := wallet.WalletAddress
		line.WalletAddress = &address
		line.PartnerId = wallet.PartnerId
	}
	return line
}

// dateOf truncates a timestamp to its UTC date; introduced_date comparisons
// are date-granular.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
