package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventType_Stake   EventType = "STAKE"
	EventType_Unstake EventType = "UNSTAKE"
	EventType_Restake EventType = "RESTAKE"
)

func (e EventType) IsValid() bool {
	switch e {
	case EventType_Stake, EventType_Unstake, EventType_Restake:
		return true
	}
	return false
}

type AttributionLevel string

const (
	AttributionLevel_Wallet    AttributionLevel = "wallet"
	AttributionLevel_Validator AttributionLevel = "validator"
)

// Tables.

type Period struct {
	PeriodId    string `gorm:"column:period_id;primaryKey"`
	ChainId     string `gorm:"column:chain_id;index"`
	Index       uint64 `gorm:"column:ordinal_index"`
	StartMarker uint64 `gorm:"column:start_marker"`
	EndMarker   uint64 `gorm:"column:end_marker"`
	Finalized   bool   `gorm:"column:finalized"`
}

func (Period) TableName() string { return "periods" }

// CanonicalStakeEvent rows are append-only; the pipeline never updates one in
// place. DedupId is the natural key (chain, period, validator, staker, event
// type, timestamp, source payload) flattened to a single indexed column so
// replays are no-ops at the store.
type CanonicalStakeEvent struct {
	StakeEventId      string          `gorm:"column:stake_event_id;primaryKey"`
	ChainId           string          `gorm:"column:chain_id;index"`
	PeriodId          string          `gorm:"column:period_id;index"`
	ValidatorKey      string          `gorm:"column:validator_key"`
	StakerAddress     string          `gorm:"column:staker_address"`
	EventType         EventType       `gorm:"column:event_type"`
	StakeAmountNative decimal.Decimal `gorm:"column:stake_amount_native;type:numeric(38,18)"`
	EventTimestamp    time.Time       `gorm:"column:event_timestamp"`
	SourceProviderId  string          `gorm:"column:source_provider_id"`
	SourcePayloadId   string          `gorm:"column:source_payload_id"`
	DedupId           string          `gorm:"column:dedup_id;uniqueIndex"`
	NormalizedAt      time.Time       `gorm:"column:normalized_at"`
}

func (CanonicalStakeEvent) TableName() string { return "canonical_stake_events" }

type PartnerWallet struct {
	WalletId       string    `gorm:"column:wallet_id;primaryKey"`
	PartnerId      string    `gorm:"column:partner_id;index"`
	ChainId        string    `gorm:"column:chain_id;uniqueIndex:uq_chain_wallet_address"`
	WalletAddress  string    `gorm:"column:wallet_address;uniqueIndex:uq_chain_wallet_address"`
	IntroducedDate time.Time `gorm:"column:introduced_date"`
	IsActive       bool      `gorm:"column:is_active"`
	Notes          string    `gorm:"column:notes"`
}

func (PartnerWallet) TableName() string { return "partner_wallets" }

type Agreement struct {
	AgreementId              string          `gorm:"column:agreement_id;primaryKey"`
	PartnerId                string          `gorm:"column:partner_id;index"`
	ChainId                  string          `gorm:"column:chain_id"`
	ValidatorKey             string          `gorm:"column:validator_key"`
	CommissionRate           decimal.Decimal `gorm:"column:commission_rate;type:numeric(10,8)"`
	WalletAttributionEnabled bool            `gorm:"column:wallet_attribution_enabled"`
	DeletedAt                *time.Time      `gorm:"column:deleted_at"`
}

func (Agreement) TableName() string { return "agreements" }

func (a *Agreement) IsDeleted() bool {
	return a.DeletedAt != nil
}

// CommissionLine rows are append-only per computation run; a later run with
// updated partner state writes new lines for the same event rather than
// mutating old ones.
type CommissionLine struct {
	CommissionLineId string           `gorm:"column:commission_line_id;primaryKey"`
	RunId            string           `gorm:"column:run_id;index"`
	StakeEventId     string           `gorm:"column:stake_event_id;index"`
	AgreementId      string           `gorm:"column:agreement_id"`
	PartnerId        string           `gorm:"column:partner_id"`
	ChainId          string           `gorm:"column:chain_id"`
	ValidatorKey     string           `gorm:"column:validator_key"`
	AttributionLevel AttributionLevel `gorm:"column:attribution_level"`
	// WalletAddress is set only for wallet-level attribution.
	WalletAddress          *string         `gorm:"column:wallet_address"`
	CommissionRate         decimal.Decimal `gorm:"column:commission_rate;type:numeric(10,8)"`
	CommissionAmountNative decimal.Decimal `gorm:"column:commission_amount_native;type:numeric(38,18)"`
	ComputedAt             time.Time       `gorm:"column:computed_at"`
}

func (CommissionLine) TableName() string { return "commission_lines" }

// Store contracts. Canonical events and commission lines are appended, never
// updated; partner/wallet/agreement reads reflect current non-soft-deleted
// state only.

type StakeEventStore interface {
	// AppendEvents inserts events, silently ignoring rows whose DedupId is
	// already present. Returns the number of rows actually inserted.
	AppendEvents(ctx context.Context, events []*CanonicalStakeEvent) (int, error)
	EventExists(ctx context.Context, dedupId string) (bool, error)
	ListEventsForPeriod(ctx context.Context, chainId string, periodId string) ([]*CanonicalStakeEvent, error)
}

type PartnerStore interface {
	ActiveWalletsForChain(ctx context.Context, chainId string) ([]*PartnerWallet, error)
	ActiveAgreements(ctx context.Context) ([]*Agreement, error)
}

type CommissionStore interface {
	AppendCommissionLines(ctx context.Context, lines []*CommissionLine) error
	ListCommissionLinesForRun(ctx context.Context, runId string) ([]*CommissionLine, error)
}
