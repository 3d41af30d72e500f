package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ghanemar/stakeledger/pkg/storage"
)

type DataKind string

const (
	DataKind_Fees    DataKind = "fees"
	DataKind_Mev     DataKind = "mev"
	DataKind_Rewards DataKind = "rewards"
	DataKind_Meta    DataKind = "meta"
)

func (k DataKind) IsValid() bool {
	switch k {
	case DataKind_Fees, DataKind_Mev, DataKind_Rewards, DataKind_Meta:
		return true
	}
	return false
}

// Period identifies one accounting window in chain-native markers. For epoch
// chains Start == End == the epoch number; for block/slot chains they bound
// the range.
type Period struct {
	PeriodId string
	Index    uint64
	Start    uint64
	End      uint64
}

// RawRecord is the least common denominator shape every adapter must reduce
// its vendor payloads to before normalization. Amount is expressed in whole
// native units (never base units) as a decimal string.
type RawRecord struct {
	PayloadId     string
	ValidatorKey  string
	StakerAddress string
	Action        string
	Amount        string
	Timestamp     time.Time
	Raw           json.RawMessage
}

// Page is one bounded slice of raw records. An empty NextCursor means the
// range is exhausted; callers fetch pages sequentially within a unit because
// cursors are causally dependent.
type Page struct {
	Records    []*RawRecord
	NextCursor string
}

type FetchRequest struct {
	ChainId string
	Kind    DataKind
	Period  Period
	Cursor  string
}

// Adapter is the uniform fetch contract implemented once per vendor. Adapters
// perform a single network round trip per Fetch and surface classified
// *ProviderError failures; rate limiting and retries live in Throttled, not in
// the adapter.
type Adapter interface {
	Name() string

	// EventTypeRules maps vendor-specific action signals to canonical event
	// types. The normalization pipeline consumes this table; it never
	// hard-codes per-vendor mappings.
	EventTypeRules() map[string]storage.EventType

	Fetch(ctx context.Context, req *FetchRequest) (*Page, error)
}
