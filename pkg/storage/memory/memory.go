package memory

import (
	"context"
	"sync"

	"github.com/ghanemar/stakeledger/pkg/storage"
)

// MemoryStore is an in-memory implementation of the storage contracts, used by
// unit tests and embedded runs. It honors the same append-only and
// conflict-ignoring semantics as the postgres store.
type MemoryStore struct {
	mu              sync.RWMutex
	eventsByDedupId map[string]*storage.CanonicalStakeEvent
	eventOrder      []string
	wallets         []*storage.PartnerWallet
	agreements      []*storage.Agreement
	commissionLines []*storage.CommissionLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		eventsByDedupId: make(map[string]*storage.CanonicalStakeEvent),
	}
}

func (s *MemoryStore) AppendEvents(ctx context.Context, events []*storage.CanonicalStakeEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, event := range events {
		if _, ok := s.eventsByDedupId[event.DedupId]; ok {
			continue
		}
		s.eventsByDedupId[event.DedupId] = event
		s.eventOrder = append(s.eventOrder, event.DedupId)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) EventExists(ctx context.Context, dedupId string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.eventsByDedupId[dedupId]
	return ok, nil
}

func (s *MemoryStore) ListEventsForPeriod(ctx context.Context, chainId string, periodId string) ([]*storage.CanonicalStakeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*storage.CanonicalStakeEvent, 0)
	for _, dedupId := range s.eventOrder {
		event := s.eventsByDedupId[dedupId]
		if event.ChainId == chainId && event.PeriodId == periodId {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *MemoryStore) SetWallets(wallets []*storage.PartnerWallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = wallets
}

func (s *MemoryStore) SetAgreements(agreements []*storage.Agreement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agreements = agreements
}

func (s *MemoryStore) ActiveWalletsForChain(ctx context.Context, chainId string) ([]*storage.PartnerWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallets := make([]*storage.PartnerWallet, 0)
	for _, wallet := range s.wallets {
		if wallet.ChainId == chainId && wallet.IsActive {
			wallets = append(wallets, wallet)
		}
	}
	return wallets, nil
}

func (s *MemoryStore) ActiveAgreements(ctx context.Context) ([]*storage.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agreements := make([]*storage.Agreement, 0)
	for _, agreement := range s.agreements {
		if !agreement.IsDeleted() {
			agreements = append(agreements, agreement)
		}
	}
	return agreements, nil
}

func (s *MemoryStore) AppendCommissionLines(ctx context.Context, lines []*storage.CommissionLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commissionLines = append(s.commissionLines, lines...)
	return nil
}

func (s *MemoryStore) ListCommissionLinesForRun(ctx context.Context, runId string) ([]*storage.CommissionLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]*storage.CommissionLine, 0)
	for _, line := range s.commissionLines {
		if line.RunId == runId {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
