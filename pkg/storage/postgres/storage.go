package postgres

import (
	"context"

	"github.com/ghanemar/stakeledger/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements the storage contracts on top of gorm. It is the
// production persistence boundary; schema management lives outside this repo.
type PostgresStore struct {
	Db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresStore(db *gorm.DB, l *zap.Logger) *PostgresStore {
	return &PostgresStore{
		Db:     db,
		logger: l,
	}
}

func (s *PostgresStore) AppendEvents(ctx context.Context, events []*storage.CanonicalStakeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	res := s.Db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_id"}},
		DoNothing: true,
	}).Create(&events)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to append canonical stake events", zap.Error(res.Error))
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (s *PostgresStore) EventExists(ctx context.Context, dedupId string) (bool, error) {
	var count int64
	res := s.Db.WithContext(ctx).
		Model(&storage.CanonicalStakeEvent{}).
		Where("dedup_id = ?", dedupId).
		Count(&count)
	if res.Error != nil {
		return false, res.Error
	}
	return count > 0, nil
}

func (s *PostgresStore) ListEventsForPeriod(ctx context.Context, chainId string, periodId string) ([]*storage.CanonicalStakeEvent, error) {
	var events []*storage.CanonicalStakeEvent
	res := s.Db.WithContext(ctx).
		Where("chain_id = ? and period_id = ?", chainId, periodId).
		Order("event_timestamp asc").
		Find(&events)
	if res.Error != nil {
		return nil, res.Error
	}
	return events, nil
}

func (s *PostgresStore) ActiveWalletsForChain(ctx context.Context, chainId string) ([]*storage.PartnerWallet, error) {
	var wallets []*storage.PartnerWallet
	res := s.Db.WithContext(ctx).
		Where("chain_id = ? and is_active = true", chainId).
		Find(&wallets)
	if res.Error != nil {
		return nil, res.Error
	}
	return wallets, nil
}

func (s *PostgresStore) ActiveAgreements(ctx context.Context) ([]*storage.Agreement, error) {
	var agreements []*storage.Agreement
	res := s.Db.WithContext(ctx).
		Where("deleted_at is null").
		Find(&agreements)
	if res.Error != nil {
		return nil, res.Error
	}
	return agreements, nil
}

func (s *PostgresStore) AppendCommissionLines(ctx context.Context, lines []*storage.CommissionLine) error {
	if len(lines) == 0 {
		return nil
	}
	res := s.Db.WithContext(ctx).Create(&lines)
	if res.Error != nil {
		s.logger.Sugar().Errorw("Failed to append commission lines", zap.Error(res.Error))
		return res.Error
	}
	return nil
}

func (s *PostgresStore) ListCommissionLinesForRun(ctx context.Context, runId string) ([]*storage.CommissionLine, error) {
	var lines []*storage.CommissionLine
	res := s.Db.WithContext(ctx).
		Where("run_id = ?", runId).
		Find(&lines)
	if res.Error != nil {
		return nil, res.Error
	}
	return lines, nil
}
