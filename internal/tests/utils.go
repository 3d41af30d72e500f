package tests

import (
	"os"
	"time"

	"github.com/ghanemar/stakeledger/pkg/storage"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

type partnerWalletFixture struct {
	WalletId       string `csv:"wallet_id"`
	PartnerId      string `csv:"partner_id"`
	ChainId        string `csv:"chain_id"`
	WalletAddress  string `csv:"wallet_address"`
	IntroducedDate string `csv:"introduced_date"`
	IsActive       bool   `csv:"is_active"`
}

// LoadPartnerWalletFixtures reads a partner wallet CSV fixture. Dates are
// YYYY-MM-DD, interpreted as UTC.
func LoadPartnerWalletFixtures(path string) ([]*storage.PartnerWallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open fixture %s", path)
	}
	defer f.Close()

	fixtures := make([]*partnerWalletFixture, 0)
	if err := gocsv.UnmarshalFile(f, &fixtures); err != nil {
		return nil, errors.Wrapf(err, "failed to parse fixture %s", path)
	}

	wallets := make([]*storage.PartnerWallet, 0, len(fixtures))
	for _, fixture := range fixtures {
		introduced, err := time.ParseInLocation("2006-01-02", fixture.IntroducedDate, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "bad introduced_date for wallet %s", fixture.WalletId)
		}
		wallets = append(wallets, &storage.PartnerWallet{
			WalletId:       fixture.WalletId,
			PartnerId:      fixture.PartnerId,
			ChainId:        fixture.ChainId,
			WalletAddress:  fixture.WalletAddress,
			IntroducedDate: introduced,
			IsActive:       fixture.IsActive,
		})
	}
	return wallets, nil
}
