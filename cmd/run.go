package cmd

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ghanemar/stakeledger/internal/config"
	"github.com/ghanemar/stakeledger/internal/logger"
	"github.com/ghanemar/stakeledger/internal/metrics"
	"github.com/ghanemar/stakeledger/pkg/attribution"
	"github.com/ghanemar/stakeledger/pkg/chainRegistry"
	"github.com/ghanemar/stakeledger/pkg/ingestion"
	"github.com/ghanemar/stakeledger/pkg/normalization"
	"github.com/ghanemar/stakeledger/pkg/postgres"
	"github.com/ghanemar/stakeledger/pkg/providerFactory"
	"github.com/ghanemar/stakeledger/pkg/providerRegistry"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"github.com/ghanemar/stakeledger/pkg/providers/jito"
	"github.com/ghanemar/stakeledger/pkg/providers/solanaBeach"
	"github.com/ghanemar/stakeledger/pkg/storage"
	pgStorage "github.com/ghanemar/stakeledger/pkg/storage/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var ingestedKinds = []providers.DataKind{
	providers.DataKind_Fees,
	providers.DataKind_Mev,
	providers.DataKind_Rewards,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest a period range, normalize it, and compute partner commission",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		policy, err := attribution.ParseUnattributedPolicy(cfg.AttributionConfig.UnattributedPolicy)
		if err != nil {
			l.Sugar().Fatalw("Invalid attribution configuration", zap.Error(err))
		}

		chains, err := chainRegistry.NewChainRegistryFromFile(cfg.ChainConfigFile)
		if err != nil {
			l.Sugar().Fatalw("Failed to load chain configuration", zap.Error(err))
		}
		providerCfgs, err := providerRegistry.NewProviderRegistryFromFile(cfg.ProviderConfigFile)
		if err != nil {
			l.Sugar().Fatalw("Failed to load provider configuration", zap.Error(err))
		}

		var m *metrics.Metrics
		if cfg.PrometheusConfig.Enabled {
			m = metrics.NewMetrics(nil)
			server := metrics.StartServer(cfg.PrometheusConfig.Port, l)
			defer server.Close()
		}

		pg, err := postgres.NewPostgres(&postgres.PostgresConfig{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			Username: cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			DbName:   cfg.DatabaseConfig.DbName,
		})
		if err != nil {
			l.Sugar().Fatalw("Failed to setup postgres connection", zap.Error(err))
		}
		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Sugar().Fatalw("Failed to create gorm instance", zap.Error(err))
		}
		store := pgStorage.NewPostgresStore(grm, l)

		factory := providerFactory.NewProviderFactory(chains, providerCfgs, l)
		factory.RegisterAdapter(solanaBeach.AdapterName, solanaBeach.NewAdapter)
		factory.RegisterAdapter(jito.AdapterName, jito.NewAdapter)

		pipeline := normalization.NewPipeline(store, chains, l)
		ingestor := ingestion.NewIngestor(factory, pipeline, m, l, cfg.IngestionConfig.WorkerCount)

		engine, err := attribution.NewEngine(policy, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create attribution engine", zap.Error(err))
		}

		chainFilter := viper.GetString("run_chain")
		periodStart := viper.GetUint64("run_period_start")
		periodEnd := viper.GetUint64("run_period_end")
		if periodEnd < periodStart {
			l.Sugar().Fatalw("period-end must be >= period-start",
				zap.Uint64("periodStart", periodStart),
				zap.Uint64("periodEnd", periodEnd),
			)
		}

		chainIds := chains.ListChains()
		if chainFilter != "" {
			if !chains.HasChain(chainFilter) {
				l.Sugar().Fatalw("Unknown chain", zap.String("chainId", chainFilter))
			}
			chainIds = []string{chainFilter}
		}

		units := buildUnits(chains, chainIds, periodStart, periodEnd, l)

		result := ingestor.Run(ctx, units)
		for _, failure := range result.Failed {
			m.IncrUnitFailures(failure.Unit.ChainId, string(failure.Unit.Kind))
		}
		l.Sugar().Infow("Ingestion run complete",
			zap.Int("succeededUnits", len(result.Succeeded)),
			zap.Int("failedUnits", len(result.Failed)),
			zap.Int("eventsCreated", result.EventsCreated),
			zap.Int("duplicatesSkipped", result.DuplicatesSkipped),
			zap.Int("recordErrors", len(result.RecordErrors)),
		)

		snapshot, err := attribution.NewSnapshotFromStore(ctx, store, chainIds)
		if err != nil {
			l.Sugar().Fatalw("Failed to load partner state", zap.Error(err))
		}

		runId := uuid.New().String()
		for _, chainId := range chainIds {
			for index := periodStart; index <= periodEnd; index++ {
				periodId := periodIdFor(chainId, index)
				events, err := store.ListEventsForPeriod(ctx, chainId, periodId)
				if err != nil {
					l.Sugar().Errorw("Failed to list events for period",
						zap.String("chainId", chainId),
						zap.String("periodId", periodId),
						zap.Error(err),
					)
					continue
				}

				batch, integrityErrs := engine.AttributeEvents(events, snapshot, runId)
				for _, ierr := range integrityErrs {
					l.Sugar().Errorw("Attribution integrity error",
						zap.String("chainId", chainId),
						zap.String("periodId", periodId),
						zap.Error(ierr),
					)
				}

				if err := store.AppendCommissionLines(ctx, batch.Lines); err != nil {
					l.Sugar().Errorw("Failed to append commission lines",
						zap.String("chainId", chainId),
						zap.String("periodId", periodId),
						zap.Error(err),
					)
					continue
				}
				m.IncrCommissionLines(chainId, string(storage.AttributionLevel_Wallet), batch.WalletLevel)
				m.IncrCommissionLines(chainId, string(storage.AttributionLevel_Validator), batch.ValidatorLevel)

				l.Sugar().Infow("Attribution complete for period",
					zap.String("chainId", chainId),
					zap.String("periodId", periodId),
					zap.String("runId", runId),
					zap.Int("walletLevel", batch.WalletLevel),
					zap.Int("validatorLevel", batch.ValidatorLevel),
					zap.Int("unattributedSkipped", batch.UnattributedSkip),
					zap.Int("noAgreementSkipped", batch.NoAgreementSkip),
				)
			}
		}
	},
}

func init() {
	runCmd.PersistentFlags().String("chain", "", `Limit the run to a single chain id`)
	runCmd.PersistentFlags().Uint64("period-start", 0, `First period ordinal to ingest (inclusive)`)
	runCmd.PersistentFlags().Uint64("period-end", 0, `Last period ordinal to ingest (inclusive)`)

	viper.BindPFlag("run_chain", runCmd.PersistentFlags().Lookup("chain"))               //nolint:errcheck
	viper.BindPFlag("run_period_start", runCmd.PersistentFlags().Lookup("period-start")) //nolint:errcheck
	viper.BindPFlag("run_period_end", runCmd.PersistentFlags().Lookup("period-end"))     //nolint:errcheck
}

func periodIdFor(chainId string, index uint64) string {
	return chainId + "-" + strconv.FormatUint(index, 10)
}

func buildUnits(chains *chainRegistry.ChainRegistry, chainIds []string, periodStart, periodEnd uint64, l *zap.Logger) []ingestion.Unit {
	units := make([]ingestion.Unit, 0)
	for _, chainId := range chainIds {
		chain, err := chains.GetChain(chainId)
		if err != nil {
			continue
		}
		for index := periodStart; index <= periodEnd; index++ {
			period := providers.Period{
				PeriodId: periodIdFor(chainId, index),
				Index:    index,
				Start:    index,
				End:      index,
			}
			for _, kind := range ingestedKinds {
				if _, ok := chain.ProviderFor(string(kind)); !ok {
					l.Sugar().Debugw("No provider bound for data kind; skipping",
						zap.String("chainId", chainId),
						zap.String("kind", string(kind)),
					)
					continue
				}
				units = append(units, ingestion.Unit{
					ChainId: chainId,
					Kind:    kind,
					Period:  period,
				})
			}
		}
	}
	return units
}
