package config

import (
	"regexp"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "STAKELEDGER"

const (
	Debug = "debug"

	ChainConfigFile    = "chain-config"
	ProviderConfigFile = "provider-config"

	DatabaseHost     = "database.host"
	DatabasePort     = "database.port"
	DatabaseUser     = "database.user"
	DatabasePassword = "database.password"
	DatabaseDbName   = "database.db_name"

	AttributionUnattributedPolicy = "attribution.unattributed-policy"

	IngestionWorkerCount = "ingestion.worker-count"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

// KebabToSnakeCase normalizes flag names so they can double as env var keys.
func KebabToSnakeCase(str string) string {
	kebab := regexp.MustCompile(`-`)
	return kebab.ReplaceAllString(str, "_")
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
}

type AttributionConfig struct {
	// UnattributedPolicy is "validator_fallback" or "exclude". There is no
	// implied default; the run command refuses to start without one.
	UnattributedPolicy string
}

type IngestionConfig struct {
	WorkerCount int
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug              bool
	ChainConfigFile    string
	ProviderConfigFile string
	DatabaseConfig     DatabaseConfig
	AttributionConfig  AttributionConfig
	IngestionConfig    IngestionConfig
	PrometheusConfig   PrometheusConfig
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(Debug),

		ChainConfigFile:    viper.GetString(KebabToSnakeCase(ChainConfigFile)),
		ProviderConfigFile: viper.GetString(KebabToSnakeCase(ProviderConfigFile)),

		DatabaseConfig: DatabaseConfig{
			Host:     viper.GetString(KebabToSnakeCase(DatabaseHost)),
			Port:     viper.GetInt(KebabToSnakeCase(DatabasePort)),
			User:     viper.GetString(KebabToSnakeCase(DatabaseUser)),
			Password: viper.GetString(KebabToSnakeCase(DatabasePassword)),
			DbName:   viper.GetString(KebabToSnakeCase(DatabaseDbName)),
		},

		AttributionConfig: AttributionConfig{
			UnattributedPolicy: viper.GetString(KebabToSnakeCase(AttributionUnattributedPolicy)),
		},

		IngestionConfig: IngestionConfig{
			WorkerCount: viper.GetInt(KebabToSnakeCase(IngestionWorkerCount)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(PrometheusEnabled)),
			Port:    viper.GetInt(KebabToSnakeCase(PrometheusPort)),
		},
	}
}
