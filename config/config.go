package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"oracle-node/oracle/provider"
	"oracle-node/oracle/types"
)

const (
	defaultUpdateIntervalMs    = 5_000
	defaultPrecisionMultiplier = 1_000_000
	defaultMinSources          = 3
	defaultCEXMaxConcurrency   = 20
	defaultCEXTimeout          = 10 * time.Second
	defaultPollIntervalRemote  = 20 * time.Second
	defaultPollIntervalLocal   = 10 * time.Second
	defaultMaxRetries          = 10
	defaultAlertCooldownMs     = 1_800_000
	defaultTimeoutVariancePct  = 105
)

var (
	validate = validator.New()

	// ErrEmptyConfigPath is returned when ParseConfig is handed an empty path.
	ErrEmptyConfigPath = errors.New("empty configuration file path")

	placeholderPattern = regexp.MustCompile(`<%=\s*@(\w+)\s*%>`)
)

type (
	// Config is the node's full runtime configuration, loaded from a single
	// TOML file (optionally assembled from an `include:` directive merging
	// a second file over the first).
	Config struct {
		Node             Node              `toml:"node" validate:"required"`
		ChainQuery       ChainQuery        `toml:"chain_query" validate:"required"`
		Rate             Rate              `toml:"rate" validate:"required"`
		Updater          Updater           `toml:"updater"`
		Alerts           *Alerts           `toml:"alerts"`
		RewardCollection *RewardCollection `toml:"reward_collection"`
		NodeSync         *NodeSync         `toml:"node_sync"`
		Database         Database          `toml:"database"`
		Server           Server            `toml:"server"`
		Include          string            `toml:"include"`
	}

	// Node carries this operator's identity and the oracle instance it
	// serves.
	Node struct {
		OperatorKeyringBackend string `toml:"operator_keyring_backend" validate:"required"`
		OperatorKeyringDir     string `toml:"operator_keyring_dir" validate:"required"`
		OperatorAddress        string `toml:"operator_address" validate:"required"`
		PubKeyHashHex          string `toml:"pub_key_hash_hex" validate:"required"`
		OracleAddress          string `toml:"oracle_address" validate:"required"`
		OracleCurrency         CurrencyPair `toml:"oracle_currency" validate:"required"`
		FeeTokenPolicyID       string `toml:"fee_token_policy_id" validate:"required"`
		FeeTokenAssetName      string `toml:"fee_token_asset_name"`
		NFTPolicyID            string `toml:"nft_policy_id" validate:"required"`
		OracleFeedAssetName    string `toml:"oracle_feed_asset_name" validate:"required"`
		AggStateAssetName      string `toml:"agg_state_asset_name" validate:"required"`
		RewardAssetName        string `toml:"reward_asset_name" validate:"required"`
		NodeFeedAssetPrefix    string `toml:"node_feed_asset_prefix" validate:"required"`
		ReferenceScriptTxHash  string `toml:"reference_script_tx_hash"`
		ReferenceScriptIndex   uint32 `toml:"reference_script_index"`
	}

	// ChainQuery configures exactly one of the two chain-context backends.
	// Network and remote-API credentials come from the fields here; a
	// `<%= @key %>` placeholder in the file can pull a value from the
	// environment at load time.
	ChainQuery struct {
		Network            string     `toml:"network" validate:"required,oneof=preprod mainnet"`
		Ogmios             *Ogmios    `toml:"ogmios"`
		Blockfrost         *Blockfrost `toml:"blockfrost"`
		ExternalMainnet    *Blockfrost `toml:"external_mainnet"`
		HealthProbeTimeout string     `toml:"health_probe_timeout"`
	}

	Ogmios struct {
		SocketPath   string `toml:"socket_path" validate:"required"`
		NetworkMagic uint32 `toml:"network_magic" validate:"required"`
	}

	Blockfrost struct {
		BaseURL string `toml:"base_url" validate:"required"`
		APIKey  string `toml:"api_key" validate:"required"`
	}

	// Rate configures the base and optional quote currency source pools.
	Rate struct {
		Base              CurrencyConfig  `toml:"base" validate:"required"`
		Quote             *CurrencyConfig `toml:"quote"`
		MinRequirement    bool            `toml:"min_requirement"`
		MinSources        int             `toml:"min_sources"`
		PrecisionMultiplier int64         `toml:"precision_multiplier"`
		// DexPoolAddresses maps a DEX name (as referenced in dex_pools) to
		// the script address its pool UTxOs live at, registered at startup
		// with chain/cardano.RegisterDEX.
		DexPoolAddresses map[string]string `toml:"dex_pool_addresses"`
	}

	// CurrencyConfig names one currency's adapter sources across all four
	// adapter families.
	CurrencyConfig struct {
		Pair          CurrencyPair   `toml:"pair" validate:"required"`
		DexPools      []SourceConfig `toml:"dex_pools" validate:"dive"`
		CEXSources    []SourceConfig `toml:"cex_sources" validate:"dive"`
		HTTPSources   []HTTPSource   `toml:"http_sources" validate:"dive"`
		LPNavSources  []SourceConfig `toml:"lp_nav_sources" validate:"dive"`
		QuoteRequired bool           `toml:"quote_required"`
		QuoteCalc     string         `toml:"quote_calc_method" validate:"omitempty,oneof=multiply divide"`
		MaxConcurrency int           `toml:"max_concurrency"`
		Timeout       string         `toml:"timeout"`
		// TokenAssetID names the "policyID.assetNameHex" native asset this
		// currency's non-ADA side refers to, required only when DexPools or
		// LPNavSources is non-empty (CEX/generic-HTTP sources price against
		// fiat and never touch an on-chain pool).
		TokenAssetID string `toml:"token_asset_id"`
	}

	// SourceConfig names one adapter source (a DEX, exchange, or LP pool).
	SourceConfig struct {
		Name string `toml:"name" validate:"required"`
	}

	// HTTPSource is a generic-HTTP adapter source.
	HTTPSource struct {
		Name    string            `toml:"name" validate:"required"`
		URL     string            `toml:"url" validate:"required"`
		JSONPath []string         `toml:"json_path" validate:"required"`
		Headers map[string]string `toml:"headers"`
		Inverse bool              `toml:"inverse"`
	}

	// CurrencyPair mirrors oracle/types.CurrencyPair at the config layer so
	// this package does not need to import the domain package just to
	// describe a pair in TOML.
	CurrencyPair struct {
		Base  string `toml:"base" validate:"required"`
		Quote string `toml:"quote" validate:"required"`
	}

	// Updater holds the scheduler's tick cadence.
	Updater struct {
		UpdateIntervalMs int64 `toml:"update_interval_ms"`
	}

	// Alerts configures the alert supervisor's thresholds and transports.
	Alerts struct {
		LowNativeBalanceLovelace int64            `toml:"low_native_balance_lovelace"`
		LowFeeTokenBalance       int64            `toml:"low_fee_token_balance"`
		TimeoutVariancePct       int64            `toml:"timeout_variance_pct"`
		CooldownMs               int64            `toml:"cooldown_ms"`
		WebhookURL               string           `toml:"webhook_url"`
		HealthcheckURL           string           `toml:"healthcheck_url"`
	}

	// RewardCollection configures the reward-collection side-channel.
	RewardCollection struct {
		TriggerAmountLovelace int64  `toml:"trigger_amount_lovelace" validate:"required"`
		DestinationAddress    string `toml:"destination_address" validate:"required"`
	}

	// NodeSync names an optional peer-discovery endpoint. The section is
	// parsed and validated only; no other part of the node reads it.
	NodeSync struct {
		DiscoveryURL string `toml:"discovery_url" validate:"required"`
	}

	// Database configures the sqlite-backed RateStore; if Path is empty the
	// node runs with the null store.
	Database struct {
		Path string `toml:"path"`
	}

	// Server defines the read-only status API configuration.
	Server struct {
		ListenAddr     string   `toml:"listen_addr"`
		WriteTimeout   string   `toml:"write_timeout"`
		ReadTimeout    string   `toml:"read_timeout"`
		VerboseCORS    bool     `toml:"verbose_cors"`
		AllowedOrigins []string `toml:"allowed_origins"`
		Enabled        bool     `toml:"enabled"`
	}
)

// chainQueryValidation enforces that exactly one of {ogmios, blockfrost}
// is configured, and that testnet additionally carries an external-mainnet
// context for DEX price discovery.
func chainQueryValidation(sl validator.StructLevel) {
	cq := sl.Current().Interface().(ChainQuery)

	configured := 0
	if cq.Ogmios != nil {
		configured++
	}
	if cq.Blockfrost != nil {
		configured++
	}
	if configured != 1 {
		sl.ReportError(cq, "Ogmios", "Ogmios", "exactlyOneChainContext", "")
	}

	if cq.Network == "preprod" && cq.ExternalMainnet == nil {
		sl.ReportError(cq, "ExternalMainnet", "ExternalMainnet", "testnetRequiresExternalMainnet", "")
	}
}

// rateValidation enforces the minimum-source-count and quote-required
// rules from the validators component.
func rateValidation(sl validator.StructLevel) {
	r := sl.Current().Interface().(Rate)

	if r.MinRequirement {
		min := r.MinSources
		if min == 0 {
			min = defaultMinSources
		}
		if countSources(r.Base) < min {
			sl.ReportError(r.Base, "Base", "Base", "belowMinSources", "")
		}
	}

	if r.Base.QuoteRequired && r.Quote == nil {
		sl.ReportError(r.Quote, "Quote", "Quote", "quoteRequiredNeedsQuoteCurrency", "")
	}
}

// DefaultPollInterval returns the tx-confirmation poll cadence appropriate
// to whichever chain-context backend this ChainQuery configures: a local
// node can be polled more aggressively than a rate-limited remote API.
func (cq ChainQuery) DefaultPollInterval() time.Duration {
	if cq.Ogmios != nil {
		return defaultPollIntervalLocal
	}
	return defaultPollIntervalRemote
}

// ToPair converts the config-layer pair into the domain CurrencyPair type.
func (cp CurrencyPair) ToPair() types.CurrencyPair {
	return types.CurrencyPair{Base: cp.Base, Quote: cp.Quote}
}

// toEndpoint builds the shared provider.Endpoint fields every adapter
// family constructs from; sourceNames is the family-specific source list
// (DexPools, CEXSources, or LPNavSources).
func (c CurrencyConfig) toEndpoint(sourceNames []SourceConfig) provider.Endpoint {
	sources := make([]string, len(sourceNames))
	for i, s := range sourceNames {
		sources[i] = s.Name
	}

	timeout, _ := time.ParseDuration(c.Timeout)

	quoteCalc := types.QuoteCalcMultiply
	if c.QuoteCalc == "divide" {
		quoteCalc = types.QuoteCalcDivide
	}

	e := provider.Endpoint{
		Sources:        sources,
		QuoteRequired:  c.QuoteRequired,
		QuoteCalc:      quoteCalc,
		Timeout:        timeout,
		MaxConcurrency: c.MaxConcurrency,
	}
	e.SetDefaults()
	return e
}

// DexPoolEndpoint, CEXEndpoint, and LPNavEndpoint build the provider.Endpoint
// for each adapter family this currency is configured with.
func (c CurrencyConfig) DexPoolEndpoint() provider.Endpoint { return c.toEndpoint(c.DexPools) }
func (c CurrencyConfig) CEXEndpoint() provider.Endpoint     { return c.toEndpoint(c.CEXSources) }
func (c CurrencyConfig) LPNavEndpoint() provider.Endpoint   { return c.toEndpoint(c.LPNavSources) }

// HTTPEndpoint builds the provider.Endpoint for the generic-HTTP adapter
// family, whose sources carry a URL and JSON path alongside their name.
func (c CurrencyConfig) HTTPEndpoint() provider.Endpoint {
	names := make([]SourceConfig, len(c.HTTPSources))
	for i, s := range c.HTTPSources {
		names[i] = SourceConfig{Name: s.Name}
	}
	return c.toEndpoint(names)
}

func countSources(c CurrencyConfig) int {
	return len(c.DexPools) + len(c.CEXSources) + len(c.HTTPSources) + len(c.LPNavSources)
}

// Validate returns an error if the Config object is invalid.
func (c Config) Validate() error {
	validate.RegisterStructValidation(chainQueryValidation, ChainQuery{})
	validate.RegisterStructValidation(rateValidation, Rate{})
	return validate.Struct(c)
}

// ParseConfig reads, merges, substitutes placeholders in, and validates
// the configuration file at configPath.
func ParseConfig(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		return cfg, ErrEmptyConfigPath
	}

	raw, err := loadWithPlaceholders(configPath)
	if err != nil {
		return cfg, err
	}

	if _, err := toml.Decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Include != "" {
		includeRaw, err := loadWithPlaceholders(cfg.Include)
		if err != nil {
			return cfg, fmt.Errorf("failed to load included config %q: %w", cfg.Include, err)
		}
		if _, err := toml.Decode(includeRaw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode included config: %w", err)
		}
	}

	applyDefaults(&cfg)

	return cfg, cfg.Validate()
}

// loadWithPlaceholders reads path and substitutes every `<%= @key %>`
// placeholder with the value of the environment variable KEY (uppercased).
func loadWithPlaceholders(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}

	substituted := placeholderPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		return os.Getenv(strings.ToUpper(groups[1]))
	})
	return substituted, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Updater.UpdateIntervalMs == 0 {
		cfg.Updater.UpdateIntervalMs = defaultUpdateIntervalMs
	}
	if cfg.Rate.PrecisionMultiplier == 0 {
		cfg.Rate.PrecisionMultiplier = defaultPrecisionMultiplier
	}
	if cfg.Rate.MinSources == 0 {
		cfg.Rate.MinSources = defaultMinSources
	}
	applyCurrencyDefaults(&cfg.Rate.Base)
	if cfg.Rate.Quote != nil {
		applyCurrencyDefaults(cfg.Rate.Quote)
	}
	if cfg.Alerts != nil {
		if cfg.Alerts.TimeoutVariancePct == 0 {
			cfg.Alerts.TimeoutVariancePct = defaultTimeoutVariancePct
		}
		if cfg.Alerts.CooldownMs == 0 {
			cfg.Alerts.CooldownMs = defaultAlertCooldownMs
		}
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "0.0.0.0:7171"
	}
}

func applyCurrencyDefaults(c *CurrencyConfig) {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = defaultCEXMaxConcurrency
	}
	if c.Timeout == "" {
		c.Timeout = defaultCEXTimeout.String()
	}
	if c.QuoteCalc == "" {
		c.QuoteCalc = "multiply"
	}
}
