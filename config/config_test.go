package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oracle-node/config"
)

func validConfig() config.Config {
	return config.Config{
		Node: config.Node{
			OperatorKeyringBackend: "file",
			OperatorKeyringDir:     "/home/operator/.keys",
			OperatorAddress:        "addr1...",
			PubKeyHashHex:          "deadbeef",
			OracleAddress:          "addr1_oracle...",
			OracleCurrency:         config.CurrencyPair{Base: "ADA", Quote: "USD"},
			FeeTokenPolicyID:       "policy123",
			NFTPolicyID:            "nftpolicy123",
			OracleFeedAssetName:    "OracleFeed",
			AggStateAssetName:      "AggState",
			RewardAssetName:        "Reward",
			NodeFeedAssetPrefix:    "NodeFeed",
		},
		ChainQuery: config.ChainQuery{
			Network: "mainnet",
			Blockfrost: &config.Blockfrost{
				BaseURL: "https://cardano-mainnet.blockfrost.io/api/v0",
				APIKey:  "mainnetXXXX",
			},
		},
		Rate: config.Rate{
			Base: config.CurrencyConfig{
				Pair:       config.CurrencyPair{Base: "ADA", Quote: "USD"},
				CEXSources: []config.SourceConfig{{Name: "kraken"}, {Name: "binance"}, {Name: "coinbase"}},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	missingNode := validConfig()
	missingNode.Node.OracleAddress = ""

	bothChainContexts := validConfig()
	bothChainContexts.ChainQuery.Ogmios = &config.Ogmios{SocketPath: "/tmp/ogmios.sock", NetworkMagic: 764824073}

	neitherChainContext := validConfig()
	neitherChainContext.ChainQuery.Blockfrost = nil

	testnetMissingExternalMainnet := validConfig()
	testnetMissingExternalMainnet.ChainQuery.Network = "preprod"

	testnetWithExternalMainnet := validConfig()
	testnetWithExternalMainnet.ChainQuery.Network = "preprod"
	testnetWithExternalMainnet.ChainQuery.ExternalMainnet = &config.Blockfrost{
		BaseURL: "https://cardano-mainnet.blockfrost.io/api/v0",
		APIKey:  "mainnetXXXX",
	}

	belowMinSources := validConfig()
	belowMinSources.Rate.MinRequirement = true
	belowMinSources.Rate.Base.CEXSources = []config.SourceConfig{{Name: "kraken"}}

	quoteRequiredNoQuote := validConfig()
	quoteRequiredNoQuote.Rate.Base.QuoteRequired = true

	quoteRequiredWithQuote := validConfig()
	quoteRequiredWithQuote.Rate.Base.QuoteRequired = true
	quoteRequiredWithQuote.Rate.Quote = &config.CurrencyConfig{
		Pair:       config.CurrencyPair{Base: "USD", Quote: "USDT"},
		CEXSources: []config.SourceConfig{{Name: "kraken"}},
	}

	testCases := []struct {
		name      string
		cfg       config.Config
		expectErr bool
	}{
		{"valid config", validConfig(), false},
		{"missing required node field", missingNode, true},
		{"both chain contexts configured", bothChainContexts, true},
		{"neither chain context configured", neitherChainContext, true},
		{"testnet missing external mainnet", testnetMissingExternalMainnet, true},
		{"testnet with external mainnet", testnetWithExternalMainnet, false},
		{"below minimum sources when required", belowMinSources, true},
		{"quote required without quote currency", quoteRequiredNoQuote, true},
		{"quote required with quote currency", quoteRequiredWithQuote, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCurrencyConfig_EndpointHelpersApplyDefaults(t *testing.T) {
	c := config.CurrencyConfig{
		Pair:       config.CurrencyPair{Base: "ADA", Quote: "USD"},
		CEXSources: []config.SourceConfig{{Name: "kraken"}, {Name: "binance"}},
	}

	e := c.CEXEndpoint()
	require.Equal(t, []string{"kraken", "binance"}, e.Sources)
	require.Equal(t, 20, e.MaxConcurrency)
	require.Equal(t, 10*time.Second, e.Timeout)
}

func TestParseConfig_EmptyPathIsError(t *testing.T) {
	_, err := config.ParseConfig("")
	require.ErrorIs(t, err, config.ErrEmptyConfigPath)
}

func TestParseConfig_SubstitutesPlaceholdersFromEnv(t *testing.T) {
	t.Setenv("BLOCKFROST_API_KEY", "substituted-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[node]
operator_keyring_backend = "file"
operator_keyring_dir = "/keys"
operator_address = "addr1..."
pub_key_hash_hex = "deadbeef"
oracle_address = "addr1_oracle..."
fee_token_policy_id = "policy123"
nft_policy_id = "nftpolicy123"
oracle_feed_asset_name = "OracleFeed"
agg_state_asset_name = "AggState"
reward_asset_name = "Reward"
node_feed_asset_prefix = "NodeFeed"

[node.oracle_currency]
base = "ADA"
quote = "USD"

[chain_query]
network = "mainnet"

[chain_query.blockfrost]
base_url = "https://cardano-mainnet.blockfrost.io/api/v0"
api_key = "<%= @blockfrost_api_key %>"

[rate.base]
[rate.base.pair]
base = "ADA"
quote = "USD"

[[rate.base.cex_sources]]
name = "kraken"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.ParseConfig(path)
	require.NoError(t, err)
	require.Equal(t, "substituted-key", cfg.ChainQuery.Blockfrost.APIKey)
}

func TestParseConfig_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[node]
operator_keyring_backend = "file"
operator_keyring_dir = "/keys"
operator_address = "addr1..."
pub_key_hash_hex = "deadbeef"
oracle_address = "addr1_oracle..."
fee_token_policy_id = "policy123"
nft_policy_id = "nftpolicy123"
oracle_feed_asset_name = "OracleFeed"
agg_state_asset_name = "AggState"
reward_asset_name = "Reward"
node_feed_asset_prefix = "NodeFeed"

[node.oracle_currency]
base = "ADA"
quote = "USD"

[chain_query]
network = "mainnet"

[chain_query.blockfrost]
base_url = "https://cardano-mainnet.blockfrost.io/api/v0"
api_key = "key"

[rate.base]
[rate.base.pair]
base = "ADA"
quote = "USD"

[[rate.base.cex_sources]]
name = "kraken"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.ParseConfig(path)
	require.NoError(t, err)
	require.EqualValues(t, 5_000, cfg.Updater.UpdateIntervalMs)
	require.EqualValues(t, 1_000_000, cfg.Rate.PrecisionMultiplier)
	require.Equal(t, 20, cfg.Rate.Base.MaxConcurrency)
	require.Equal(t, "multiply", cfg.Rate.Base.QuoteCalc)
}
