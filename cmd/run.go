package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"oracle-node/alert"
	"oracle-node/chain"
	"oracle-node/chain/cardano"
	"oracle-node/config"
	"oracle-node/oracle"
	"oracle-node/oracle/provider"
	"oracle-node/oracle/state"
	"oracle-node/oracle/store"
	"oracle-node/oracle/txbuilder"
	"oracle-node/oracle/types"
	v1 "oracle-node/router/v1"
)

func getRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the oracle node's scheduler and status API",
		RunE:  runCmdHandler,
	}
	runCmd.Flags().StringP(flagConfig, "c", "config.toml", "path to the node's TOML configuration file")
	return runCmd
}

func runCmdHandler(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	configPath, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return err
	}

	cfg, err := config.ParseConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	for name, address := range cfg.Rate.DexPoolAddresses {
		cardano.RegisterDEX(name, address)
	}

	sink := setupTelemetry("oracle-node")

	ctx, cancel := context.WithCancel(cmd.Context())
	g, ctx := errgroup.WithContext(ctx)
	trapSignal(cancel, logger)

	chainCtx, err := buildChainContext(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	signer, derivedAddress, err := cardano.LoadSigner(cfg.Node.OperatorKeyringDir)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger.Info().Str("address", derivedAddress).Msg("loaded operator signing key")

	pair := cfg.Node.OracleCurrency.ToPair()
	baseAdapters := buildAdapters(cfg.Rate.Base, types.PairTypeBase, chainCtx, logger)
	var quoteAdapters []provider.Adapter
	if cfg.Rate.Quote != nil {
		quoteAdapters = buildAdapters(*cfg.Rate.Quote, types.PairTypeQuote, chainCtx, logger)
	}

	txCfg := txbuilder.Config{
		OracleAddress: cfg.Node.OracleAddress,
		ChangeAddress: derivedAddress,
		PollInterval:  cfg.ChainQuery.DefaultPollInterval(),
		MaxRetries:    10,
	}
	if cfg.Node.ReferenceScriptTxHash != "" {
		txCfg.ReferenceScript = &chain.TxRef{
			TxHash: cfg.Node.ReferenceScriptTxHash,
			Index:  cfg.Node.ReferenceScriptIndex,
		}
	}
	if cfg.RewardCollection != nil {
		txCfg.RewardDestination = cfg.RewardCollection.DestinationAddress
	}
	orchestrator := txbuilder.New(txCfg, signer, chainCtx, logger)

	transports := buildAlertTransports(cfg.Alerts, logger)
	thresholds := alert.Thresholds{}
	if cfg.Alerts != nil {
		thresholds = alert.Thresholds{
			LowNativeBalanceLovelace: cfg.Alerts.LowNativeBalanceLovelace,
			LowFeeTokenBalance:       cfg.Alerts.LowFeeTokenBalance,
			TimeoutVariancePct:       cfg.Alerts.TimeoutVariancePct,
			CooldownMs:               cfg.Alerts.CooldownMs,
		}
	}
	alerts := alert.NewSupervisor(thresholds, transports, logger)

	rateStore, err := buildStore(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	defer rateStore.Close()

	pubKeyHash, err := hex.DecodeString(cfg.Node.PubKeyHashHex)
	if err != nil {
		return fmt.Errorf("configuration error: invalid pub_key_hash_hex: %w", err)
	}

	nftTags := state.NFTTags{
		OracleFeed: assetID(cfg.Node.NFTPolicyID, cfg.Node.OracleFeedAssetName),
		AggState:   assetID(cfg.Node.NFTPolicyID, cfg.Node.AggStateAssetName),
		Reward:     assetID(cfg.Node.NFTPolicyID, cfg.Node.RewardAssetName),
		NodeFeed:   assetID(cfg.Node.NFTPolicyID, cfg.Node.NodeFeedAssetPrefix),
	}

	settings := oracle.Settings{
		OracleAddress:       cfg.Node.OracleAddress,
		NFTTags:             nftTags,
		NodePubKeyHash:      pubKeyHash,
		UpdateIntervalMs:    cfg.Updater.UpdateIntervalMs,
		PrecisionMultiplier: cfg.Rate.PrecisionMultiplier,
	}
	if cfg.RewardCollection != nil {
		settings.RewardTriggerAmount = cfg.RewardCollection.TriggerAmountLovelace
	}

	scheduler := oracle.New(logger, settings, chainCtx, pair, baseAdapters, quoteAdapters, orchestrator, alerts, rateStore)

	if cfg.Server.Enabled {
		g.Go(func() error {
			return startStatusServer(ctx, logger, cfg.Server, scheduler, inmemSnapshotter{sink})
		})
	}

	g.Go(func() error {
		return startScheduler(ctx, logger, scheduler)
	})

	return g.Wait()
}

// assetID joins a policy ID and asset name into the "policyID.assetName"
// form chain.AssetID values take.
func assetID(policyID, name string) chain.AssetID {
	return chain.AssetID(policyID + "." + name)
}

func buildChainContext(cfg config.Config) (chain.Context, error) {
	switch {
	case cfg.ChainQuery.Ogmios != nil:
		return cardano.NewOgmiosContext(cfg.ChainQuery.Ogmios.SocketPath, cfg.ChainQuery.Ogmios.NetworkMagic, cfg.Node.OracleAddress)
	case cfg.ChainQuery.Blockfrost != nil:
		return cardano.NewBlockfrostContext(cfg.ChainQuery.Blockfrost.BaseURL, cfg.ChainQuery.Blockfrost.APIKey), nil
	default:
		return nil, fmt.Errorf("no chain query backend configured")
	}
}

func buildStore(dbCfg config.Database, logger zerolog.Logger) (store.RateStore, error) {
	if dbCfg.Path == "" {
		return store.NullStore{}, nil
	}
	return store.Open(dbCfg.Path, logger)
}

func buildAlertTransports(cfg *config.Alerts, logger zerolog.Logger) []alert.Transport {
	transports := []alert.Transport{
		alert.NewLogTransport(func(e alert.Event) {
			logger.Warn().Str("category", string(e.Category)).Str("message", e.Message).Msg("alert fired")
		}),
	}
	if cfg == nil {
		return transports
	}
	if cfg.WebhookURL != "" {
		transports = append(transports, alert.NewWebhookTransport(cfg.WebhookURL, 10*time.Second))
	}
	if cfg.HealthcheckURL != "" {
		transports = append(transports, alert.NewHealthcheckTransport(cfg.HealthcheckURL, 10*time.Second))
	}
	return transports
}

// buildAdapters constructs one Adapter per non-empty source family
// configured for c.
func buildAdapters(c config.CurrencyConfig, pairType types.PairType, pools chain.PoolReader, logger zerolog.Logger) []provider.Adapter {
	var adapters []provider.Adapter
	pair := c.Pair.ToPair()

	if len(c.CEXSources) > 0 {
		adapters = append(adapters, provider.NewCEXAdapter(
			c.CEXEndpoint(),
			pair,
			pairType,
			provider.KnownCEXURLFor,
			provider.KnownCEXParse,
			logger,
		))
	}

	if len(c.HTTPSources) > 0 {
		urlFor := make(map[string]string, len(c.HTTPSources))
		fieldPath := make(map[string][]string, len(c.HTTPSources))
		headers := make(map[string]map[string]string, len(c.HTTPSources))
		inverse := make(map[string]bool, len(c.HTTPSources))
		for _, s := range c.HTTPSources {
			urlFor[s.Name] = s.URL
			fieldPath[s.Name] = s.JSONPath
			headers[s.Name] = s.Headers
			inverse[s.Name] = s.Inverse
		}
		adapters = append(adapters, provider.NewGenericHTTPAdapter(
			c.HTTPEndpoint(),
			pair,
			pairType,
			urlFor,
			fieldPath,
			headers,
			inverse,
			logger,
		))
	}

	if len(c.DexPools) > 0 && c.TokenAssetID != "" {
		adapters = append(adapters, provider.NewDexPoolAdapter(
			c.DexPoolEndpoint(),
			chain.Lovelace,
			chain.AssetID(c.TokenAssetID),
			pairType,
			pools,
			logger,
		))
	}

	if len(c.LPNavSources) > 0 && c.TokenAssetID != "" {
		adapters = append(adapters, provider.NewLPNavAdapter(
			c.LPNavEndpoint(),
			chain.AssetID(c.TokenAssetID),
			pairType,
			pools,
			logger,
		))
	}

	return adapters
}

// trapSignal listens for SIGTERM/SIGINT and cancels cancel, mirroring the
// teacher's graceful-shutdown trap.
func trapSignal(cancel context.CancelFunc, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("caught signal; shutting down...")
		cancel()
	}()
}

func startScheduler(ctx context.Context, logger zerolog.Logger, scheduler *oracle.Scheduler) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msg("starting oracle scheduler...")
		errCh <- scheduler.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down oracle scheduler...")
		scheduler.Stop()
		return nil
	case err := <-errCh:
		return err
	}
}

func startStatusServer(ctx context.Context, logger zerolog.Logger, cfg config.Server, scheduler *oracle.Scheduler, snapshotter v1.MetricsSnapshotter) error {
	router := v1.New(logger, scheduler, snapshotter)
	rtr := mux.NewRouter()
	router.RegisterRoutes(rtr, v1.APIPathPrefix)
	handler := v1.CORSHandler(rtr, cfg.AllowedOrigins, cfg.VerboseCORS)

	writeTimeout, _ := time.ParseDuration(cfg.WriteTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	if writeTimeout == 0 {
		writeTimeout = 15 * time.Second
	}
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}

	srv := &http.Server{
		Handler:           handler,
		Addr:              cfg.ListenAddr,
		WriteTimeout:      writeTimeout,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen_addr", cfg.ListenAddr).Msg("starting status server...")
		srvErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down status server...")
		return srv.Shutdown(shutdownCtx)
	case err := <-srvErrCh:
		return err
	}
}
