package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"

	"github.com/Fantasim/fcfsweep/internal/api"
	"github.com/Fantasim/fcfsweep/internal/api/handlers"
	"github.com/Fantasim/fcfsweep/internal/chain"
	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/db"
	"github.com/Fantasim/fcfsweep/internal/logging"
	"github.com/Fantasim/fcfsweep/internal/metrics"
	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/report"
	"github.com/Fantasim/fcfsweep/internal/sweep"
	"github.com/Fantasim/fcfsweep/internal/units"
	"github.com/Fantasim/fcfsweep/internal/wallet"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		if err := runSweeper(os.Args[2:]); err != nil {
			slog.Error("sweeper error", "error", err)
			os.Exit(1)
		}
	case "once":
		code, err := runOnce(os.Args[2:])
		if err != nil {
			slog.Error("sweep error", "error", err)
			os.Exit(1)
		}
		os.Exit(code)
	case "version":
		fmt.Printf("fcfsweep %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: fcfsweep <command> [flags]

Commands:
  run       Sweep continuously until interrupted
  once      Run a single sweep attempt and print the result
  version   Print version information

Configuration comes from SWEEPER_* environment variables (or .env);
flags override the most common ones. Run "fcfsweep run --help" for flags.
`)
}

// overrides are the flags that take precedence over the environment.
type overrides struct {
	rpcURL      string
	destination string
	asset       string
	token       string
	reserve     string
	logLevel    string
}

func parseFlags(name string, args []string) (*overrides, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	o := &overrides{}
	fs.StringVar(&o.rpcURL, "rpc-url", "", "RPC endpoint, ws:// for push subscriptions (or set SWEEPER_RPC_URL)")
	fs.StringVar(&o.destination, "destination", "", "Destination address (or set SWEEPER_DESTINATION)")
	fs.StringVar(&o.asset, "asset", "", "Asset to sweep: native or token (or set SWEEPER_ASSET)")
	fs.StringVar(&o.token, "token", "", "ERC-20 contract address; implies --asset=token (or set SWEEPER_TOKEN_CONTRACT)")
	fs.StringVar(&o.reserve, "reserve", "", "Amount to leave behind, in whole units (or set SWEEPER_RESERVE)")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (or set SWEEPER_LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return nil, err
	}
	return o, nil
}

func loadConfig(o *overrides) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.rpcURL != "" {
		cfg.RPCURL = o.rpcURL
	}
	if o.destination != "" {
		cfg.Destination = o.destination
	}
	if o.token != "" {
		cfg.TokenContract = o.token
		cfg.Asset = config.AssetToken
	}
	if o.asset != "" {
		cfg.Asset = o.asset
	}
	if o.reserve != "" {
		cfg.Reserve = o.reserve
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app holds everything a command needs, in teardown order.
type app struct {
	cfg      *config.Config
	client   *chain.Client
	database *db.DB
	events   report.Source
	sweeper  *sweep.Sweeper
}

func (a *app) Close() {
	a.sweeper.Shutdown()
	a.client.Close()
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
}

func setup(ctx context.Context, cfg *config.Config) (*app, error) {
	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, err
	}

	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}
	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.FallbackRPCURL, signer.PrivateKey(), chain.ClientConfig{
		ChainID:           chainID,
		RateLimit:         cfg.RPCRateLimit,
		BlockPollInterval: cfg.BlockPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sweepCfg, err := sweepConfig(ctx, cfg, client)
	if err != nil {
		client.Close()
		return nil, err
	}

	a := &app{cfg: cfg, client: client}

	recent := report.NewRecent(config.RecentEventsKept)
	reporters := report.Multi{report.NewLogReporter(nil), report.Metrics{}}
	a.events = recent

	if cfg.DBPath != "" {
		database, err := db.New(cfg.DBPath)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.RunMigrations(); err != nil {
			database.Close()
			client.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("event journal enabled", "path", cfg.DBPath)

		journal := report.NewJournal(database)
		reporters = append(reporters, journal)
		a.database = database
		a.events = journal
	} else {
		reporters = append(reporters, recent)
	}

	s, err := sweep.New(sweepCfg, client, reporters)
	if err != nil {
		a.client.Close()
		if a.database != nil {
			a.database.Close()
		}
		return nil, fmt.Errorf("failed to create sweeper: %w", err)
	}
	a.sweeper = s

	metrics.BuildInfo.WithLabelValues(version, cfg.Asset).Set(1)
	return a, nil
}

func loadSigner(cfg *config.Config) (*wallet.Signer, error) {
	if cfg.MnemonicFile != "" {
		signer, err := wallet.SignerFromMnemonicFile(cfg.MnemonicFile, cfg.KeyIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key from mnemonic: %w", err)
		}
		return signer, nil
	}
	signer, err := wallet.SignerFromHex(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return signer, nil
}

// sweepConfig turns the env configuration into base-unit amounts. Token
// amounts need the contract's decimals, so this talks to the node.
func sweepConfig(ctx context.Context, cfg *config.Config, client *chain.Client) (sweep.Config, error) {
	sc := sweep.Config{
		Account:             client.Account(),
		Destination:         common.HexToAddress(cfg.Destination),
		Asset:               models.AssetKind(cfg.Asset),
		PollInterval:        cfg.PollInterval(),
		HeartbeatInterval:   cfg.HeartbeatInterval,
		FeeBumpPercent:      cfg.FeeBumpPercent,
		SafetyMarginPercent: cfg.SafetyMarginPercent,
		MaxAttempts:         cfg.MaxAttempts,
		EscalationStep:      cfg.EscalationStep,
		RetryDelay:          cfg.RetryDelay,
		ConfirmTimeout:      cfg.ConfirmTimeout,
	}

	var err error
	dust := cfg.DustWei
	sc.Token = models.TokenMeta{Decimals: config.NativeDecimals, Symbol: config.NativeSymbol}
	if sc.Asset == models.AssetToken {
		sc.TokenContract = common.HexToAddress(cfg.TokenContract)
		sc.Token = client.TokenMeta(ctx, sc.TokenContract)
		dust = cfg.TokenDust
	}

	if sc.Reserve, err = units.ToBaseUnits(cfg.Reserve, sc.Token.Decimals); err != nil {
		return sc, fmt.Errorf("reserve: %w", err)
	}
	if sc.Dust, err = units.ToBaseUnits(dust, 0); err != nil {
		return sc, fmt.Errorf("dust threshold: %w", err)
	}
	if sc.MinPriorityFee, err = units.GweiToWei(cfg.MinPriorityFeeGwei); err != nil {
		return sc, fmt.Errorf("min priority fee: %w", err)
	}
	if sc.MinMaxFee, err = units.GweiToWei(cfg.MinMaxFeeGwei); err != nil {
		return sc, fmt.Errorf("min max fee: %w", err)
	}
	return sc, nil
}

func runSweeper(args []string) error {
	o, err := parseFlags("run", args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting fcfsweep",
		"version", version,
		"asset", cfg.Asset,
		"websocket", cfg.IsWebsocket(),
		"statusAddr", cfg.StatusAddr,
		"dbPath", cfg.DBPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var srv *http.Server
	if cfg.StatusAddr != "" {
		srv = statusServer(cfg, a)
		go func() {
			slog.Info("status server listening", "addr", cfg.StatusAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server error", "error", err)
				stop()
			}
		}()
	}

	runErr := a.sweeper.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("status server shutdown error", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("shutdown complete")
	return nil
}

func statusServer(cfg *config.Config, a *app) *http.Server {
	router := api.NewRouter(api.Deps{
		Sweeper: a.sweeper,
		Events:  a.events,
		Health: handlers.HealthInfo{
			Version:  version,
			Asset:    cfg.Asset,
			ChainID:  a.client.ChainID().String(),
			RPCState: a.client.BreakerState,
		},
	})
	return &http.Server{
		Addr:         cfg.StatusAddr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
}

// runOnce exits 0 when the attempt submitted or skipped, 2 when it failed.
func runOnce(args []string) (int, error) {
	o, err := parseFlags("once", args)
	if err != nil {
		return 1, err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return 1, err
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogDir)
	if err != nil {
		return 1, fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer a.Close()

	res := a.sweeper.AttemptSweep(ctx, models.TriggerManual)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.sweeper.Snapshot().LastAttempt); err != nil {
		return 1, fmt.Errorf("failed to print result: %w", err)
	}

	if res.Outcome == models.OutcomeFailed {
		return 2, nil
	}
	return 0, nil
}
