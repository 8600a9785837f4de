package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"kairos/internal/logutil"
	"kairos/internal/pkg/config"
	"kairos/pkg/database"
	"kairos/pkg/restclt"
	"kairos/pkg/service"
	"kairos/pkg/wsclt"
)

var configPath = flag.String("config", "configs/config.yaml", "path to the YAML config file")

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText())
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, args []string) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logSetting, err := cfg.GetLogSetting()
	if err != nil {
		return err
	}

	logger, logCloser, err := logutil.New(logutil.Options{
		Enabled: logSetting.Enabled,
		Level:   logSetting.Level,
		Path:    logSetting.Path,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	a, closeApp, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer closeApp()

	return runCommand(ctx, a, name, args)
}

// loadConfig falls back to defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	dataBytes, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &config.Config{}
	if err := cfg.Load(dataBytes); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, func(), error) {
	apiSetting, err := cfg.GetApiSetting()
	if err != nil {
		return nil, nil, err
	}

	wsSetting, err := cfg.GetWebsocketSetting()
	if err != nil {
		return nil, nil, err
	}

	storeSetting, err := cfg.GetStoreSetting()
	if err != nil {
		return nil, nil, err
	}

	restClient, err := restclt.NewClient(&restclt.Options{
		BaseURL: apiSetting.URL,
		Timeout: apiSetting.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}

	closeApp := func() {}

	var connector database.Connector
	switch storeSetting.Driver {
	case "redis":
		redisConnector := database.NewRedisConnector(&redis.Options{
			Addr:     storeSetting.Redis.Addr,
			Password: storeSetting.Redis.Password,
			DB:       storeSetting.Redis.DB,
		})
		connector = redisConnector
		closeApp = func() {
			if err := redisConnector.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis")
			}
		}
	default:
		connector = database.NewInternalConnector()
	}

	streamOptions := &wsclt.Options{
		URL:          wsclt.StreamURL(wsSetting.URL),
		SkipVerify:   wsSetting.SkipVerify,
		PingInterval: wsSetting.PingInterval,
		Reconnect: wsclt.ReconnectPolicy{
			InitialDelay: wsSetting.Reconnect.InitialDelay,
			MaxDelay:     wsSetting.Reconnect.MaxDelay,
			Multiplier:   wsSetting.Reconnect.Multiplier,
			Jitter:       wsSetting.Reconnect.Jitter,
			MaxAttempts:  wsSetting.Reconnect.MaxAttempts,
		},
		Logger: logger,
	}

	a := &app{
		balances:   service.NewBalanceService(restClient),
		marketData: service.NewMarketDataService(restClient),
		trading:    service.NewTradingService(restClient),
		store:      database.NewInteractor(connector).WithChannel(storeSetting.Channel),
		publish:    storeSetting.Publish,
		newStream: func() *wsclt.Client {
			return wsclt.NewClient(streamOptions)
		},
		out:    os.Stdout,
		logger: logger,
	}

	return a, closeApp, nil
}
