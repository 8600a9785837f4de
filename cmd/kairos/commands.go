package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kairos/pkg/database"
	"kairos/pkg/model"
	"kairos/pkg/service"
	"kairos/pkg/wsclt"
)

var errUsage = errors.New("usage")

type app struct {
	balances   *service.BalanceService
	marketData *service.MarketDataService
	trading    *service.TradingService

	store     *database.Interactor
	publish   bool
	newStream func() *wsclt.Client

	out    io.Writer
	logger zerolog.Logger
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"balance": {
		usage: "balance <currency>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			currency, err := positional(fs, args, 0)
			if err != nil {
				return err
			}

			balance, err := a.balances.GetBalance(ctx, currency)
			if err != nil {
				return err
			}

			if a.store != nil {
				if err := a.store.SetBalance(ctx, balance); err != nil {
					a.logger.Warn().Err(err).Msg("cache balance")
				}
			}

			return a.print(balance)
		},
	},
	"ticks": {
		usage: "ticks [-limit N] <symbol>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			limit := fs.Int("limit", service.DefaultTickLimit, "number of ticks")
			symbol, err := positional(fs, args, 0)
			if err != nil {
				return err
			}

			ticks, err := a.marketData.GetRecentTicks(ctx, symbol, *limit)
			if err != nil {
				return err
			}
			return a.print(ticks)
		},
	},
	"ticks-range": {
		usage: "ticks-range -start RFC3339 -end RFC3339 <symbol>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			start := fs.String("start", "", "range start")
			end := fs.String("end", "", "range end")
			symbol, err := positional(fs, args, 0)
			if err != nil {
				return err
			}

			from, to, err := parseRange(*start, *end)
			if err != nil {
				return err
			}

			ticks, err := a.marketData.GetHistoricalTicks(ctx, symbol, from, to)
			if err != nil {
				return err
			}
			return a.print(ticks)
		},
	},
	"ohlcv": {
		usage: "ohlcv [-start RFC3339 -end RFC3339] [-limit N] <symbol>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			start := fs.String("start", "", "range start")
			end := fs.String("end", "", "range end")
			limit := fs.Int("limit", service.DefaultCandleLimit, "number of candles when no range is given")
			symbol, err := positional(fs, args, 0)
			if err != nil {
				return err
			}

			query := service.OhlcvQuery{Limit: *limit}
			if *start != "" && *end != "" {
				from, to, err := parseRange(*start, *end)
				if err != nil {
					return err
				}
				query.Start, query.End = &from, &to
			}

			candles, err := a.marketData.GetOhlcvCandles(ctx, symbol, query)
			if err != nil {
				return err
			}
			return a.print(candles)
		},
	},
	"latest": {
		usage: "latest <symbol>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			symbol, err := positional(fs, args, 0)
			if err != nil {
				return err
			}

			price, err := a.marketData.GetLatestPrice(ctx, symbol)
			if err != nil {
				return err
			}

			if a.store != nil && price.Price != nil {
				if err := a.store.SetLatestPrice(ctx, price.Symbol, *price.Price); err != nil {
					a.logger.Warn().Err(err).Msg("cache latest price")
				}
			}

			return a.print(price)
		},
	},
	"place": {
		usage: "place -symbol S -side BUY|SELL -type MARKET|LIMIT -quantity Q [-price P]",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			symbol := fs.String("symbol", "", "trading symbol")
			side := fs.String("side", "", "BUY or SELL")
			orderType := fs.String("type", model.OrderTypeMarket, "MARKET or LIMIT")
			quantity := fs.Float64("quantity", 0, "order quantity")
			price := fs.Float64("price", 0, "limit price")
			if err := fs.Parse(args); err != nil {
				return err
			}

			request := model.PlaceOrderRequest{
				Symbol:    *symbol,
				Side:      strings.ToUpper(*side),
				OrderType: strings.ToUpper(*orderType),
				Quantity:  *quantity,
			}
			if isFlagSet(fs, "price") {
				request.Price = price
			}

			if err := request.Validate(); err != nil {
				return fmt.Errorf("invalid order: %w", err)
			}

			response, err := a.trading.PlaceOrder(ctx, request)
			if err != nil {
				return err
			}
			return a.print(response)
		},
	},
	"cancel": {
		usage: "cancel <orderId>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			orderId, err := orderIdArg(fs, args)
			if err != nil {
				return err
			}

			response, err := a.trading.CancelOrder(ctx, orderId)
			if err != nil {
				return err
			}
			return a.print(response)
		},
	},
	"status": {
		usage: "status <orderId>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			orderId, err := orderIdArg(fs, args)
			if err != nil {
				return err
			}

			response, err := a.trading.GetOrderStatus(ctx, orderId)
			if err != nil {
				return err
			}
			return a.print(response)
		},
	},
	"history": {
		usage: "history [-limit N]",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			limit := fs.Int("limit", service.DefaultOrderLimit, "number of orders")
			if err := fs.Parse(args); err != nil {
				return err
			}

			orders, err := a.trading.GetOrderHistory(ctx, *limit)
			if err != nil {
				return err
			}
			return a.printOrders(ctx, orders)
		},
	},
	"history-range": {
		usage: "history-range -start RFC3339 -end RFC3339",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			start := fs.String("start", "", "range start")
			end := fs.String("end", "", "range end")
			if err := fs.Parse(args); err != nil {
				return err
			}

			from, to, err := parseRange(*start, *end)
			if err != nil {
				return err
			}

			orders, err := a.trading.GetOrdersByTimeRange(ctx, from, to)
			if err != nil {
				return err
			}
			return a.printOrders(ctx, orders)
		},
	},
	"orders-by-status": {
		usage: "orders-by-status [-limit N] <status>",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			limit := fs.Int("limit", service.DefaultOrderLimit, "number of orders")
			status, err := positional(fs, args, 0)
			if err != nil {
				return err
			}

			orders, err := a.trading.GetOrdersByStatus(ctx, strings.ToUpper(status), *limit)
			if err != nil {
				return err
			}
			return a.printOrders(ctx, orders)
		},
	},
	"stream": {
		usage: "stream [-subscribe SYMBOL]",
		run: func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
			subscribe := fs.String("subscribe", "", "send a subscribe message for this symbol on every connect")
			if err := fs.Parse(args); err != nil {
				return err
			}

			return a.stream(ctx, *subscribe)
		},
	},
}

func runCommand(ctx context.Context, a *app, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	if err := cmd.run(ctx, a, fs, args); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return fmt.Errorf("%w: kairos %s", errUsage, cmd.usage)
		}
		return err
	}

	return nil
}

func usageText() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: kairos [-config file] <command> [flags]\n\ncommands:\n")
	for _, name := range names {
		b.WriteString("  " + commands[name].usage + "\n")
	}
	return b.String()
}

// stream prints every market data message until ctx is done.
func (a *app) stream(ctx context.Context, symbol string) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	clt := a.newStream()
	defer clt.Close()

	messages, cancel := clt.Subscribe()
	defer cancel()

	if a.store != nil {
		records := make(chan model.MarketDataMessage, 256)

		clt.RegisterMessageHandler(func(msg model.MarketDataMessage) {
			select {
			case records <- msg:
			default:
				a.logger.Warn().Msg("recorder behind, dropping message")
			}
		})

		go database.NewRecorder(a.store, a.publish, a.logger).Run(ctx, records)
	}

	if symbol != "" {
		// Sent again after every reconnect; the server forgets subscriptions
		// with the socket.
		clt.RegisterConnectHandler(func() {
			sym := symbol
			if err := clt.SendMessage(model.MarketDataMessage{Type: "subscribe", Symbol: &sym}); err != nil {
				a.logger.Warn().Err(err).Msg("send subscribe")
			}
		})
	}

	if err := clt.Connect(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("initial connect failed, retrying in background")
	}

	check := time.NewTicker(time.Second)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-check.C:
			if err := clt.Err(); err != nil {
				return err
			}
		case msg, more := <-messages:
			if !more {
				return nil
			}
			if err := a.print(msg); err != nil {
				return err
			}
		}
	}
}

func (a *app) print(v interface{}) error {
	encoder := json.NewEncoder(a.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (a *app) printOrders(ctx context.Context, orders []model.Order) error {
	if a.store != nil {
		for index := range orders {
			if err := a.store.SetOrder(ctx, &orders[index]); err != nil {
				a.logger.Warn().Err(err).Str("orderId", orders[index].Id).Msg("cache order")
			}
		}
	}

	return a.print(orders)
}

func positional(fs *flag.FlagSet, args []string, index int) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	if fs.NArg() <= index || fs.Arg(index) == "" {
		return "", errUsage
	}

	return fs.Arg(index), nil
}

// orderIdArg accepts only UUIDs, the id format the backend assigns.
func orderIdArg(fs *flag.FlagSet, args []string) (string, error) {
	orderId, err := positional(fs, args, 0)
	if err != nil {
		return "", err
	}

	parsed, err := uuid.Parse(orderId)
	if err != nil {
		return "", fmt.Errorf("invalid order id %q: %w", orderId, err)
	}

	return parsed.String(), nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, errUsage
	}

	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start: %w", err)
	}

	to, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end: %w", err)
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("end is before start")
	}

	return from, to, nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
