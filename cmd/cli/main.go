// Command tmc is a command-line client for the GNU Taler merchant backend.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/cache"
	"github.com/and161185/taler-client/internal/config"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/exchange"
	"github.com/and161185/taler-client/internal/limiter"
	"github.com/and161185/taler-client/internal/merchant"
	"github.com/and161185/taler-client/internal/model"
	"github.com/and161185/taler-client/internal/service"
	"github.com/and161185/taler-client/internal/transport"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `tmc - GNU Taler merchant client
Usage:
  tmc [-config file] [-url URL] [-token TOKEN] [-instance ID] [-exchange URL] <cmd> [args]

Commands:
  version
  create-instance  -file <json> [-prompt]
  update-instance  -id <id> -file <json> [-prompt]
  delete-instance  -id <id> [-purge] [-prompt]
  change-auth      -id <id> (-password <pw> | -external) [-prompt]
  challenge show
  challenge request -id <challenge>
  challenge confirm -id <challenge> -tan <tan>
  challenge retry
  order create     -file <json>
  order get        -id <order> [-skip-validation]
  keys

A challenged operation is kept under the state directory until
"challenge retry" completes it. With -prompt the TANs are read from stdin.
`

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, os.Args[1:], os.Stdin, os.Stdout, log)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		fail(err)
	}
}

// app holds what the commands share. Clients are built on first use.
type app struct {
	cfg    config.Config
	decode model.DecodeOptions
	log    *zap.Logger
	in     *bufio.Reader
	out    io.Writer

	rdb      *redis.Client
	merchant *merchant.Client
	pending  *service.PendingStore
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, log *zap.Logger) error {
	fs := flag.NewFlagSet("tmc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("config", config.DefaultPath(), "config file (YAML)")
	url := fs.String("url", "", "merchant backend base URL")
	token := fs.String("token", "", "merchant access token")
	instance := fs.String("instance", "", "merchant instance")
	exchangeURL := fs.String("exchange", "", "exchange base URL")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 {
		fmt.Fprint(stdout, usageText)
		return flag.ErrHelp
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	override(&cfg.MerchantURL, *url)
	override(&cfg.MerchantToken, *token)
	override(&cfg.Instance, *instance)
	override(&cfg.ExchangeURL, *exchangeURL)
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := &app{cfg: cfg, log: log, in: bufio.NewReader(stdin), out: stdout}
	defer a.close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "tmc %s (%s)\n", version, buildDate)
		return nil
	case "create-instance":
		return a.createInstance(ctx, rest)
	case "update-instance":
		return a.updateInstance(ctx, rest)
	case "delete-instance":
		return a.deleteInstance(ctx, rest)
	case "change-auth":
		return a.changeAuth(ctx, rest)
	case "challenge":
		return a.challenge(ctx, rest)
	case "order":
		return a.order(ctx, rest)
	case "keys":
		return a.keys(ctx)
	default:
		fmt.Fprint(stdout, usageText)
		return flag.ErrHelp
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// redisClient connects once when a Redis URL is configured.
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.cfg.RedisURL == "" || a.rdb != nil {
		return a.rdb, nil
	}
	rdb, err := cache.Connect(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.rdb = rdb
	return rdb, nil
}

func (a *app) merchantClient(ctx context.Context) (*merchant.Client, error) {
	if a.merchant != nil {
		return a.merchant, nil
	}
	if a.cfg.MerchantURL == "" {
		return nil, errors.New("no merchant backend: set -url, merchant.url or TALER_MERCHANT_URL")
	}
	tr, err := transport.New(a.cfg.MerchantURL,
		transport.WithToken(a.cfg.MerchantToken),
		transport.WithLogger(a.log),
		transport.WithDoer(httpClient(a.cfg)),
	)
	if err != nil {
		return nil, err
	}
	opts := []merchant.Option{
		merchant.WithInstance(a.cfg.Instance),
		merchant.WithLogger(a.log),
		merchant.WithDecodeOptions(a.decode),
	}
	rdb, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		opts = append(opts, merchant.WithLimiter(limiter.NewRedis(rdb)))
	}
	a.merchant = merchant.New(tr, opts...)
	return a.merchant, nil
}

func (a *app) exchangeClient(ctx context.Context) (*exchange.Client, error) {
	if a.cfg.ExchangeURL == "" {
		return nil, errors.New("no exchange: set -exchange, exchange.url or TALER_EXCHANGE_URL")
	}
	var store cache.Store = cache.NewMemory(a.cfg.CacheSize)
	rdb, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		store = cache.NewRedis(rdb)
	}
	tr, err := transport.New(a.cfg.ExchangeURL,
		transport.WithLogger(a.log),
		transport.WithDoer(httpClient(a.cfg)),
		transport.WithCache(store, a.cfg.CacheTTL),
	)
	if err != nil {
		return nil, err
	}
	return exchange.New(tr, exchange.WithLogger(a.log)), nil
}

// pendingStore seals pending operations with the access token. Without a
// token the backend URL is the only secret available.
func (a *app) pendingStore() (*service.PendingStore, error) {
	if a.pending != nil {
		return a.pending, nil
	}
	secret := a.cfg.MerchantToken
	if secret == "" {
		secret = a.cfg.MerchantURL
	}
	p, err := service.NewPendingStore(filepath.Join(a.cfg.StateDir, "pending"), []byte(secret))
	if err != nil {
		return nil, err
	}
	a.pending = p
	return p, nil
}

// ---- utils ----

func readAll(in io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(p)
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	var pe *errs.ProtocolError
	if errors.As(err, &pe) {
		fmt.Fprintf(os.Stderr, "backend error: status=%d code=%d hint=%s\n", pe.Status, pe.Code, pe.Hint)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
