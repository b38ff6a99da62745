package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/MetaSPN/metaspn-tokens/internal/adapter"
	"github.com/MetaSPN/metaspn-tokens/internal/adapter/pumpfun"
	"github.com/MetaSPN/metaspn-tokens/internal/adapter/solanarpc"
	"github.com/MetaSPN/metaspn-tokens/internal/config"
	"github.com/MetaSPN/metaspn-tokens/internal/directory"
	"github.com/MetaSPN/metaspn-tokens/internal/feed"
	"github.com/MetaSPN/metaspn-tokens/internal/lifecycle"
	"github.com/MetaSPN/metaspn-tokens/internal/registry"
	"github.com/MetaSPN/metaspn-tokens/internal/scoring"
	"github.com/MetaSPN/metaspn-tokens/internal/store/sqldb"
	"github.com/MetaSPN/metaspn-tokens/internal/tracing"
)

const usage = `ledgerd <command> [flags]

Commands:
  register    register a promise
  evaluate    record the verdict for a promise
  pending     list pending promises
  verifiable  list pending promises past their due date
  summary     credibility summary for a project or token
  scorecard   token health scorecard
  seed        ensure seed tokens and their reference promises
  fund        record a reward pool funding
  snapshot    freeze a season credibility snapshot
  serve       run the health/metrics server
`

type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqldb.DB
	directory *directory.Directory
	registry  *registry.Registry
	scorer    *scoring.Scorer
	scorecard *scoring.Scorecard
	recorder  *lifecycle.Recorder
	publisher feed.Publisher
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(context.Background(), "ledgerd",
		cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	a, err := buildApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.run(os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := sqldb.New(sqldb.Config{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	adapters := []adapter.TokenAdapter{
		solanarpc.NewAdapter(cfg.Solana.RPCURL, cfg.Solana.RPS, logger),
		pumpfun.NewAdapter(cfg.Pumpfun.BaseURL, cfg.Pumpfun.RPS, logger),
	}

	var publisher feed.Publisher = feed.NewMemoryFeed()
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		publisher = feed.NewRedisFeed(redis.NewClient(opts), cfg.Feed.Namespace, int64(cfg.Feed.MaxLen))
		logger.Info("verdict feed enabled", "namespace", cfg.Feed.Namespace)
	}

	tokens := sqldb.NewTokenRepo(db)
	promises := sqldb.NewPromiseRepo(db)
	evals := sqldb.NewEvaluationRepo(db)
	life := sqldb.NewLifecycleRepo(db)

	dir := directory.New(tokens, adapters, directory.DefaultSeeds(), logger)
	reg := registry.New(db, promises, evals, life, dir, publisher, logger)
	scorer := scoring.NewScorer(promises, evals)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		directory: dir,
		registry:  reg,
		scorer:    scorer,
		scorecard: scoring.NewScorecard(scorer, adapters, life, logger),
		recorder:  lifecycle.NewRecorder(life, scorer, logger),
		publisher: publisher,
	}, nil
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("feed close error", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("db close error", "error", err)
	}
}

func (a *app) run(command string, args []string) error {
	ctx := context.Background()
	switch command {
	case "register":
		return a.cmdRegister(ctx, args)
	case "evaluate":
		return a.cmdEvaluate(ctx, args)
	case "pending":
		return a.cmdPending(ctx, args)
	case "verifiable":
		return a.cmdVerifiable(ctx, args)
	case "summary":
		return a.cmdSummary(ctx, args)
	case "scorecard":
		return a.cmdScorecard(ctx, args)
	case "seed":
		return a.cmdSeed(ctx, args)
	case "fund":
		return a.cmdFund(ctx, args)
	case "snapshot":
		return a.cmdSnapshot(ctx, args)
	case "serve":
		return a.cmdServe(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	project := fs.String("project", "", "project identifier")
	symbol := fs.String("symbol", "", "token symbol")
	statement := fs.String("statement", "", "the promise")
	due := fs.String("due", "", "due timestamp, RFC 3339 with offset")
	source := fs.String("source", "cli", "submission source")
	createdBy := fs.String("created-by", "", "submitter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	promise, err := a.registry.Register(ctx, registry.RegisterInput{
		ProjectID:   *project,
		TokenSymbol: *symbol,
		Statement:   *statement,
		DueAt:       *due,
		Source:      *source,
		CreatedBy:   *createdBy,
	})
	if err != nil {
		return err
	}
	return printJSON(promise)
}

func (a *app) cmdEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	promiseID := fs.String("promise", "", "promise identifier")
	observed := fs.Bool("observed", false, "whether the promised outcome was observed")
	note := fs.String("note", "", "free-form note")
	evaluatedBy := fs.String("evaluated-by", "", "evaluator")
	evidenceJSON := fs.String("evidence", "", "evidence payload, JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var evidence map[string]any
	if *evidenceJSON != "" {
		if err := json.Unmarshal([]byte(*evidenceJSON), &evidence); err != nil {
			return fmt.Errorf("parse --evidence: %w", err)
		}
	}

	eval, err := a.registry.Evaluate(ctx, *promiseID, *observed, registry.EvaluateOptions{
		Evidence:    evidence,
		EvaluatedBy: *evaluatedBy,
		Note:        *note,
	})
	if err != nil {
		return err
	}
	return printJSON(eval)
}

func (a *app) cmdPending(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pending", flag.ContinueOnError)
	project := fs.String("project", "", "scope to one project (empty = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	promises, err := a.registry.GetPending(ctx, *project)
	if err != nil {
		return err
	}
	return printJSON(promises)
}

func (a *app) cmdVerifiable(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verifiable", flag.ContinueOnError)
	asOfFlag := fs.String("as-of", "", "reference instant, RFC 3339 (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asOf := time.Now().UTC()
	if *asOfFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *asOfFlag)
		if err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
		asOf = parsed
	}

	promises, err := a.registry.GetVerifiable(ctx, asOf)
	if err != nil {
		return err
	}
	return printJSON(promises)
}

func (a *app) cmdSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	project := fs.String("project", "", "score by project")
	symbol := fs.String("symbol", "", "score by token symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summary, err := a.scorer.Summary(ctx, scoring.Scope{ProjectID: *project, TokenSymbol: *symbol})
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func (a *app) cmdScorecard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scorecard", flag.ContinueOnError)
	project := fs.String("project", "", "project identifier")
	symbol := fs.String("symbol", "", "token symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}

	features, err := a.scorecard.Build(ctx, *project, *symbol)
	if err != nil {
		return err
	}
	return printJSON(features)
}

func (a *app) cmdSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	project := fs.String("project", "proj_towel", "project to link the seed tokens to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registered, err := a.registry.SelfRegisterDefaults(ctx, *project)
	if err != nil {
		return err
	}
	a.logger.Info("seed registration complete", "project_id", *project, "new_promises", len(registered))
	return printJSON(registered)
}

func (a *app) cmdFund(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fund", flag.ContinueOnError)
	project := fs.String("project", "", "project identifier")
	symbol := fs.String("symbol", "", "token symbol")
	amount := fs.Float64("amount", 0, "funded amount")
	txHash := fs.String("tx", "", "funding transaction hash")
	source := fs.String("source", "cli", "funding source")
	recordedBy := fs.String("recorded-by", "", "operator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := a.directory.Resolve(ctx, directory.Query{Symbol: *symbol})
	if err != nil {
		return err
	}

	funding, err := a.recorder.RecordRewardPoolFunding(ctx, lifecycle.FundingInput{
		ProjectID:  *project,
		TokenID:    token.TokenID,
		Amount:     *amount,
		TxHash:     *txHash,
		Source:     *source,
		RecordedBy: *recordedBy,
	})
	if err != nil {
		return err
	}
	return printJSON(funding)
}

func (a *app) cmdSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	project := fs.String("project", "", "project identifier")
	season := fs.String("season", "", "season label")
	recordedBy := fs.String("recorded-by", "", "operator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, err := a.recorder.SnapshotCredibility(ctx, *project, *season, *recordedBy)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func (a *app) cmdServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := a.db.Ping(); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("health server listening", "port", a.cfg.Server.HealthPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			a.logger.Info("shutting down", "signal", sig.String())
			cancel()
		case <-gCtx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
