// Package registry implements the promise lifecycle: registration under the
// deterministic identity scheme and the one-way pending to evaluated
// transition with an append-only verdict log.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MetaSPN/metaspn-tokens/internal/domain/model"
	"github.com/MetaSPN/metaspn-tokens/internal/feed"
	"github.com/MetaSPN/metaspn-tokens/internal/identity"
	"github.com/MetaSPN/metaspn-tokens/internal/metrics"
	"github.com/MetaSPN/metaspn-tokens/internal/store"
	"github.com/MetaSPN/metaspn-tokens/internal/tracing"
)

// SeedDirectory is the slice of the token directory the registry needs for
// self-registration.
type SeedDirectory interface {
	EnsureSeeds(ctx context.Context, projectID string) ([]model.Token, error)
}

// RegisterInput carries one promise submission. DueAt must be RFC 3339 with
// an explicit UTC offset.
type RegisterInput struct {
	ProjectID   string
	TokenSymbol string
	Statement   string
	DueAt       string
	Source      string
	CreatedBy   string
}

// EvaluateOptions carries the optional parts of a verdict.
type EvaluateOptions struct {
	Evidence    map[string]any
	EvaluatedBy string
	Note        string
}

type Registry struct {
	db        store.TxBeginner
	promises  store.PromiseRepository
	evals     store.EvaluationRepository
	lifecycle store.LifecycleRepository
	directory SeedDirectory
	publisher feed.Publisher
	tracer    trace.Tracer
	logger    *slog.Logger

	now func() time.Time
}

func New(
	db store.TxBeginner,
	promises store.PromiseRepository,
	evals store.EvaluationRepository,
	lifecycle store.LifecycleRepository,
	dir SeedDirectory,
	publisher feed.Publisher,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		db:        db,
		promises:  promises,
		evals:     evals,
		lifecycle: lifecycle,
		directory: dir,
		publisher: publisher,
		tracer:    tracing.Tracer("registry"),
		logger:    logger.With("component", "registry"),
		now:       time.Now,
	}
}

// Register validates and persists a promise in state pending. The promise ID
// is a pure function of the canonicalized submission, so retries and
// logically identical submissions collapse onto one record and the second
// write fails with model.ErrDuplicatePromise.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*model.Promise, error) {
	start := r.now()
	ctx, span := r.tracer.Start(ctx, "registry.Register")
	defer span.End()
	defer func() {
		metrics.OperationDuration.WithLabelValues("register").Observe(time.Since(start).Seconds())
	}()

	promise, err := r.buildPromise(in)
	if err != nil {
		metrics.PromisesRegistered.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("promise.id", promise.PromiseID),
		attribute.String("promise.project_id", promise.ProjectID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.PromisesRegistered.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("begin register tx: %w", err)
	}
	if err := r.promises.CreateTx(ctx, tx, promise); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, model.ErrDuplicatePromise) {
			metrics.PromisesRegistered.WithLabelValues(metrics.ResultDuplicate).Inc()
			return nil, err
		}
		metrics.PromisesRegistered.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		metrics.PromisesRegistered.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("commit register tx: %w", err)
	}

	metrics.PromisesRegistered.WithLabelValues(metrics.ResultOK).Inc()
	r.logger.Info("promise registered",
		"promise_id", promise.PromiseID,
		"project_id", promise.ProjectID,
		"token_symbol", promise.TokenSymbol,
		"due_at", promise.DueAt,
	)
	return promise, nil
}

// buildPromise canonicalizes the submission and derives its identity. The
// stored project_id and token_symbol are the canonical forms so lookups are
// plain equality; the statement keeps the submitter's wording, trimmed.
func (r *Registry) buildPromise(in RegisterInput) (*model.Promise, error) {
	projectID, err := identity.CanonicalProjectID(in.ProjectID)
	if err != nil {
		return nil, err
	}
	symbol, err := identity.CanonicalSymbol(in.TokenSymbol)
	if err != nil {
		return nil, err
	}
	statement := strings.TrimSpace(in.Statement)
	if statement == "" {
		return nil, fmt.Errorf("statement must not be empty: %w", model.ErrValidation)
	}
	dueAt, err := identity.ParseDueAt(in.DueAt)
	if err != nil {
		return nil, err
	}

	promiseID, err := identity.PromiseID(projectID, symbol, statement, dueAt)
	if err != nil {
		return nil, err
	}

	return &model.Promise{
		PromiseID:   promiseID,
		ProjectID:   projectID,
		TokenSymbol: symbol,
		Statement:   statement,
		DueAt:       dueAt,
		Source:      in.Source,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   r.now().UTC().Truncate(time.Second),
		State:       model.PromiseStatePending,
	}, nil
}

// GetByProject returns a project's promises oldest first.
func (r *Registry) GetByProject(ctx context.Context, projectID string) ([]model.Promise, error) {
	canonical, err := identity.CanonicalProjectID(projectID)
	if err != nil {
		return nil, err
	}
	return r.promises.ListByProject(ctx, canonical)
}

// GetPending returns pending promises. An empty projectID means all projects.
func (r *Registry) GetPending(ctx context.Context, projectID string) ([]model.Promise, error) {
	if projectID == "" {
		return r.promises.ListPending(ctx, "")
	}
	canonical, err := identity.CanonicalProjectID(projectID)
	if err != nil {
		return nil, err
	}
	return r.promises.ListPending(ctx, canonical)
}

// GetVerifiable returns pending promises whose due date has passed as of
// asOf, most overdue first.
func (r *Registry) GetVerifiable(ctx context.Context, asOf time.Time) ([]model.Promise, error) {
	return r.promises.ListVerifiable(ctx, asOf)
}

// Get returns one promise, or model.ErrPromiseNotFound.
func (r *Registry) Get(ctx context.Context, promiseID string) (*model.Promise, error) {
	promise, err := r.promises.Get(ctx, promiseID)
	if err != nil {
		return nil, err
	}
	if promise == nil {
		return nil, fmt.Errorf("promise %s: %w", promiseID, model.ErrPromiseNotFound)
	}
	return promise, nil
}

// Evaluate records the one-time verdict for a promise and flips its state in
// the same transaction, so no reader can observe an evaluated promise without
// its verdict or a verdict against a pending promise. The feed publish
// happens after commit and never rolls back the ledger.
func (r *Registry) Evaluate(ctx context.Context, promiseID string, observed bool, opts EvaluateOptions) (*model.PromiseEvaluation, error) {
	start := r.now()
	ctx, span := r.tracer.Start(ctx, "registry.Evaluate")
	defer span.End()
	defer func() {
		metrics.OperationDuration.WithLabelValues("evaluate").Observe(time.Since(start).Seconds())
	}()
	span.SetAttributes(
		attribute.String("promise.id", promiseID),
		attribute.Bool("promise.observed", observed),
	)

	promise, err := r.promises.Get(ctx, promiseID)
	if err != nil {
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	if promise == nil {
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultNotFound).Inc()
		return nil, fmt.Errorf("promise %s: %w", promiseID, model.ErrPromiseNotFound)
	}
	if promise.State == model.PromiseStateEvaluated {
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultConflict).Inc()
		return nil, fmt.Errorf("promise %s: %w", promiseID, model.ErrAlreadyEvaluated)
	}

	evidence, err := r.annotateEvidence(ctx, promise, opts.Evidence)
	if err != nil {
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	var note *string
	if opts.Note != "" {
		note = &opts.Note
	}
	eval := &model.PromiseEvaluation{
		PromiseID:   promiseID,
		Observed:    observed,
		Evidence:    evidence,
		EvaluatedBy: opts.EvaluatedBy,
		Note:        note,
		EvaluatedAt: r.now().UTC().Truncate(time.Second),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("begin evaluate tx: %w", err)
	}
	if err := r.evals.InsertTx(ctx, tx, eval); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, model.ErrAlreadyEvaluated) {
			metrics.PromisesEvaluated.WithLabelValues(metrics.ResultConflict).Inc()
			return nil, err
		}
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	flipped, err := r.promises.MarkEvaluatedTx(ctx, tx, promiseID)
	if err != nil {
		_ = tx.Rollback()
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	if !flipped {
		// Lost a race with a concurrent evaluator; the verdict that flipped
		// the state stands.
		_ = tx.Rollback()
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultConflict).Inc()
		return nil, fmt.Errorf("promise %s: %w", promiseID, model.ErrAlreadyEvaluated)
	}
	if err := tx.Commit(); err != nil {
		metrics.PromisesEvaluated.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("commit evaluate tx: %w", err)
	}

	metrics.PromisesEvaluated.WithLabelValues(metrics.ResultOK).Inc()
	r.logger.Info("promise evaluated",
		"promise_id", promiseID,
		"project_id", promise.ProjectID,
		"observed", observed,
	)

	r.publishVerdict(ctx, promise, eval)
	return eval, nil
}

// annotateEvidence merges the caller-supplied evidence with lifecycle context
// read from the collaborator tables. Annotation is best effort: a lifecycle
// read failure is logged and the verdict proceeds with what is available.
func (r *Registry) annotateEvidence(ctx context.Context, promise *model.Promise, supplied map[string]any) (json.RawMessage, error) {
	evidence := make(map[string]any, len(supplied)+4)
	for k, v := range supplied {
		evidence[k] = v
	}

	if r.lifecycle != nil {
		if fundings, err := r.lifecycle.ListRewardPoolFundings(ctx, promise.ProjectID); err != nil {
			r.logger.Warn("evidence annotation: reward pool read failed", "project_id", promise.ProjectID, "error", err)
		} else if len(fundings) > 0 {
			total := 0.0
			for _, f := range fundings {
				total += f.Amount
			}
			evidence["reward_pool_funding_count"] = len(fundings)
			evidence["reward_pool_funding_total"] = total
		}

		if dists, err := r.lifecycle.ListFounderDistributions(ctx, promise.ProjectID); err != nil {
			r.logger.Warn("evidence annotation: founder distribution read failed", "project_id", promise.ProjectID, "error", err)
		} else if len(dists) > 0 {
			distributed, locked := 0.0, 0.0
			for _, d := range dists {
				distributed += d.DistributedAmount
				locked += d.LockedAmount
			}
			evidence["founder_distributed_total"] = distributed
			evidence["founder_locked_total"] = locked
		}
	}

	raw, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	return raw, nil
}

func (r *Registry) publishVerdict(ctx context.Context, promise *model.Promise, eval *model.PromiseEvaluation) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.PublishVerdict(ctx, feed.Verdict{
		MessageID:   feed.NewMessageID(),
		PromiseID:   eval.PromiseID,
		ProjectID:   promise.ProjectID,
		TokenSymbol: promise.TokenSymbol,
		Observed:    eval.Observed,
		EvaluatedBy: eval.EvaluatedBy,
		EvaluatedAt: eval.EvaluatedAt,
	})
	if err != nil {
		metrics.FeedPublishFailures.Inc()
		r.logger.Warn("verdict feed publish failed", "promise_id", eval.PromiseID, "error", err)
	}
}

// defaultPromiseTemplates are the canonical reference promises registered for
// every seed token. Fixed statements and due dates keep the derived IDs
// stable, which is what makes SelfRegisterDefaults idempotent.
var defaultPromiseTemplates = []struct {
	Statement string
	DueAt     string
}{
	{"Maintain verified token metadata on the directory", "2027-01-01T00:00:00Z"},
	{"Publish a season credibility snapshot for every completed season", "2027-03-01T00:00:00Z"},
}

// SelfRegisterDefaults resolves the seed tokens for projectID and registers
// their reference promises. Re-running is a no-op: the deterministic IDs make
// the second pass collapse into duplicate rejections, which are skipped.
func (r *Registry) SelfRegisterDefaults(ctx context.Context, projectID string) ([]model.Promise, error) {
	ctx, span := r.tracer.Start(ctx, "registry.SelfRegisterDefaults")
	defer span.End()

	tokens, err := r.directory.EnsureSeeds(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("self-register defaults: %w", err)
	}

	var registered []model.Promise
	for _, token := range tokens {
		for _, tpl := range defaultPromiseTemplates {
			promise, err := r.Register(ctx, RegisterInput{
				ProjectID:   projectID,
				TokenSymbol: token.Symbol,
				Statement:   tpl.Statement,
				DueAt:       tpl.DueAt,
				Source:      "self-register",
				CreatedBy:   "system",
			})
			if err != nil {
				if errors.Is(err, model.ErrDuplicatePromise) {
					continue
				}
				return nil, fmt.Errorf("self-register %s: %w", token.Symbol, err)
			}
			registered = append(registered, *promise)
		}
	}
	return registered, nil
}
