package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domain "github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
	"github.com/dandroos/node-invoicer/internal/infrastructure/logger"
	"github.com/dandroos/node-invoicer/internal/infrastructure/printing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/telemetry"
)

// Defaults applied by NewPipeline when a setting is left at zero
const (
	DefaultLockKey               = "invoicer:issuance"
	DefaultLockTTL               = 2 * time.Minute
	DefaultMaxAllocationAttempts = 3
)

// Messages are the HTML e-mail bodies
type Messages struct {
	ToRecipient  string
	ToAccountant string
}

// Settings configures a Pipeline
type Settings struct {
	StartNumber           int64
	MaxAllocationAttempts int
	LockKey               string
	LockTTL               time.Duration
	CallTimeout           time.Duration
	Retry                 RetryPolicy
	Render                domain.RenderConfig
	Labels                map[domain.Locale]domain.Labels
	Profile               domain.BusinessProfile
	Messages              Messages
}

// NewSettings derives pipeline settings from the application config
func NewSettings(cfg *config.Config) (Settings, error) {
	render, err := cfg.RenderConfig()
	if err != nil {
		return Settings{}, fmt.Errorf("invalid render config: %w", err)
	}
	return Settings{
		StartNumber:           cfg.Defaults.StartNumber,
		MaxAllocationAttempts: cfg.Ledger.MaxAllocationAttempts,
		LockKey:               cfg.Lock.Key,
		LockTTL:               cfg.Lock.TTL,
		CallTimeout:           cfg.Pipeline.CallTimeout,
		Retry: RetryPolicy{
			MaxAttempts:     cfg.Pipeline.Retry.MaxAttempts,
			InitialInterval: cfg.Pipeline.Retry.InitialInterval,
			MaxInterval:     cfg.Pipeline.Retry.MaxInterval,
		},
		Render:  render,
		Labels:  cfg.LabelSet(),
		Profile: cfg.BusinessProfile(),
		Messages: Messages{
			ToRecipient:  cfg.Messages.ToRecipient,
			ToAccountant: cfg.Messages.ToAccountant,
		},
	}, nil
}

// Dependencies are the collaborators of a Pipeline. Storage, Mailer, Lock
// and Metrics are optional.
type Dependencies struct {
	Ledger    domain.Ledger
	Renderer  printing.DocumentRenderer
	Artifacts printing.ArtifactStore
	Storage   domain.ArtifactStorage
	Mailer    domain.Mailer
	Lock      domain.IssuanceLock
	Metrics   *telemetry.InvoiceMetrics
	Logger    *zap.Logger
}

// IssueOptions selects the optional steps of a run
type IssueOptions struct {
	EmailRecipient  bool
	EmailAccountant bool
	// Purge deletes the local artifact after distribution
	Purge bool
}

// Pipeline issues invoices one run at a time
type Pipeline struct {
	ledger    domain.Ledger
	renderer  printing.DocumentRenderer
	artifacts printing.ArtifactStore
	storage   domain.ArtifactStorage
	mailer    domain.Mailer
	lock      domain.IssuanceLock
	metrics   *telemetry.InvoiceMetrics
	logger    *zap.Logger

	allocator domain.NumberAllocator
	composer  *domain.FilenameComposer
	policy    callPolicy
	settings  Settings
}

// NewPipeline creates a Pipeline
func NewPipeline(deps Dependencies, settings Settings) (*Pipeline, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if deps.Artifacts == nil {
		return nil, errors.New("artifact store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if settings.MaxAllocationAttempts <= 0 {
		settings.MaxAllocationAttempts = DefaultMaxAllocationAttempts
	}
	if settings.LockKey == "" {
		settings.LockKey = DefaultLockKey
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = DefaultLockTTL
	}
	if !settings.Render.Locale.IsValid() {
		render, err := domain.NewRenderConfig(domain.DefaultLocale, settings.Render.Style, settings.Render.Labels)
		if err != nil {
			return nil, err
		}
		settings.Render = render
	}

	log := deps.Logger.Named("pipeline")
	return &Pipeline{
		ledger:    deps.Ledger,
		renderer:  deps.Renderer,
		artifacts: deps.Artifacts,
		storage:   deps.Storage,
		mailer:    deps.Mailer,
		lock:      deps.Lock,
		metrics:   deps.Metrics,
		logger:    log,
		allocator: domain.NewNumberAllocator(),
		composer:  domain.NewFilenameComposer(settings.Labels),
		policy: callPolicy{
			timeout: settings.CallTimeout,
			retries: settings.Retry,
			logger:  log,
		},
		settings: settings,
	}, nil
}

// Issue runs one invoice through every stage. The report is returned in
// all cases; the error is a *StageError iff the run ended in StateFailed.
// Distribution and cleanup failures are reported as step outcomes only.
func (p *Pipeline) Issue(ctx context.Context, req domain.InvoiceRequest, opts IssueOptions) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		State:     StateAllocating,
		StartedAt: time.Now(),
	}

	ctx, log := logger.WithRunID(ctx, p.logger, report.RunID)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, report.RunID),
		telemetry.WithAttribute(telemetry.SpanAttrLocale, p.settings.Render.Locale.String()),
		telemetry.WithAttribute(telemetry.SpanAttrItems, req.ItemCount()),
	)
	defer span.End()

	log.Info("Issuing invoice",
		zap.String("recipient", req.RecipientName()),
		zap.Int("items", req.ItemCount()),
		zap.String("total", req.Total().StringFixed(2)),
	)

	inv, stage, err := p.record(ctx, req, report, log)
	if err != nil {
		return p.fail(ctx, span, report, stage, err)
	}
	ctx, log = logger.WithInvoiceNumber(ctx, log, inv.Number())
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, inv.Number(),
		telemetry.SpanAttrFilename, inv.Filename(),
	)

	if err := p.render(ctx, inv, report, log); err != nil {
		report.OrphanedLedgerRecord = true
		p.metrics.RecordOrphanedRecord(ctx)
		log.Error("Ledger record has no document",
			zap.String("filename", inv.Filename()),
			zap.Error(err),
		)
		return p.fail(ctx, span, report, StateRendered, err)
	}

	p.distribute(ctx, inv, opts, report, log)
	p.cleanup(ctx, inv, opts, report, log)

	report.FinishedAt = time.Now()
	p.metrics.RecordIssued(ctx, p.settings.Render.Locale.String(), report.Duration())
	if stepErr := report.StepErrors(); stepErr != nil {
		telemetry.AddEvent(span, "steps_failed", "error", stepErr.Error())
		log.Warn("Invoice issued with failed steps",
			zap.Duration("duration", report.Duration()),
			zap.Error(stepErr),
		)
	} else {
		log.Info("Invoice issued", zap.Duration("duration", report.Duration()))
	}
	telemetry.SetOK(span)
	return report, nil
}

// PeekNextNumber returns the number the next run would allocate. It takes
// no lock and writes nothing, so a concurrent run may take the number first.
func (p *Pipeline) PeekNextNumber(ctx context.Context) (string, error) {
	numbers, err := p.listNumbers(ctx)
	if err != nil {
		return "", err
	}
	return p.allocator.Allocate(numbers, p.settings.StartNumber)
}

// record allocates a number and appends the ledger record under the
// issuance lock. A NumberTaken conflict goes back to allocation until
// MaxAllocationAttempts is reached.
func (p *Pipeline) record(ctx context.Context, req domain.InvoiceRequest, report *Report, log *zap.Logger) (domain.Invoice, State, error) {
	for {
		report.AllocationAttempts++
		attempt := report.AllocationAttempts
		log.Debug("Allocating invoice number", zap.Int("attempt", attempt))

		inv, stage, err := p.allocateAndAppend(ctx, req, report, log)
		if err == nil {
			report.State = StateRecorded
			log.Info("Ledger record appended",
				zap.String("invoice_number", inv.Number()),
				zap.String("filename", inv.Filename()),
			)
			return inv, stage, nil
		}
		if !errors.Is(err, domain.ErrNumberTaken) || attempt >= p.settings.MaxAllocationAttempts {
			return domain.Invoice{}, stage, err
		}

		p.metrics.RecordAllocationRetry(ctx)
		log.Warn("Invoice number taken by another run, allocating again",
			zap.String("invoice_number", report.Number),
			zap.Int("attempt", attempt),
		)
	}
}

func (p *Pipeline) allocateAndAppend(ctx context.Context, req domain.InvoiceRequest, report *Report, log *zap.Logger) (domain.Invoice, State, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return domain.Invoice{}, StateAllocating, err
	}
	defer p.release(ctx, release, log)

	numbers, err := p.listNumbers(ctx)
	if err != nil {
		return domain.Invoice{}, StateAllocating, err
	}
	number, err := p.allocator.Allocate(numbers, p.settings.StartNumber)
	if err != nil {
		return domain.Invoice{}, StateAllocating, err
	}
	filename, err := p.composer.Compose(p.settings.Render.Locale, req.RecipientName(), number, req.Date())
	if err != nil {
		return domain.Invoice{}, StateAllocating, err
	}
	inv, err := domain.NewInvoice(req, number, filename)
	if err != nil {
		return domain.Invoice{}, StateAllocating, err
	}
	rec, err := domain.NewLedgerRecord(inv, report.RunID)
	if err != nil {
		return domain.Invoice{}, StateAllocating, err
	}
	report.Number = number
	report.Filename = filename

	ctx, span := telemetry.StartSpan(ctx, "invoice.append",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceNumber, number),
		telemetry.WithAttribute(telemetry.SpanAttrAttempt, report.AllocationAttempts),
	)
	defer span.End()

	err = p.policy.retry(ctx, "ledger append", func(ctx context.Context) error {
		return p.ledger.AppendRecord(ctx, rec)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return domain.Invoice{}, StateRecorded, err
	}
	return inv, StateRecorded, nil
}

func (p *Pipeline) listNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	err := p.policy.retry(ctx, "ledger list", func(ctx context.Context) error {
		var err error
		numbers, err = p.ledger.ListNumbers(ctx)
		return err
	})
	return numbers, err
}

func (p *Pipeline) acquire(ctx context.Context) (domain.ReleaseFunc, error) {
	if p.lock == nil {
		return nil, nil
	}
	return p.lock.Acquire(ctx, p.settings.LockKey, p.settings.LockTTL)
}

// release frees the lock even when ctx is already cancelled
func (p *Pipeline) release(ctx context.Context, release domain.ReleaseFunc, log *zap.Logger) {
	if release == nil {
		return
	}
	err := p.policy.call(context.WithoutCancel(ctx), "lock release", func(ctx context.Context) error {
		return release(ctx)
	})
	if err != nil {
		log.Warn("Failed to release issuance lock", zap.String("key", p.settings.LockKey), zap.Error(err))
	}
}

func (p *Pipeline) render(ctx context.Context, inv domain.Invoice, report *Report, log *zap.Logger) error {
	ctx, span := telemetry.StartSpan(ctx, "invoice.render",
		telemetry.WithAttribute(telemetry.SpanAttrFilename, inv.Filename()),
	)
	defer span.End()

	var data []byte
	err := p.policy.call(ctx, "render", func(ctx context.Context) error {
		var err error
		data, err = p.renderer.Render(ctx, inv, p.settings.Render, p.settings.Profile)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	path, err := p.artifacts.Write(ctx, inv.Filename(), data)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	report.ArtifactPath = path
	report.State = StateRendered
	log.Info("Document rendered", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

// distribute runs every distribution step in order. A failed step is
// recorded and the next one still runs.
func (p *Pipeline) distribute(ctx context.Context, inv domain.Invoice, opts IssueOptions, report *Report, log *zap.Logger) {
	status, err := p.upload(ctx, inv)
	p.step(ctx, report, log, StepUpload, status, err)

	subject := fmt.Sprintf("%s - %s - %s", p.settings.Render.Labels.Invoice, p.settings.Profile.Name, inv.Number())

	status, err = StepNotRequested, nil
	if opts.EmailRecipient {
		status, err = p.send(ctx, StepEmailRecipient, inv.RecipientEmail(), subject, report.ArtifactPath, p.settings.Messages.ToRecipient)
	}
	p.step(ctx, report, log, StepEmailRecipient, status, err)

	status, err = StepNotRequested, nil
	if opts.EmailAccountant {
		status, err = p.send(ctx, StepEmailAccountant, p.settings.Profile.AccountantEmail, subject, report.ArtifactPath, p.settings.Messages.ToAccountant)
	}
	p.step(ctx, report, log, StepEmailAccountant, status, err)

	report.State = StateDistributed
}

func (p *Pipeline) upload(ctx context.Context, inv domain.Invoice) (StepStatus, error) {
	if p.storage == nil {
		return StepSkipped, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "invoice.upload", telemetry.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	err := p.policy.retry(ctx, "upload", func(ctx context.Context) error {
		r, err := p.artifacts.Open(ctx, inv.Filename())
		if err != nil {
			return domain.NewStorageError("open "+inv.Filename(), err)
		}
		defer func() { _ = r.Close() }()
		return p.storage.Upload(ctx, inv.Filename(), r)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return StepFailed, err
	}
	return StepSucceeded, nil
}

// send delivers the artifact once; e-mail is never retried
func (p *Pipeline) send(ctx context.Context, step, to, subject, attachment, body string) (StepStatus, error) {
	if p.mailer == nil {
		return StepFailed, domain.NewDeliveryError(step, errors.New("mail is not configured"))
	}
	if to == "" {
		return StepFailed, domain.NewDeliveryError(step, errors.New("no e-mail address"))
	}

	ctx, span := telemetry.StartSpan(ctx, "invoice.mail",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrStep, step),
	)
	defer span.End()

	err := p.policy.call(ctx, "send "+step, func(ctx context.Context) error {
		return p.mailer.Send(ctx, to, subject, attachment, body)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return StepFailed, err
	}
	return StepSucceeded, nil
}

func (p *Pipeline) cleanup(ctx context.Context, inv domain.Invoice, opts IssueOptions, report *Report, log *zap.Logger) {
	if !opts.Purge {
		p.step(ctx, report, log, StepCleanup, StepNotRequested, nil)
	} else if err := p.artifacts.Delete(ctx, inv.Filename()); err != nil {
		p.step(ctx, report, log, StepCleanup, StepFailed, err)
	} else {
		p.step(ctx, report, log, StepCleanup, StepSucceeded, nil)
	}
	report.State = StateCleanedUp
}

func (p *Pipeline) step(ctx context.Context, report *Report, log *zap.Logger, name string, status StepStatus, err error) {
	report.addStep(name, status, err)

	switch status {
	case StepSucceeded:
		p.metrics.RecordStep(ctx, name, telemetry.OutcomeSucceeded)
		log.Info("Step succeeded", zap.String("step", name))
	case StepFailed:
		p.metrics.RecordStep(ctx, name, telemetry.OutcomeFailed)
		log.Error("Step failed", zap.String("step", name), zap.Error(err))
	case StepSkipped:
		p.metrics.RecordStep(ctx, name, telemetry.OutcomeSkipped)
		log.Debug("Step skipped", zap.String("step", name))
	}
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, report *Report, stage State, err error) (*Report, error) {
	report.State = StateFailed
	report.FailedStage = stage
	report.FinishedAt = time.Now()

	p.metrics.RecordFailed(ctx, stage.String(), report.Duration())
	telemetry.SetAttributes(span, telemetry.SpanAttrStage, stage.String())
	telemetry.RecordError(span, err)

	logger.L(ctx).Error("Invoice issuance failed",
		zap.String("stage", stage.String()),
		zap.Bool("orphaned_ledger_record", report.OrphanedLedgerRecord),
		zap.Error(err),
	)
	return report, &StageError{Stage: stage, Err: err}
}
