package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are created without a meter
var ErrMeterNil = errors.New("meter is nil")

// Step outcomes
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metric attribute keys
var (
	AttrLocale  = attribute.Key("locale")
	AttrStage   = attribute.Key("stage")
	AttrStep    = attribute.Key("step")
	AttrOutcome = attribute.Key("outcome")
)

// issueDurationBuckets cover a whole issuance run, in seconds
var issueDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// InvoiceMetrics counts issuance runs and the outcome of each
// distribution step. A nil *InvoiceMetrics records nothing.
type InvoiceMetrics struct {
	issued            metric.Int64Counter
	failed            metric.Int64Counter
	steps             metric.Int64Counter
	allocationRetries metric.Int64Counter
	orphanedRecords   metric.Int64Counter
	issueDuration     metric.Float64Histogram
}

type counterSpec struct {
	dst         *metric.Int64Counter
	name        string
	description string
	unit        string
}

// NewInvoiceMetrics registers the invoicing instruments on meter
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &InvoiceMetrics{}
	counters := []counterSpec{
		{&m.issued, "invoicer_invoices_issued_total", "Invoices recorded and rendered", "{invoices}"},
		{&m.failed, "invoicer_invoices_failed_total", "Issuance runs that ended in a failed stage", "{runs}"},
		{&m.steps, "invoicer_distribution_steps_total", "Distribution and cleanup step outcomes", "{steps}"},
		{&m.allocationRetries, "invoicer_allocation_retries_total", "Re-allocations after a number was taken by another run", "{retries}"},
		{&m.orphanedRecords, "invoicer_orphaned_records_total", "Ledger records without a rendered document", "{records}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	hist, err := meter.Float64Histogram("invoicer_issue_duration_seconds",
		metric.WithDescription("Duration of an issuance run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(issueDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	m.issueDuration = hist

	return m, nil
}

// RecordIssued counts a run that reached Rendered or later
func (m *InvoiceMetrics) RecordIssued(ctx context.Context, locale string, d time.Duration) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1, metric.WithAttributes(AttrLocale.String(locale)))
	m.issueDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOutcome.String(OutcomeSucceeded)))
}

// RecordFailed counts a run that ended Failed(stage)
func (m *InvoiceMetrics) RecordFailed(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(AttrStage.String(stage)))
	m.issueDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOutcome.String(OutcomeFailed)))
}

// RecordStep counts one distribution or cleanup step outcome
func (m *InvoiceMetrics) RecordStep(ctx context.Context, step, outcome string) {
	if m == nil {
		return
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(AttrStep.String(step), AttrOutcome.String(outcome)))
}

// RecordAllocationRetry counts a re-allocation after NumberTaken
func (m *InvoiceMetrics) RecordAllocationRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.allocationRetries.Add(ctx, 1)
}

// RecordOrphanedRecord counts a ledger record left without a document
func (m *InvoiceMetrics) RecordOrphanedRecord(ctx context.Context) {
	if m == nil {
		return
	}
	m.orphanedRecords.Add(ctx, 1)
}
