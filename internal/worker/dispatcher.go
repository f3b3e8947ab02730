// Package worker hosts the background machinery: the settlement dispatcher
// that drives gateway round trips and the sweep that expires stale payments.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// PaymentSettler runs the gateway round trip for one payment.
type PaymentSettler interface {
	SettlePayment(ctx context.Context, id uuid.UUID) error
}

// RefundSettler runs the gateway round trip for one refund.
type RefundSettler interface {
	SettleRefund(ctx context.Context, id uuid.UUID) error
}

type settlementKind int

const (
	kindPayment settlementKind = iota
	kindRefund
)

type settlementJob struct {
	kind settlementKind
	id   uuid.UUID
}

func (j settlementJob) key() string {
	if j.kind == kindRefund {
		return "refund:" + j.id.String()
	}
	return "payment:" + j.id.String()
}

// SettlementDispatcher fans settlement jobs out to a fixed worker pool over
// a bounded queue. Scheduling never blocks: when the queue is full the job
// is dropped and logged, and the expiration sweep catches strays later. An
// in-flight set guarantees at most one worker touches an entity at a time.
type SettlementDispatcher struct {
	payments PaymentSettler
	refunds  RefundSettler

	queue   chan settlementJob
	workers int
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}

	wg sync.WaitGroup
}

func NewSettlementDispatcher(workers, queueSize int, logger *slog.Logger) *SettlementDispatcher {
	return &SettlementDispatcher{
		queue:    make(chan settlementJob, queueSize),
		workers:  workers,
		logger:   logger.With("component", "settlement-dispatcher"),
		inflight: make(map[string]struct{}),
	}
}

// Bind attaches the settlers. It must be called before Start; services and
// dispatcher reference each other, so wiring happens in two steps.
func (d *SettlementDispatcher) Bind(payments PaymentSettler, refunds RefundSettler) {
	d.payments = payments
	d.refunds = refunds
}

func (d *SettlementDispatcher) SchedulePayment(paymentID uuid.UUID) {
	d.enqueue(settlementJob{kind: kindPayment, id: paymentID})
}

func (d *SettlementDispatcher) ScheduleRefund(refundID uuid.UUID) {
	d.enqueue(settlementJob{kind: kindRefund, id: refundID})
}

func (d *SettlementDispatcher) enqueue(job settlementJob) {
	d.mu.Lock()
	if _, busy := d.inflight[job.key()]; busy {
		d.mu.Unlock()
		d.logger.Debug("settlement already scheduled", "job", job.key())
		return
	}
	d.inflight[job.key()] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- job:
	default:
		d.release(job)
		d.logger.Warn("settlement queue full, dropping job", "job", job.key())
	}
}

func (d *SettlementDispatcher) release(job settlementJob) {
	d.mu.Lock()
	delete(d.inflight, job.key())
	d.mu.Unlock()
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// Shutdown waits for them to drain.
func (d *SettlementDispatcher) Start(ctx context.Context) {
	d.logger.Info("settlement dispatcher started",
		"workers", d.workers, "queue_size", cap(d.queue))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}
}

func (d *SettlementDispatcher) run(ctx context.Context, worker int) {
	defer d.wg.Done()
	logger := d.logger.With("worker", worker)

	for {
		select {
		case <-ctx.Done():
			logger.Info("settlement worker stopping")
			return
		case job := <-d.queue:
			d.process(ctx, logger, job)
		}
	}
}

func (d *SettlementDispatcher) process(ctx context.Context, logger *slog.Logger, job settlementJob) {
	defer d.release(job)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("settlement panic", "job", job.key(), "panic", r)
		}
	}()

	var err error
	switch job.kind {
	case kindPayment:
		err = d.payments.SettlePayment(ctx, job.id)
	case kindRefund:
		err = d.refunds.SettleRefund(ctx, job.id)
	}
	if err != nil {
		logger.Error("settlement failed", "job", job.key(), "error", err)
	}
}

// Shutdown blocks until every worker has finished its current job. Cancel
// the context passed to Start first.
func (d *SettlementDispatcher) Shutdown() {
	d.wg.Wait()
	d.logger.Info("settlement dispatcher stopped")
}
