// Package audit runs the nightly ledger reconciliation: every
// representative's stored balance must equal the sum of their completed
// signed transaction amounts. Drift means a bug or manual tampering and is
// surfaced loudly, never silently corrected.
package audit

import (
	"context"
	"time"

	"github.com/colepay/colepay/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	driftedBalances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_drifted_balances",
		Help: "Representatives whose balance diverges from their ledger total, as of the last audit",
	})

	auditRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_audit_runs_total",
		Help: "Reconciliation audit runs by outcome",
	}, []string{"outcome"})
)

// DriftLister is the store slice the reconciler needs.
type DriftLister interface {
	ListBalanceDrift(ctx context.Context) ([]store.BalanceDrift, error)
}

// Reconciler periodically audits balances against ledger totals.
type Reconciler struct {
	store   DriftLister
	log     zerolog.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewReconciler builds a reconciler with the given cron schedule already
// registered. Call Start to begin running it.
func NewReconciler(st DriftLister, schedule string, log zerolog.Logger) (*Reconciler, error) {
	r := &Reconciler{
		store:   st,
		log:     log.With().Str("component", "reconciler").Logger(),
		cron:    cron.New(),
		timeout: 5 * time.Minute,
	}
	if _, err := r.cron.AddFunc(schedule, r.runScheduled); err != nil {
		return nil, err
	}
	return r, nil
}

// Start launches the cron scheduler in its own goroutine.
func (r *Reconciler) Start() { r.cron.Start() }

// Stop halts the scheduler and waits for an in-flight run to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reconciler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.Run(ctx); err != nil {
		r.log.Error().Err(err).Msg("reconciliation audit failed")
	}
}

// Run executes one audit pass and returns the drifted rows.
func (r *Reconciler) Run(ctx context.Context) ([]store.BalanceDrift, error) {
	started := time.Now()
	drifts, err := r.store.ListBalanceDrift(ctx)
	if err != nil {
		auditRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	driftedBalances.Set(float64(len(drifts)))
	for _, d := range drifts {
		r.log.Error().
			Str("representative_id", d.RepresentativeID.String()).
			Str("full_name", d.FullName).
			Str("balance", d.Balance.String()).
			Str("ledger_total", d.LedgerTotal.String()).
			Msg("balance drift detected")
	}

	if len(drifts) == 0 {
		auditRuns.WithLabelValues("clean").Inc()
		r.log.Info().Dur("took", time.Since(started)).Msg("reconciliation audit clean")
	} else {
		auditRuns.WithLabelValues("drift").Inc()
		r.log.Warn().Int("drifted", len(drifts)).Dur("took", time.Since(started)).Msg("reconciliation audit found drift")
	}
	return drifts, nil
}
