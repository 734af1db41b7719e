package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/colepay/colepay/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriftLister struct {
	drifts []store.BalanceDrift
	err    error
	calls  int
}

func (f *fakeDriftLister) ListBalanceDrift(context.Context) ([]store.BalanceDrift, error) {
	f.calls++
	return f.drifts, f.err
}

func TestReconcilerCleanRun(t *testing.T) {
	lister := &fakeDriftLister{}
	r, err := NewReconciler(lister, "0 3 * * *", zerolog.Nop())
	require.NoError(t, err)

	drifts, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)
	assert.Equal(t, 1, lister.calls)
}

func TestReconcilerReportsDrift(t *testing.T) {
	lister := &fakeDriftLister{drifts: []store.BalanceDrift{{
		RepresentativeID: uuid.New(),
		FullName:         "Drifted Rep",
		Balance:          decimal.RequireFromString("100.00"),
		LedgerTotal:      decimal.RequireFromString("75.00"),
	}}}
	r, err := NewReconciler(lister, "@daily", zerolog.Nop())
	require.NoError(t, err)

	drifts, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "Drifted Rep", drifts[0].FullName)
}

func TestReconcilerPropagatesStoreError(t *testing.T) {
	lister := &fakeDriftLister{err: errors.New("connection refused")}
	r, err := NewReconciler(lister, "@daily", zerolog.Nop())
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.Error(t, err)
}

func TestReconcilerRejectsBadSchedule(t *testing.T) {
	_, err := NewReconciler(&fakeDriftLister{}, "not a schedule", zerolog.Nop())
	assert.Error(t, err)
}
