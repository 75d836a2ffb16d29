package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/kernel"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.RecordHotExecution(kernel.OpAskSP, 120, false)
	c.RecordHotExecution(kernel.OpAskSP, 900, true)
	c.RecordPark(kernel.OpConstruct8, 8)
	c.RecordRefusal(kernel.Op(20), admission.ReasonUnknownOp)
	c.RecordWarmExecution(kernel.OpConstruct8, 2*time.Millisecond, true)
	c.RecordPulse(8, 3, time.Millisecond)
	c.RecordArchive(3, nil)
	c.RecordArchive(0, errors.New("put failed"))
	c.RecordBacklog()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.hotExecutions.WithLabelValues(kernel.OpAskSP.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.hotOverruns))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.parks.WithLabelValues(kernel.OpConstruct8.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.refusals.WithLabelValues(admission.ReasonUnknownOp.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.warmBreaches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pulses))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.pulseReceipts))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.archives))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.archiveErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backlog))
}

func TestDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)
	_, err = NewCollector(reg)
	assert.Error(t, err)
}
