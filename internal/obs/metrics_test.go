package obs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.VoucherCreated(1)
	m.VoucherCreated(1)
	m.VoucherCreated(10)
	m.StatusChanged("Ready")
	m.AttachmentsRejected(2)
	m.AttachmentsRejected(0)
	m.BusyRetry()
	m.ObserveTx(10*time.Millisecond, nil)
	m.ObserveTx(time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.vouchersCreated.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vouchersCreated.WithLabelValues("10")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges.WithLabelValues("Ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attachmentsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.busyRetries))
	assert.Equal(t, 2, testutil.CollectAndCount(m.txDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.VoucherCreated(1)
		m.StatusChanged("Ready")
		m.AttachmentsRejected(1)
		m.BusyRetry()
		m.ObserveTx(time.Second, nil)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.BusyRetry()

	path := filepath.Join(t.TempDir(), "ledger.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger_busy_retries_total 1")
}
