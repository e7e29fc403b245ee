package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStage(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	r.ObserveStage("create", "deploy", 2*time.Second, nil)
	r.ObserveStage("create", "deploy", time.Second, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.stageTotal.WithLabelValues("create", "deploy", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stageTotal.WithLabelValues("create", "deploy", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))
}

func TestObserveRetry(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	r.ObserveRetry("session", 3, true)
	r.ObserveRetry("session", 24, false)

	assert.Equal(t, float64(27), testutil.ToFloat64(r.retryAttempts.WithLabelValues("session")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.retryTotal.WithLabelValues("session", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.retryTotal.WithLabelValues("session", "exhausted")))
}

func TestObserveRun(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	at := time.Unix(1700000000, 0)
	r.ObserveRun("save", at, nil)
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(r.lastRun.WithLabelValues("save", "success")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	r.ObserveStage("destroy", "destroy", time.Second, nil)

	path := filepath.Join(t.TempDir(), "kap.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kap_stage_total{operation="destroy",result="success",stage="destroy"} 1`)

	assert.NoError(t, r.WriteTextfile(""))
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()
	var r *Recorder

	assert.NotPanics(t, func() {
		r.ObserveStage("create", "x", time.Second, nil)
		r.ObserveRetry("session", 1, true)
		r.ObserveRun("create", time.Now(), nil)
	})
	assert.NoError(t, r.WriteTextfile("/nonexistent/kap.prom"))
	assert.Nil(t, r.Registry())
}
