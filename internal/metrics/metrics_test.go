package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Entries(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				r.Entry(StatusSkipped)
				return
			}
			r.Entry(StatusWritten)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40.0, testutil.ToFloat64(r.entries.WithLabelValues(string(StatusWritten))))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.entries.WithLabelValues(string(StatusSkipped))))

	written, err := r.Count(StatusWritten)
	require.NoError(t, err)
	assert.Equal(t, 40.0, written)
}

func TestRecorder_Histograms(t *testing.T) {
	r := New()
	r.Envelope(250*time.Microsecond, 5)
	r.Envelope(time.Millisecond, 3)
	r.Chunk(20 * time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
	assert.Equal(t, 1, testutil.CollectAndCount(r.peaks))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "isodist_envelope_peaks" {
			h := mf.GetMetric()[0].GetHistogram()
			assert.Equal(t, uint64(2), h.GetSampleCount())
			assert.Equal(t, 8.0, h.GetSampleSum())
		}
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Entry(StatusWritten)
	r.Envelope(time.Millisecond, 4)

	path := filepath.Join(t.TempDir(), "isodist.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `isodist_entries_total{status="written"} 1`)
	assert.Contains(t, text, "isodist_envelope_duration_seconds_count 1")
	assert.Contains(t, text, "isodist_last_run_timestamp_seconds")

	assert.Error(t, r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
