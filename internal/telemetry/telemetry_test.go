package telemetry

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/report"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReports() []report.Report {
	ts := time.Unix(1700000000, 0)
	temp := sensor.Variable{Name: "temperature", Unit: "degreeCelsius", Resolution: 2}
	hum := sensor.Variable{Name: "relativeHumidity", Unit: "percent", Resolution: 2}

	return []report.Report{
		{Timestamp: ts, Sensor: "atmos", Location: "ttyUSB0_0", Variable: temp, Value: sensor.Valid(21.5), ValidCount: 3},
		{Timestamp: ts, Sensor: "atmos", Location: "ttyUSB0_0", Variable: hum, Index: 1, Value: sensor.Missing(), FailedCount: 3},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty", cfg: Config{}},
		{name: "host and port", cfg: Config{Listen: "127.0.0.1:9100"}},
		{name: "port only", cfg: Config{Listen: ":9100"}},
		{name: "missing port", cfg: Config{Listen: "localhost"}, wantErr: true},
		{name: "relative path", cfg: Config{Path: "metrics"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, ErrInvalidConfig))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReportSetsGauges(t *testing.T) {
	c, err := NewService(DefaultConfig(), logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Report(context.Background(), sampleReports()))

	repo := c.(*service).repo.(*repository)
	tempLabels := []string{"atmos", "ttyUSB0_0", "temperature", "degreeCelsius"}
	humLabels := []string{"atmos", "ttyUSB0_0", "relativeHumidity", "percent"}

	assert.Equal(t, 21.5, testutil.ToFloat64(repo.value.WithLabelValues(tempLabels...)))
	assert.Equal(t, 3.0, testutil.ToFloat64(repo.valid.WithLabelValues(tempLabels...)))
	assert.True(t, math.IsNaN(testutil.ToFloat64(repo.value.WithLabelValues(humLabels...))))
	assert.Equal(t, 3.0, testutil.ToFloat64(repo.failed.WithLabelValues(humLabels...)))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(repo.timestamp))
}

func TestHandlerServesMetrics(t *testing.T) {
	c, err := NewService(Config{Namespace: "station"}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Report(context.Background(), sampleReports()))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `station_reading_value{location="ttyUSB0_0",sensor="atmos",unit="degreeCelsius",variable="temperature"} 21.5`)
	assert.True(t, strings.Contains(body, "station_reading_failed_samples"))
}

func TestReportCanceled(t *testing.T) {
	c, err := NewService(DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Report(ctx, sampleReports())
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestListenAndClose(t *testing.T) {
	c, err := NewService(Config{Listen: "127.0.0.1:0"}, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, c.(*service).server)
	assert.NoError(t, c.Close())
}
