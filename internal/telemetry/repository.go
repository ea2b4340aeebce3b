package telemetry

import (
	"math"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/report"
	"github.com/prometheus/client_golang/prometheus"
)

type repository struct {
	value     *prometheus.GaugeVec
	valid     *prometheus.GaugeVec
	failed    *prometheus.GaugeVec
	timestamp prometheus.Gauge
}

func newRepository(reg prometheus.Registerer, namespace string) (*repository, error) {
	r := &repository{
		value:     prometheus.NewGaugeVec(valueOpts(namespace), seriesLabels),
		valid:     prometheus.NewGaugeVec(validOpts(namespace), seriesLabels),
		failed:    prometheus.NewGaugeVec(failedOpts(namespace), seriesLabels),
		timestamp: prometheus.NewGauge(timestampOpts(namespace)),
	}

	for _, c := range []prometheus.Collector{r.value, r.valid, r.failed, r.timestamp} {
		if err := reg.Register(c); err != nil {
			return nil, errors.New().Wrap(ErrRegister, err)
		}
	}

	return r, nil
}

func (r *repository) Store(reports []report.Report) {
	var latest float64
	for _, rep := range reports {
		labels := prometheus.Labels{
			"sensor":   rep.Sensor,
			"location": rep.Location,
			"variable": rep.Variable.Name,
			"unit":     rep.Variable.Unit,
		}

		value := math.NaN()
		if rep.Value.Valid {
			value = rep.Value.Value
		}
		r.value.With(labels).Set(value)
		r.valid.With(labels).Set(float64(rep.ValidCount))
		r.failed.With(labels).Set(float64(rep.FailedCount))

		if ts := float64(rep.Timestamp.Unix()); ts > latest {
			latest = ts
		}
	}

	if latest > 0 {
		r.timestamp.Set(latest)
	}
}
