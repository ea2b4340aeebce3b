package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Labels identifying one variable of one sensor.
var seriesLabels = []string{"sensor", "location", "variable", "unit"}

func valueOpts(namespace string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reading_value",
		Help:      "Averaged value of the last logging interval; NaN when no sample was valid.",
	}
}

func validOpts(namespace string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reading_valid_samples",
		Help:      "Samples that went into the last averaged value.",
	}
}

func failedOpts(namespace string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reading_failed_samples",
		Help:      "Samples rejected during the last logging interval.",
	}
}

func timestampOpts(namespace string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_report_timestamp_seconds",
		Help:      "Unix time of the last report.",
	}
}
