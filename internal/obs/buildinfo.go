package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	// build_info is a constant 1 labelled with version and API base URL.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hermandad_console_build_info",
			Help: "Hermandad console build information.",
		},
		[]string{"version", "api_base"},
	)
)

// InitBuildInfo registers build_info once and sets its value.
func InitBuildInfo(version, apiBase string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, apiBase).Set(1)
}
