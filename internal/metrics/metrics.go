package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters the engine exports.
type Metrics struct {
	CompileTotal   *prometheus.CounterVec // outcome: ok|parse_error|compile_error|encoding_error
	ExecuteTotal   prometheus.Counter
	FallbackTotal  prometheus.Counter
	SelectTotal    *prometheus.CounterVec // mode: explore|exploit|none
	UpdateTotal    prometheus.Counter
	UpdateIgnored  prometheus.Counter
	ModelSaveTotal prometheus.Counter
	ModelLoadTotal *prometheus.CounterVec // result: ok|fresh|corrupt|error
}

// New creates and registers all metrics against reg. Tests pass a private
// registry so parallel packages never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CompileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nanoforge_compile_total",
			Help: "Script compilations by outcome",
		}, []string{"outcome"}),
		ExecuteTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nanoforge_execute_total",
			Help: "Function executions",
		}),
		FallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nanoforge_execute_fallback_total",
			Help: "Executions that fell back to the baseline variant",
		}),
		SelectTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nanoforge_optimizer_select_total",
			Help: "Optimizer selections by mode",
		}, []string{"mode"}),
		UpdateTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nanoforge_optimizer_update_total",
			Help: "Optimizer feedback updates applied",
		}),
		UpdateIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "nanoforge_optimizer_update_ignored_total",
			Help: "Optimizer feedback updates dropped as malformed",
		}),
		ModelSaveTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nanoforge_model_save_total",
			Help: "Optimizer model snapshots written",
		}),
		ModelLoadTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nanoforge_model_load_total",
			Help: "Optimizer model loads by result",
		}, []string{"result"}),
	}
}
