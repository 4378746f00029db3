package render

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики менеджера секций
type Metrics struct {
	TotalSections    prometheus.Gauge
	VisibleSections  prometheus.Gauge
	TickableSections prometheus.Gauge
	QueuedRebuilds   *prometheus.GaugeVec
	SubmittedTasks   *prometheus.CounterVec
	AcceptedResults  prometheus.Counter
	StaleResults     prometheus.Counter
	FailedBuilds     prometheus.Counter
	DroppedOffers    prometheus.Counter
	DeviceMemory     *prometheus.GaugeVec
	FrameDuration    prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg, если он задан
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TotalSections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "render",
			Name:      "sections_total",
			Help:      "Количество загруженных секций.",
		}),
		VisibleSections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "render",
			Name:      "sections_visible",
			Help:      "Секции в списке видимых последнего кадра.",
		}),
		TickableSections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "render",
			Name:      "sections_tickable",
			Help:      "Видимые секции с анимированными текстурами.",
		}),
		QueuedRebuilds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "render",
			Name:      "rebuild_queue_length",
			Help:      "Длина очередей перестройки после обхода.",
		}, []string{"type"}),
		SubmittedTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "render",
			Name:      "build_tasks_submitted_total",
			Help:      "Задачи построения, отправленные в пул.",
		}, []string{"type"}),
		AcceptedResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "render",
			Name:      "build_results_accepted_total",
			Help:      "Принятые результаты построения.",
		}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "render",
			Name:      "build_results_stale_total",
			Help:      "Отброшенные устаревшие результаты.",
		}),
		FailedBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "render",
			Name:      "build_failures_total",
			Help:      "Задачи, завершившиеся ошибкой.",
		}),
		DroppedOffers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "render",
			Name:      "rebuild_offers_dropped_total",
			Help:      "Секции, не попавшие в заполненную очередь.",
		}),
		DeviceMemory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "render",
			Name:      "device_memory_bytes",
			Help:      "Память арен устройства.",
		}, []string{"kind"}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "render",
			Name:      "graph_update_seconds",
			Help:      "Длительность обхода графа видимости.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TotalSections,
			m.VisibleSections,
			m.TickableSections,
			m.QueuedRebuilds,
			m.SubmittedTasks,
			m.AcceptedResults,
			m.StaleResults,
			m.FailedBuilds,
			m.DroppedOffers,
			m.DeviceMemory,
			m.FrameDuration,
		)
	}
	return m
}
