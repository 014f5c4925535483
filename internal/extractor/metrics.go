package extractor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics holds Prometheus metrics for extraction runs.
type runMetrics struct {
	once sync.Once

	runs       *prometheus.CounterVec
	messages   *prometheus.CounterVec
	summarized prometheus.Counter
	keywords   prometheus.Gauge
	duration   prometheus.Histogram
}

var metrics runMetrics

func (m *runMetrics) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgehub_extraction_runs_total",
			Help: "Extraction runs by result",
		}, []string{"result"})
		m.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgehub_extraction_messages_total",
			Help: "Scanned messages by outcome",
		}, []string{"outcome"})
		m.summarized = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowledgehub_extraction_summaries_total",
			Help: "AI summaries produced",
		})
		m.keywords = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knowledgehub_vocabulary_size",
			Help: "Keywords in the vocabulary of the last run",
		})
		m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgehub_extraction_seconds",
			Help:    "Duration of extraction runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		})
		prometheus.MustRegister(m.runs, m.messages, m.summarized, m.keywords, m.duration)
	})
}

func recordRun(r *Report) {
	metrics.init()
	result := "success"
	if !r.Success {
		result = "failure"
	}
	metrics.runs.WithLabelValues(result).Inc()
	metrics.messages.WithLabelValues("unmatched").Add(float64(r.Unmatched))
	metrics.messages.WithLabelValues("repeated").Add(float64(r.Repeated))
	metrics.messages.WithLabelValues("inserted").Add(float64(r.Inserted))
	metrics.messages.WithLabelValues("updated").Add(float64(r.Updated))
	metrics.messages.WithLabelValues("duplicate").Add(float64(r.Duplicates))
	metrics.messages.WithLabelValues("error").Add(float64(r.Errors))
	metrics.summarized.Add(float64(r.Summarized))
	metrics.keywords.Set(float64(r.Keywords))
	metrics.duration.Observe(r.Duration.Seconds())
}
