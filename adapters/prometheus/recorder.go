package prometheus

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-account-settings/core"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "account_settings"

// Durations are recorded in milliseconds.
var defaultDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if trimmed := sanitize(namespace); trimmed != "" {
			r.namespace = trimmed
		}
	}
}

func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder implements core.MetricsRecorder on client_golang vectors. A vector
// is created the first time a metric name is seen; its label set is the tag
// keys of that first call. Later calls fill missing labels with "" and drop
// unknown ones.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		namespace:  defaultNamespace,
		buckets:    defaultDurationBuckets,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	entry, err := r.counter(name, tags)
	if err != nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry, err := r.histogram(name, tags)
	if err != nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) (*counterEntry, error) {
	metric := MetricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.counters[metric]; ok {
		return entry, nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      metric,
		Help:      "Count of account settings operations (" + name + ").",
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[metric] = entry
	return entry, nil
}

func (r *Recorder) histogram(name string, tags map[string]string) (*histogramEntry, error) {
	metric := MetricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.histograms[metric]; ok {
		return entry, nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      metric,
		Help:      "Duration of account settings operations (" + name + ").",
		Buckets:   r.buckets,
	}, labels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[metric] = entry
	return entry, nil
}

// MetricName maps a dotted recorder name such as
// "settings.discovery.load.total" to "settings_discovery_load_total".
func MetricName(name string) string {
	metric := sanitize(name)
	if metric == "" {
		return "unnamed"
	}
	return metric
}

func labelNames(tags map[string]string) []string {
	labels := make([]string, 0, len(tags))
	for key := range tags {
		if label := sanitize(key); label != "" {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

func labelValues(labels []string, tags map[string]string) prometheus.Labels {
	sanitized := make(map[string]string, len(tags))
	for key, value := range tags {
		sanitized[sanitize(key)] = value
	}
	out := make(prometheus.Labels, len(labels))
	for _, label := range labels {
		out[label] = sanitized[label]
	}
	return out
}

func sanitize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9' && b.Len() > 0:
			b.WriteRune(r)
			lastUnderscore = false
		case b.Len() > 0 && !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

var _ core.MetricsRecorder = (*Recorder)(nil)
