// Package metric provides the framework's Prometheus metrics registry and
// core platform metrics.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/nodecomm/errors"
)

// Registrar defines the interface for registering service-specific metrics
type Registrar interface {
	RegisterCounter(serviceName, metricName string, counter prometheus.Counter) error
	RegisterGauge(serviceName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(serviceName, metricName string, histogram prometheus.Histogram) error
	Unregister(serviceName, metricName string) bool
}

// Registry manages the registration and lifecycle of metrics
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a new metrics registry with core framework metrics
func NewRegistry() *Registry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &Registry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.Metrics = NewMetrics()
	registry.registerCoreMetrics()

	// Add Go runtime metrics
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core framework metrics
func (r *Registry) CoreMetrics() *Metrics {
	return r.Metrics
}

func (r *Registry) registerCoreMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.NodeStatus,
		r.Metrics.NodeUpdates,
		r.Metrics.UpdateDuration,
		r.Metrics.NodeErrors,
		r.Metrics.SchedulerTicks,
		r.Metrics.MessagesPublished,
		r.Metrics.BytesSent,
		r.Metrics.BytesReceived,
	)
}

// register adds a collector under serviceName.metricName, rejecting
// duplicates at both the registry and Prometheus level.
func (r *Registry) register(collector prometheus.Collector, serviceName, metricName, method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", serviceName, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for service %s", metricName, serviceName),
			"Registry", method, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", method,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "Registry", method, "prometheus registration")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// RegisterCounter registers a counter metric for a service
func (r *Registry) RegisterCounter(serviceName, metricName string, counter prometheus.Counter) error {
	return r.register(counter, serviceName, metricName, "RegisterCounter")
}

// RegisterGauge registers a gauge metric for a service
func (r *Registry) RegisterGauge(serviceName, metricName string, gauge prometheus.Gauge) error {
	return r.register(gauge, serviceName, metricName, "RegisterGauge")
}

// RegisterHistogram registers a histogram metric for a service
func (r *Registry) RegisterHistogram(serviceName, metricName string, histogram prometheus.Histogram) error {
	return r.register(histogram, serviceName, metricName, "RegisterHistogram")
}

// Unregister removes a metric registered for a service. Returns true if the
// metric existed.
func (r *Registry) Unregister(serviceName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", serviceName, metricName)
	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	r.prometheusRegistry.Unregister(collector)
	delete(r.registeredMetrics, key)
	return true
}
