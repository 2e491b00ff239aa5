// Package metric provides Prometheus metrics for the framework.
//
// A Registry owns a private Prometheus registry preloaded with core framework
// metrics (node lifecycle state, update counts and durations, scheduler
// ticks, transport byte counters) plus Go runtime collectors. Executors and
// transports record to the core metrics when handed a Registry; components
// with their own metrics register them per service name:
//
//	registry := metric.NewRegistry()
//	registry.RegisterCounter("udp_client", "requests", counter)
//
// Server exposes the registry for scraping over HTTP.
package metric
