// Package main runs a small demonstration of the framework: a greeter
// node publishing to a latest-value slot, a listener node reading it,
// and an addition server/client pair, all scheduled by one executor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/nodecomm/clientserver"
	"github.com/c360/nodecomm/config"
	"github.com/c360/nodecomm/executor"
	"github.com/c360/nodecomm/metric"
	"github.com/c360/nodecomm/node"
	"github.com/c360/nodecomm/pubsub"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "nodecomm-demo"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration")
	runDuration := flag.Duration("duration", 10*time.Second, "how long to run")
	usePool := flag.Bool("pool", false, "use the worker-pool executor")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	registry := metric.NewRegistry()
	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop(2 * time.Second) }()
		logger.Info("metrics exposed", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
	}

	// Wire the demo nodes.
	greetings := pubsub.NewPublisher[string]()
	sums := clientserver.NewLocalServer[[2]int64, int64](clientserver.LocalServerDeps{
		QueueSize: cfg.Executor.QueueSize,
		Logger:    logger.With("component", "local-server"),
	})

	nodes := []node.Node[string]{
		&greeter{pub: greetings, logger: logger.With("node", "greeter")},
		&listener{sub: greetings.Subscribe(), logger: logger.With("node", "listener")},
		&sumServer{server: sums},
		&sumClient{client: sums.CreateClient(), logger: logger.With("node", "sum-client")},
	}

	var exec executor.Executor[string]
	if *usePool {
		exec = executor.NewPool[string](executor.PoolDeps{
			Workers:         cfg.Executor.Workers,
			QueueSize:       cfg.Executor.QueueSize,
			ShutdownTimeout: cfg.Executor.ShutdownTimeout,
			MetricsRegistry: registry,
			Logger:          logger.With("component", "pool-executor"),
		})
	} else {
		exec = executor.NewSimple[string](executor.SimpleDeps{
			MetricsRegistry: registry,
			Logger:          logger.With("component", "simple-executor"),
		})
	}

	for _, n := range nodes {
		if err := exec.AddNode(n); err != nil {
			return fmt.Errorf("add node %s: %w", n.ID(), err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("running", "app", appName, "version", Version, "duration", *runDuration, "pool", *usePool)
	return exec.RunFor(ctx, *runDuration)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type greeter struct {
	pub    *pubsub.Publisher[string]
	logger *slog.Logger
	count  int
}

func (g *greeter) ID() string                  { return "greeter" }
func (g *greeter) UpdatePeriod() time.Duration { return time.Second }
func (g *greeter) Start() error                { return nil }
func (g *greeter) Update() error {
	g.count++
	greeting := fmt.Sprintf("hello world %d", g.count)
	g.pub.Publish(greeting)
	g.logger.Debug("published", "greeting", greeting)
	return nil
}
func (g *greeter) Shutdown() error { return nil }

type listener struct {
	sub    *pubsub.Subscriber[string]
	logger *slog.Logger
}

func (l *listener) ID() string                  { return "listener" }
func (l *listener) UpdatePeriod() time.Duration { return time.Second }
func (l *listener) Start() error                { return nil }
func (l *listener) Update() error {
	if l.sub.Fresh() {
		if sample, ok := l.sub.Get(); ok {
			l.logger.Info("received", "value", sample.Value, "seq", sample.Seq)
		}
	}
	return nil
}
func (l *listener) Shutdown() error { return nil }

type sumServer struct {
	server *clientserver.LocalServer[[2]int64, int64]
}

func (s *sumServer) ID() string                  { return "sum-server" }
func (s *sumServer) UpdatePeriod() time.Duration { return 100 * time.Millisecond }
func (s *sumServer) Start() error                { return nil }
func (s *sumServer) Update() error {
	for {
		key, req, ok, err := s.server.PollRequest()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.server.SendResponse(key, req[0]+req[1]); err != nil {
			return err
		}
	}
}
func (s *sumServer) Shutdown() error { return nil }

type sumClient struct {
	client  *clientserver.LocalClient[[2]int64, int64]
	logger  *slog.Logger
	pending []uint64
	next    int64
}

func (c *sumClient) ID() string                  { return "sum-client" }
func (c *sumClient) UpdatePeriod() time.Duration { return time.Second }
func (c *sumClient) Start() error                { return nil }
func (c *sumClient) Update() error {
	c.next++
	key, err := c.client.SendRequest([2]int64{c.next, c.next * 2})
	if err != nil {
		return err
	}
	c.pending = append(c.pending, key)

	remaining := c.pending[:0]
	for _, k := range c.pending {
		res, ok, err := c.client.PollResponse(k)
		if err != nil {
			return err
		}
		if !ok {
			remaining = append(remaining, k)
			continue
		}
		c.logger.Info("sum received", "key", k, "sum", res)
	}
	c.pending = remaining
	return nil
}
func (c *sumClient) Shutdown() error { return nil }
