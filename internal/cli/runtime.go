package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/alert"
	"github.com/ppiankov/chainkernel/internal/config"
	"github.com/ppiankov/chainkernel/internal/eventlog"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/indexer"
	"github.com/ppiankov/chainkernel/internal/logging"
	"github.com/ppiankov/chainkernel/internal/metrics"
	"github.com/ppiankov/chainkernel/internal/node"
	"github.com/ppiankov/chainkernel/internal/ratelimit"
)

// runtime is a bootstrapped node with its sinks.
type runtime struct {
	cfg      *config.Config
	log      *logrus.Logger
	node     *node.Node
	metrics  *metrics.Metrics
	store    *indexer.Store
	eventLog *eventlog.Log
}

// openRuntime builds the node for cfg. The indexer and metrics see every
// receipt from genesis on; the event log is replayed first and, when
// record is set, reopened for appending so new transactions survive a
// restart.
func openRuntime(ctx context.Context, cfg *config.Config, log *logrus.Logger, record bool) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log, metrics: metrics.New()}
	opts := []node.Option{
		node.WithLogger(logrus.NewEntry(log)),
		node.WithSink(rt.metrics),
	}

	if cfg.Indexer.DSN != "" {
		if err := ensureDir(cfg.Indexer.Driver, cfg.Indexer.DSN); err != nil {
			return nil, err
		}
		store, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN, logging.Component(log, "indexer"))
		if err != nil {
			return nil, err
		}
		rt.store = store
		if err := store.Migrate(ctx); err != nil {
			rt.Close()
			return nil, err
		}
		// the projection is rebuilt from genesis and replay on every start
		if err := store.Reset(ctx); err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, node.WithSink(store))
	}

	n, err := node.New(ctx, ident.EntityFromName(cfg.Root), opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.node = n

	if cfg.EventLog != "" {
		if _, err := n.Replay(ctx, cfg.EventLog); err != nil {
			rt.Close()
			return nil, err
		}
		if record {
			l, err := eventlog.Open(cfg.EventLog)
			if err != nil {
				rt.Close()
				return nil, err
			}
			rt.eventLog = l
			n.AddSink(l)
		}
	}

	if d := alert.NewDispatcher(cfg.Alerts, logging.Component(log, "alert")); d != nil {
		n.AddSink(d)
	}
	return rt, nil
}

// rateLimits keys cfg's limits by sender address; names are hashed the
// way the node resolves senders.
func (rt *runtime) rateLimits() (ratelimit.RateLimitConfig, error) {
	out := make(ratelimit.RateLimitConfig, len(rt.cfg.RateLimits))
	addrs := rt.node.Addresses()
	for k, v := range rt.cfg.RateLimits {
		if k == "*" {
			out[k] = v
			continue
		}
		addr, err := addrs.Entity(k)
		if err != nil {
			return nil, fmt.Errorf("rate limit %q: %w", k, err)
		}
		out[addr.Hex()] = v
	}
	return out, nil
}

// Close releases the event log and the indexer.
func (rt *runtime) Close() error {
	var errs []string
	if rt.eventLog != nil {
		if err := rt.eventLog.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}

func ensureDir(driver, dsn string) error {
	if driver == "postgres" || strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o750)
}

// loadConfig reads the --config file and builds the logger it names.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
