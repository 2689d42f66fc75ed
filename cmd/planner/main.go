// Command planner is the device-side client: it keeps preferences and profile in a local
// cache, reconciles them with the planner server and edits schedules through the
// conflict protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	_ "github.com/go-kivik/kivik/v4/x/fsdb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"course-planner-sync/internal/cache"
	"course-planner-sync/internal/config"
	"course-planner-sync/internal/conflict"
	"course-planner-sync/internal/planner"
	"course-planner-sync/internal/remote"
	"course-planner-sync/pkg/logger"
)

const (
	exitError    = 1
	exitRejected = 2
)

type app struct {
	out          io.Writer
	log          *zap.Logger
	client       *remote.Client
	cache        *cache.Cache
	prefs        *planner.PreferenceSync
	profile      *planner.ProfileSync
	catalog      *planner.RemoteCatalog
	mutator      *planner.ScheduleMutator
	refreshToken string
	closers      []func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "planner:", err)
	var rejected *planner.RejectedError
	if errors.As(err, &rejected) {
		os.Exit(exitRejected)
	}
	os.Exit(exitError)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("missing command")
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	defer a.close()

	cmdErr := a.dispatch(ctx, args)

	// Preference pushes run in the background; give them a chance to land before exit.
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout)
	defer cancel()
	if err := a.prefs.Flush(flushCtx); err != nil {
		a.log.Warn("pending preference pushes abandoned", zap.Error(err))
	}
	if err := a.profile.Flush(flushCtx); err != nil {
		a.log.Warn("pending profile refresh abandoned", zap.Error(err))
	}

	return cmdErr
}

func newApp(cfg *config.ClientConfig, out io.Writer) (*app, error) {
	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	a := &app{out: out, log: zl, refreshToken: cfg.RefreshToken}
	a.closers = append(a.closers, func() error {
		zl.Sync()
		return nil
	})

	backend, err := a.openBackend(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.client = remote.NewClient(cfg.APIURL, cfg.RemoteTimeout)
	a.client.SetToken(cfg.APIToken)
	a.cache = cache.New(backend, zl)
	a.prefs = planner.NewPreferenceSync(a.cache, a.client, zl, cfg.RemoteTimeout)
	a.profile = planner.NewProfileSync(a.cache, a.client, zl, cfg.RemoteTimeout)
	a.catalog = planner.NewRemoteCatalog(a.client)
	a.mutator = planner.NewScheduleMutator(a.catalog, a.client, conflict.NewDetector(cfg.ConflictPolicy), zl)

	return a, nil
}

func (a *app) openBackend(cfg *config.ClientConfig) (cache.Backend, error) {
	switch cfg.CacheDriver {
	case "memory":
		return cache.NewMemoryBackend(), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.CacheDSN)
		if err != nil {
			return nil, fmt.Errorf("invalid redis cache DSN: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		return cache.NewRedisBackend(client, "planner:"), nil
	}

	// "fs" keeps the documents in a local directory, "couch" in a CouchDB.
	driver := cfg.CacheDriver
	if driver == "fs" {
		if err := os.MkdirAll(cfg.CacheDSN, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	client, err := kivik.New(driver, cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", driver, err)
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewCouchBackend(client, cfg.CacheDB), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Debug("close failed", zap.Error(err))
		}
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: planner <command> [flags] [args]

commands:
  register -username U -email E -password P [-major M] [-graduation Y]
  login -email E -password P
  refresh [refresh-token]
  whoami
  profile set [-username U] [-email E] [-major M] [-graduation Y]
  prefs show [-o text|json|yaml]
  prefs set [-max-credits N] [-departments a,b] [-times a,b] [-completed a,b]
            [-avoid-early[=false]] [-online[=false]] [-f prefs.yaml]
  courses
  check <course>...
  schedules
  schedule show <id>
  schedule week <id>
  schedule update <id> <course>... [-force]
  schedule add <id> <course> [-force]
  schedule remove <id> <course> [-force]
  schedule delete <id>
  schedule generate -semester S -year Y [-max-credits N]

courses are given by id or code. The API token comes from PLANNER_API_TOKEN, the
refresh token from PLANNER_REFRESH_TOKEN.
`)
}
