// Package chatcache assembles the chat SDK: a SQLite-backed local cache
// of messages and outstanding operations, fronted by the high-level chat
// extension. Consumers provide a remote.API implementation and receive a
// wired *chat.Extension.
package chatcache

import (
	"context"

	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/cache"
	"github.com/pserra/chatcache/chat"
	"github.com/pserra/chatcache/internal/cachedir"
	"github.com/pserra/chatcache/internal/lock"
	"github.com/pserra/chatcache/internal/logging"
	"github.com/pserra/chatcache/remote"
	"github.com/pserra/chatcache/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved cache configuration passed to the fx module.
type Params struct {
	// CacheName selects the cache directory under ~/.chatcache/caches.
	// Empty resolves through config.toml, falling back to "main".
	CacheName string

	// UserID is the authenticated user the extension acts for.
	UserID string

	// InMemory backs the cache with an in-memory database and skips the
	// cache directory, lock file and log file entirely.
	InMemory bool

	// DBPath and LogPath override the default cache-directory layout.
	DBPath  string
	LogPath string
}

// Module returns the fx module for the SDK, composing all providers and
// lifecycle hooks. The consumer must provide a remote.API.
func Module(p Params) fx.Option {
	p.CacheName = cachedir.Resolve(p.CacheName)
	return fx.Module("chatcache",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideController,
			provideExtension,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.InMemory {
		return zap.NewNop(), nil
	}
	logPath := p.LogPath
	if logPath == "" {
		logPath = cachedir.LogPath(p.CacheName)
	}
	return logging.New(logPath, p.CacheName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if p.InMemory {
		return nil, nil
	}
	if err := cachedir.EnsureDir(p.CacheName); err != nil {
		return nil, err
	}
	logger.Info("acquiring cache lock", zap.String("cache", p.CacheName))
	l, err := lock.Acquire(cachedir.Dir(p.CacheName))
	if err != nil {
		return nil, err
	}
	logger.Info("cache lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.Store, error) {
	var (
		db  *store.Store
		err error
	)
	if p.InMemory {
		db, err = store.OpenInMemory(p.CacheName)
	} else {
		dbPath := p.DBPath
		if dbPath == "" {
			dbPath = cachedir.DBPath(p.CacheName)
		}
		db, err = store.Open(dbPath)
	}
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	return db, nil
}

func provideController(db *store.Store, b *bus.Bus, logger *zap.Logger) *cache.Controller {
	return cache.NewController(db, b, logger)
}

func provideExtension(p Params, api remote.API, c *cache.Controller, b *bus.Bus, logger *zap.Logger) *chat.Extension {
	return chat.New(api, c, b, p.UserID, logger)
}

func registerLifecycle(lc fx.Lifecycle, c *cache.Controller, db *store.Store, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start the ingest loop (subscribes to record.* bus events).
			c.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			c.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("chat cache stopped")
			return nil
		},
	})
}
