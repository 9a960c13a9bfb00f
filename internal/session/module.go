package session

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/api"
	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/config"
	"github.com/beingharisali/martchat/internal/directory"
	"github.com/beingharisali/martchat/internal/lock"
	"github.com/beingharisali/martchat/internal/logging"
	"github.com/beingharisali/martchat/internal/messagelog"
	"github.com/beingharisali/martchat/internal/model"
	"github.com/beingharisali/martchat/internal/status"
	intsync "github.com/beingharisali/martchat/internal/sync"
	"github.com/beingharisali/martchat/internal/transport"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for a chat session, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("session",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideProfile,
			provideBus,
			provideStateMachine,
			provideLock,
			provideAPIClient,
			provideIdentity,
			provideTransport,
			provideDirectory,
			provideMessageLog,
			provideSyncEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	// No console output: the TUI owns the terminal.
	return logging.New(LogPath(p.Profile), p.Profile, false)
}

func provideProfile(p Params) (*config.Profile, error) {
	return config.LoadProfile(ProfilePath(p.Profile))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideAPIClient(prof *config.Profile, logger *zap.Logger) (*api.Client, error) {
	return api.New(prof.APIURL, prof.Token, logger)
}

// provideIdentity resolves the user behind the configured token. The whole
// session hangs off this identity, so a dead token fails startup here.
func provideIdentity(client *api.Client, logger *zap.Logger) (model.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := client.Profile(ctx)
	if err != nil {
		return model.User{}, err
	}
	logger.Info("signed in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return *user, nil
}

func provideTransport(prof *config.Profile, user model.User, b *bus.Bus, logger *zap.Logger) *transport.Client {
	return transport.New(prof.SocketURL, prof.Token, user, b, logger)
}

func provideDirectory(client *api.Client, t *transport.Client, machine *status.Machine, b *bus.Bus, user model.User, logger *zap.Logger) *directory.Store {
	return directory.NewStore(client, t, machine, b, user, logger)
}

func provideMessageLog(client *api.Client, t *transport.Client, b *bus.Bus, logger *zap.Logger) *messagelog.Log {
	return messagelog.New(client, t, b, logger)
}

func provideSyncEngine(dir *directory.Store, log *messagelog.Log, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(dir, log, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, t *transport.Client, engine *intsync.Engine, dir *directory.Store, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Engine first, so nothing published on connect is missed.
			engine.Start(context.Background())

			// Connect retries internally; a server that is down at startup
			// only delays the live feed, never the session.
			t.Connect(context.Background())

			// Initial chat list fetch in the background; the UI redraws on
			// the resulting bus event.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := dir.Load(ctx); err != nil {
					logger.Error("initial chat list load failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			t.Disconnect()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("session stopped")
			return nil
		},
	})
}
