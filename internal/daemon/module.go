package daemon

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/bus"
	"github.com/tfreitas/roomsync/internal/config"
	"github.com/tfreitas/roomsync/internal/lock"
	"github.com/tfreitas/roomsync/internal/logging"
	"github.com/tfreitas/roomsync/internal/outbox"
	"github.com/tfreitas/roomsync/internal/session"
	"github.com/tfreitas/roomsync/internal/state"
	"github.com/tfreitas/roomsync/internal/status"
	"github.com/tfreitas/roomsync/internal/store"
	intsync "github.com/tfreitas/roomsync/internal/sync"
	"github.com/tfreitas/roomsync/internal/xmpp"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	// Transport overrides the gateway socket transport; used by tests.
	Transport xmpp.Transport
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideState,
			provideEngine,
			provideReconciler,
			provideRequests,
			provideTransport,
			provideHandler,
			provideSender,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		// First run: no config yet, everything defaults.
		return &config.Config{}
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
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
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideState() *state.Store {
	return state.NewStore()
}

func provideEngine(st *state.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(st, db, b, logger)
}

func provideReconciler(st *state.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(st, db, b, logger)
}

func provideRequests(p Params, cfg *config.Config, logger *zap.Logger) *xmpp.Requests {
	return xmpp.NewRequests(xmpp.Identity{
		UserJID:     p.ProfileName + "@" + cfg.ServiceDomain,
		DisplayName: cfg.DisplayName,
		AvatarURL:   cfg.AvatarURL,
	}, logger)
}

func provideTransport(p Params, logger *zap.Logger) xmpp.Transport {
	if p.Transport != nil {
		return p.Transport
	}
	return xmpp.NewSocketTransport(session.GatewaySocketPath(p.ProfileName), logger)
}

func provideHandler(
	p Params,
	cfg *config.Config,
	tr xmpp.Transport,
	req *xmpp.Requests,
	engine *intsync.Engine,
	rec *intsync.Reconciler,
	st *state.Store,
	db *store.DB,
	b *bus.Bus,
	machine *status.Machine,
	logger *zap.Logger,
) *xmpp.Handler {
	return xmpp.NewHandler(xmpp.HandlerParams{
		Transport:        tr,
		Requests:         req,
		Engine:           engine,
		Reconciler:       rec,
		State:            st,
		DB:               db,
		Bus:              b,
		Machine:          machine,
		Logger:           logger,
		ConferenceDomain: cfg.ConferenceDomain,
		DefaultRooms:     defaultRoomJIDs(cfg),
	})
}

// defaultRoomJIDs expands configured room handles into full JIDs on the
// conference domain. Entries already carrying a domain are kept as-is.
func defaultRoomJIDs(cfg *config.Config) []string {
	var jids []string
	for _, room := range cfg.DefaultRooms {
		if room == "" {
			continue
		}
		if !strings.Contains(room, "@") && cfg.ConferenceDomain != "" {
			room = room + "@" + cfg.ConferenceDomain
		}
		jids = append(jids, room)
	}
	return jids
}

func provideSender(db *store.DB, tr xmpp.Transport, req *xmpp.Requests, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, tr, req, b, logger)
}

func provideServer(cfg *config.Config, logger *zap.Logger) *Server {
	return NewServer(cfg.MetricsAddr, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	lk *lock.Lock,
	tr xmpp.Transport,
	handler *xmpp.Handler,
	engine *intsync.Engine,
	sender *outbox.Sender,
	machine *status.Machine,
	logger *zap.Logger,
) {
	runCtx, cancelRun := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Rebuild state from the cache before anything connects.
			if err := engine.WarmUp(); err != nil {
				return err
			}

			if err := srv.Start(); err != nil {
				return err
			}

			go handler.Run(runCtx)
			sender.Start(context.Background())

			_ = machine.Transition(status.Connecting)
			if st, ok := tr.(*xmpp.SocketTransport); ok {
				st.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelRun()
			sender.Stop()
			_ = tr.Close()
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
