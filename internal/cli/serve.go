package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bjaus/reflex"
	"github.com/bjaus/reflex/internal/counter"
	"github.com/bjaus/reflex/natscast"
	"github.com/bjaus/reflex/redisstore"
	"github.com/bjaus/reflex/wsconn"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr       string
	Redis      string
	NATS       string
	NATSPrefix string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reflex invocations",
		Long: `Serve the counter page and its reflexes.

Browsers connect to /cable over websockets. With --nats, invocations
published to <prefix>.in.<stream> are served too, and results are published
to <prefix>.out.<stream>. With --redis, sessions are kept in Redis instead of
in memory.

Example:
  reflexd serve --addr :8080
  reflexd serve --redis localhost:6379 --nats nats://localhost:4222`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.Redis, "redis", "", "Redis address for sessions (default: in memory)")
	cmd.Flags().StringVar(&opts.NATS, "nats", "", "NATS server URL (default: websockets only)")
	cmd.Flags().StringVar(&opts.NATSPrefix, "nats-prefix", natscast.DefaultPrefix, "NATS subject prefix")

	return cmd
}

// app is everything serve wires together, minus the listeners.
type app struct {
	cfg        reflex.Config
	log        *logrus.Logger
	sessions   reflex.SessionStore
	dispatcher *reflex.Dispatcher
	handler    http.Handler
}

func newApp(cfg reflex.Config, sessions reflex.SessionStore) (*app, error) {
	log := cfg.NewLogger()
	cfg.Logger = log

	page := counter.Page(sessions)

	routes := reflex.NewRouteTable(sessions)
	routes.Get("/", "PagesController", "index", page)

	reg := reflex.NewRegistry(cfg, reflex.WithControllers(routes))
	if err := counter.Register(reg); err != nil {
		return nil, fmt.Errorf("register counter: %w", err)
	}

	d := reflex.New(reg, cfg,
		reflex.WithOnSuccess(func(_ context.Context, req *reflex.Request, d time.Duration) {
			log.WithFields(logrus.Fields{
				"reflex_id": req.ID,
				"target":    req.Target,
				"method":    req.MethodName,
				"duration":  d,
			}).Debug("reflex succeeded")
		}),
		reflex.WithOnFailure(func(_ context.Context, req *reflex.Request, kind reflex.Kind, _ error, d time.Duration) {
			entry := log.WithFields(logrus.Fields{"kind": kind.String(), "duration": d})
			if req != nil {
				entry = entry.WithField("reflex_id", req.ID)
			}
			entry.Debug("reflex failed")
		}),
	)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/", page)
	r.Handle("/cable", wsconn.Handler(d, wsconn.Options{Logger: log}))

	return &app{cfg: cfg, log: log, sessions: sessions, dispatcher: d, handler: r}, nil
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := reflex.LoadConfig(opts.Config)
	if err != nil {
		return err
	}

	var sessions reflex.SessionStore = reflex.NewMemoryStore()
	if opts.Redis != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.Redis})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", opts.Redis, err)
		}
		sessions = redisstore.New(rdb, cfg.SessionTTL)
	}

	a, err := newApp(cfg, sessions)
	if err != nil {
		return err
	}

	if opts.NATS != "" {
		nc, err := nats.Connect(opts.NATS, nats.Name("reflexd"))
		if err != nil {
			return fmt.Errorf("connect to nats at %s: %w", opts.NATS, err)
		}
		defer nc.Close()

		srv, err := natscast.Serve(nc, opts.NATSPrefix, a.dispatcher)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	server := &http.Server{
		Addr:              opts.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.WithField("addr", opts.Addr).Info("reflexd listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.log.Info("reflexd shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
