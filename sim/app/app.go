// Package app assembles the simulator from its parts with fx.
package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"clint/device/pic"
	"clint/sim/board"
	"clint/sim/config"
	"clint/sim/logging"
	"clint/sim/metrics"
	"clint/sim/server"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Module returns the fx options running a simulator for cfg. Log records are
// mirrored to console.
func Module(cfg config.Config, console io.Writer) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			func(cfg config.Config) (*zap.Logger, error) {
				return logging.New(cfg.Log, console)
			},
			metrics.New,
			newController,
			newBoard,
			newRouter,
			newServer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Hooks run in order on start and in reverse on stop, so the board
		// outlives the control surface.
		fx.Invoke(registerBoard, registerServer),
	)
}

func newController(cfg config.Config, m *metrics.Metrics) (*pic.Controller, error) {
	return pic.New(cfg.Lines, board.Vector, pic.WithObserver(m))
}

func newBoard(cfg config.Config, log *zap.Logger, ctrl *pic.Controller, m *metrics.Metrics) (*board.Board, error) {
	return board.New(cfg, log.Named("board"), &board.Handlers, ctrl, m)
}

func newRouter(b *board.Board, m *metrics.Metrics, log *zap.Logger) http.Handler {
	return server.NewRouter(b, m.Handler(), log.Named("http"))
}

// Server is the HTTP server of the control surface.
type Server struct {
	log  *zap.Logger
	addr string
	srv  *http.Server
	ln   net.Listener
}

func newServer(cfg config.Config, h http.Handler, log *zap.Logger) *Server {
	return &Server{
		log:  log,
		addr: cfg.Listen,
		srv: &http.Server{
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Addr returns the address the server listens on. It is only valid once the
// application started.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func registerBoard(lc fx.Lifecycle, b *board.Board, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return b.Start()
		},
		OnStop: func(context.Context) error {
			b.Stop()
			_ = log.Sync()
			return nil
		},
	})
}

func registerServer(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", s.addr)
			if err != nil {
				return err
			}
			s.ln = ln

			s.log.Info("server starting", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("server stopping")
			return s.srv.Shutdown(ctx)
		},
	})
}
