package serverd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/hcs-server/internal/changelog"
	"github.com/tonimelisma/hcs-server/internal/config"
	"github.com/tonimelisma/hcs-server/internal/content"
	"github.com/tonimelisma/hcs-server/internal/protocol"
	"github.com/tonimelisma/hcs-server/internal/session"
)

// Server binds the TCP listener and spawns one Session per accepted
// connection, fanned out through an errgroup.Group so graceful shutdown can
// wait for every in-flight session to drain (spec §5).
type Server struct {
	cfg       *config.Config
	changelog changelog.Store
	content   *content.Store
	logger    *slog.Logger
	pacing    time.Duration
}

// New builds a Server from an already-opened change-log store and content
// store.
func New(cfg *config.Config, store changelog.Store, contentStore *content.Store, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		changelog: store,
		content:   contentStore,
		logger:    logger,
		pacing:    time.Duration(cfg.SyncDownPacingMS) * time.Millisecond,
	}
}

// Run binds the configured TCP address and serves connections until ctx is
// canceled, then waits for in-flight sessions to finish before returning.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.TCP.Addr)
	if err != nil {
		return fmt.Errorf("serverd: binding %s: %w", s.cfg.TCP.Addr, err)
	}

	s.logger.Info("listening", slog.String("addr", s.cfg.TCP.Addr))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-groupCtx.Done()

		return listener.Close()
	})

	group.Go(func() error {
		return s.acceptLoop(groupCtx, listener, group)
	})

	err = group.Wait()
	if err != nil && errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener, group *errgroup.Group) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("serverd: accepting connection: %w", err)
		}

		group.Go(func() error {
			sess := session.New(protocol.NewTransport(conn), s.changelog, s.content, s.pacing, s.logger)

			if err := sess.Run(ctx); err != nil {
				s.logger.Warn("session ended with error", slog.String("error", err.Error()))
			}

			return nil
		})
	}
}
