// Package session implements the per-connection protocol state machine
// (C6) and the sync-up (C7) and sync-down (C8) handlers it dispatches to.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/hcs-server/internal/changelog"
	"github.com/tonimelisma/hcs-server/internal/content"
	"github.com/tonimelisma/hcs-server/internal/protocol"
)

// ProtocolVersion is the greeting version this server accepts. The wire
// protocol reserves room for version negotiation (spec §4.6) but this
// server does not yet reject mismatched versions.
const ProtocolVersion = 1

// ErrProtocolViolation marks a session-terminating protocol error: an
// unexpected transmission kind at a point in the state machine that only
// accepts specific kinds.
var ErrProtocolViolation = errors.New("session: protocol violation")

// ErrUnimplemented marks a transmission kind that is valid on the wire but
// has no server-side behavior (UndoDelete, Other).
var ErrUnimplemented = errors.New("session: unimplemented transmission")

// Session owns one accepted connection's transport and drives it through
// AwaitGreeting -> PayloadLoop -> Terminated (spec §4.6).
type Session struct {
	id        string
	transport *protocol.Transport
	changelog changelog.Store
	content   *content.Store
	pacing    time.Duration
	logger    *slog.Logger
}

// New builds a Session for one accepted connection.
func New(transport *protocol.Transport, store changelog.Store, contentStore *content.Store, pacing time.Duration, logger *slog.Logger) *Session {
	id := uuid.New().String()

	return &Session{
		id:        id,
		transport: transport,
		changelog: store,
		content:   contentStore,
		pacing:    pacing,
		logger:    logger.With(slog.String("session", id), slog.String("remote", transport.RemoteAddr().String())),
	}
}

// Run drives the session to completion. It always closes the transport
// before returning. A nil error means the client sent EndConnection; any
// other error is a transport, codec, protocol, or storage failure and is
// always fatal to the session (spec §7).
func (s *Session) Run(ctx context.Context) error {
	defer s.transport.Close()

	if err := s.awaitGreeting(); err != nil {
		return err
	}

	s.logger.Info("entering payload loop")

	for {
		tr, err := s.transport.ReadTransmission()
		if err != nil {
			return fmt.Errorf("session: reading transmission: %w", err)
		}

		done, err := s.dispatch(ctx, tr)
		if err != nil {
			return err
		}

		if done {
			s.logger.Info("session terminated by client")

			return nil
		}
	}
}

func (s *Session) awaitGreeting() error {
	tr, err := s.transport.ReadTransmission()
	if err != nil {
		return fmt.Errorf("session: reading greeting: %w", err)
	}

	if tr.Kind != protocol.KindGreeting {
		return fmt.Errorf("%w: expected Greeting, got kind %d", ErrProtocolViolation, tr.Kind)
	}

	s.logger.Info("received greeting", slog.Uint64("client_greeting_version", uint64(tr.GreetingVersion)))

	return s.transport.WriteTransmission(protocol.Proceed())
}

func (s *Session) dispatch(ctx context.Context, tr protocol.Transmission) (bool, error) {
	switch tr.Kind {
	case protocol.KindSyncClientToServer:
		return false, s.syncUp(ctx, tr.ClientVersion, tr.NumChanges)
	case protocol.KindSyncServerToClient:
		return false, s.syncDown(ctx, tr.ClientVersion)
	case protocol.KindServerVersionRequest:
		return false, s.handleServerVersionRequest(ctx)
	case protocol.KindEndConnection:
		return true, nil
	case protocol.KindOther:
		return true, fmt.Errorf("%w: Other", ErrUnimplemented)
	default:
		return true, fmt.Errorf("%w: unexpected kind %d in payload loop", ErrProtocolViolation, tr.Kind)
	}
}

func (s *Session) handleServerVersionRequest(ctx context.Context) error {
	sv, err := s.changelog.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("session: fetching current version: %w", err)
	}

	return s.transport.WriteTransmission(protocol.ServerVersion(sv))
}
