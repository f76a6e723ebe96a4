package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/hcs-server/internal/protocol"
)

// syncUp implements C7: accept a batch of changes pushed by the client,
// applying each to the content store and change log in turn (spec §4.7).
func (s *Session) syncUp(ctx context.Context, clientVersion uint64, numChanges uint32) error {
	sv, err := s.changelog.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("session: fetching current version: %w", err)
	}

	if sv != clientVersion {
		s.logger.Info("stale client on sync-up, rejecting push",
			slog.Uint64("client_version", clientVersion), slog.Uint64("server_version", sv))

		return s.transport.WriteTransmission(protocol.ServerVersion(sv))
	}

	if err := s.transport.WriteTransmission(protocol.Proceed()); err != nil {
		return fmt.Errorf("session: sending proceed: %w", err)
	}

	for i := uint32(0); i < numChanges; i++ {
		tr, err := s.transport.ReadTransmission()
		if err != nil {
			return fmt.Errorf("session: reading change event %d/%d: %w", i+1, numChanges, err)
		}

		if tr.Kind != protocol.KindChangeEvent {
			return fmt.Errorf("%w: expected ChangeEvent in sync-up, got kind %d", ErrProtocolViolation, tr.Kind)
		}

		if err := s.applyIncomingEvent(tr.Event); err != nil {
			return err
		}

		newVersion, err := s.changelog.Insert(ctx, tr.Event)
		if err != nil {
			return fmt.Errorf("session: recording change event: %w", err)
		}

		s.logger.Debug("applied sync-up event",
			slog.Int("index", int(i)+1), slog.Int("total", int(numChanges)), slog.Uint64("new_version", newVersion))

		if err := s.transport.WriteTransmission(protocol.ServerVersion(newVersion)); err != nil {
			return fmt.Errorf("session: acknowledging change event: %w", err)
		}
	}

	return nil
}

// applyIncomingEvent applies a single change event to the content store.
// Leniency (already-exists / missing-source) is handled inside the content
// package. The errors returned here are ErrUnimplemented for UndoDelete,
// ErrProtocolViolation for a category/kind pair with no handler, a
// transport failure while reading a file body, and a content-store
// rejection of a path that escapes the storage root — filesystem write
// failures are logged and swallowed so the event is still recorded (spec §4.3's "event is NOT considered applied" note
// refers to the change-log insert, not the filesystem step).
func (s *Session) applyIncomingEvent(e protocol.ChangeEvent) error {
	if e.Kind == protocol.EventUndoDelete {
		return fmt.Errorf("%w: UndoDelete", ErrUnimplemented)
	}

	if e.HasBody() {
		body, err := s.readBody(e.Size)
		if err != nil {
			return err
		}

		return s.content.CreateFile(e.Path, body, e.Kind == protocol.EventModify)
	}

	switch {
	case e.Category == protocol.CategoryFile && e.Kind == protocol.EventDelete:
		return s.content.DeleteFile(e.Path)
	case e.Category == protocol.CategoryFile && e.Kind == protocol.EventMove:
		return s.content.MoveFile(e.Path, e.ToPath)
	case e.Category == protocol.CategoryDirectory && e.Kind == protocol.EventCreate:
		return s.content.CreateDirectory(e.Path)
	case e.Category == protocol.CategoryDirectory && e.Kind == protocol.EventDelete:
		return s.content.DeleteDirectory(e.Path)
	case e.Category == protocol.CategoryDirectory && e.Kind == protocol.EventMove:
		return s.content.MoveDirectory(e.Path, e.ToPath)
	default:
		return fmt.Errorf("%w: unhandled change event category=%d kind=%d", ErrProtocolViolation, e.Category, e.Kind)
	}
}

// readBody reads exactly CalculateNumPackets(size) framed chunks and
// concatenates them into a single buffer, per §4.1's packet-count contract.
func (s *Session) readBody(size uint64) ([]byte, error) {
	numPackets := protocol.CalculateNumPackets(size)

	var buf bytes.Buffer

	for i := uint64(0); i < numPackets; i++ {
		chunk, err := s.transport.ReadChunk()
		if err != nil {
			return nil, fmt.Errorf("session: reading body packet %d/%d: %w", i+1, numPackets, err)
		}

		buf.Write(chunk)
	}

	return buf.Bytes(), nil
}
