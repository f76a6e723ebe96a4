package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tonimelisma/hcs-server/internal/optimizer"
	"github.com/tonimelisma/hcs-server/internal/protocol"
)

// syncDown implements C8: compute the client's delta, optimize it, and
// stream it (and any file bodies) to the client (spec §4.8).
func (s *Session) syncDown(ctx context.Context, clientVersion uint64) error {
	sv, err := s.changelog.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("session: fetching current version: %w", err)
	}

	records, err := s.changelog.ChangesIn(ctx, clientVersion, sv)
	if err != nil {
		return fmt.Errorf("session: fetching changes: %w", err)
	}

	opt := optimizer.Optimize(records)

	if len(opt) == 0 {
		if err := s.transport.WriteTransmission(protocol.ServerVersion(sv)); err != nil {
			return fmt.Errorf("session: sending server version on empty delta: %w", err)
		}

		return s.transport.WriteTransmission(protocol.TransactionComplete())
	}

	for i, rec := range opt {
		s.pace()

		if err := s.sendEvent(rec.Event); err != nil {
			s.logger.Warn("failed to transmit change event, skipping",
				slog.String("path", rec.Event.Path), slog.String("error", err.Error()))

			if skipErr := s.transport.WriteTransmission(protocol.SkipCurrent()); skipErr != nil {
				return fmt.Errorf("session: sending skip-current: %w", skipErr)
			}
		}

		s.pace()

		ackVersion := rec.Version
		if i == len(opt)-1 {
			ackVersion = sv
		}

		if err := s.transport.WriteTransmission(protocol.ServerVersion(ackVersion)); err != nil {
			return fmt.Errorf("session: acknowledging sync-down progress: %w", err)
		}
	}

	return s.transport.WriteTransmission(protocol.TransactionComplete())
}

func (s *Session) pace() {
	if s.pacing > 0 {
		time.Sleep(s.pacing)
	}
}

// sendEvent transmits one change event, restating the actual file size for
// body-bearing events before streaming the body (spec §4.8.3a). An error
// here is an application-layer failure (e.g. the file vanished locally
// since the change log recorded it); the caller converts it to SkipCurrent
// rather than terminating the session.
func (s *Session) sendEvent(e protocol.ChangeEvent) error {
	if !e.HasBody() {
		return s.transport.WriteTransmission(protocol.ChangeEventMsg(e))
	}

	f, size, err := s.content.OpenFile(e.Path)
	if err != nil {
		return fmt.Errorf("session: opening file for sync-down: %w", err)
	}
	defer f.Close()

	e.Size = uint64(size)

	if err := s.transport.WriteTransmission(protocol.ChangeEventMsg(e)); err != nil {
		return fmt.Errorf("session: transmitting change event: %w", err)
	}

	return s.streamBody(f, e.Size)
}

func (s *Session) streamBody(r io.Reader, size uint64) error {
	numPackets := protocol.CalculateNumPackets(size)

	buf := make([]byte, protocol.BufferSize)

	for i := uint64(0); i < numPackets; i++ {
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return fmt.Errorf("session: reading file body packet %d/%d: %w", i+1, numPackets, err)
		}

		if err := s.transport.WriteChunk(buf[:n]); err != nil {
			return fmt.Errorf("session: writing file body packet %d/%d: %w", i+1, numPackets, err)
		}
	}

	return nil
}
