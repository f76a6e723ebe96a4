package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// BufferSize is the maximum payload size of a single frame and the packet
// size used when streaming file bodies (§4.1). It is also the chunk size
// CalculateNumPackets divides by, so sender and receiver always agree on
// how many packets a file body spans.
const BufferSize = 64 * 1024

// maxFrameSize bounds how large a single frame's length prefix may claim,
// protecting the reader from allocating on a corrupt or hostile prefix.
// File bodies never exceed BufferSize per frame; non-body transmissions are
// always far smaller.
const maxFrameSize = 16 * 1024 * 1024

// CalculateNumPackets returns ceil(size / BufferSize), the number of
// BufferSize-sized packets a file body of the given size is split into.
// Sender and receiver MUST use this identically so packet counts agree.
func CalculateNumPackets(size uint64) uint64 {
	if size == 0 {
		return 0
	}

	return (size + BufferSize - 1) / BufferSize
}

// Transport is a length-prefixed framing layer over a net.Conn. Every
// ReadChunk/WriteChunk call reads or writes exactly one complete frame.
// Both operations may block, and both fail hard on any I/O error —
// transport errors are always fatal to the owning session (§7 class 1).
type Transport struct {
	conn net.Conn
}

// NewTransport wraps conn in a Transport.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the address of the peer, for logging.
func (t *Transport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// ReadChunk reads one complete length-prefixed frame and returns its
// payload.
func (t *Transport) ReadChunk() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(t.conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("protocol: reading frame length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("protocol: frame length %d exceeds maximum %d", n, maxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(t.conn, payload); err != nil {
		return nil, fmt.Errorf("protocol: reading frame payload: %w", err)
	}

	return payload, nil
}

// WriteChunk sends payload as one complete length-prefixed frame.
func (t *Transport) WriteChunk(payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := t.conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: writing frame length: %w", err)
	}

	if _, err := t.conn.Write(payload); err != nil {
		return fmt.Errorf("protocol: writing frame payload: %w", err)
	}

	return nil
}

// ReadTransmission reads one frame and decodes it as a Transmission.
func (t *Transport) ReadTransmission() (Transmission, error) {
	chunk, err := t.ReadChunk()
	if err != nil {
		return Transmission{}, err
	}

	tr, err := Decode(chunk)
	if err != nil {
		return Transmission{}, err
	}

	return tr, nil
}

// WriteTransmission encodes and sends a Transmission as one frame.
func (t *Transport) WriteTransmission(tr Transmission) error {
	payload, err := Encode(tr)
	if err != nil {
		return err
	}

	return t.WriteChunk(payload)
}
