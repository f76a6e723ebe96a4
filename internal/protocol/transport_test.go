package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateNumPackets(t *testing.T) {
	assert.Equal(t, uint64(0), CalculateNumPackets(0))
	assert.Equal(t, uint64(1), CalculateNumPackets(1))
	assert.Equal(t, uint64(1), CalculateNumPackets(BufferSize))
	assert.Equal(t, uint64(2), CalculateNumPackets(BufferSize+1))
	assert.Equal(t, uint64(3), CalculateNumPackets(2*BufferSize+1))
}

func TestTransport_ChunkRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	st := NewTransport(server)
	ct := NewTransport(client)

	payload := []byte("hello world")

	done := make(chan error, 1)
	go func() {
		done <- ct.WriteChunk(payload)
	}()

	got, err := st.ReadChunk()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, payload, got)
}

func TestTransport_TransmissionRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	st := NewTransport(server)
	ct := NewTransport(client)

	tr := SyncServerToClient(11)

	done := make(chan error, 1)
	go func() {
		done <- ct.WriteTransmission(tr)
	}()

	got, err := st.ReadTransmission()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, tr, got)
}

func TestTransport_ReadChunkFailsOnClosedConn(t *testing.T) {
	server, client := net.Pipe()
	client.Close()

	st := NewTransport(server)
	_, err := st.ReadChunk()
	require.Error(t, err)
}
