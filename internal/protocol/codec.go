package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ErrUnknownTag is returned by Decode when the leading discriminant byte
// does not match any known Kind. The codec must reject unrecognized tags
// rather than silently skip them (spec §4.2, §9).
var ErrUnknownTag = fmt.Errorf("protocol: unknown transmission tag")

// Encode serializes a Transmission into a deterministic byte sequence.
// Encoding is total over every Transmission value this package can
// construct.
func Encode(t Transmission) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(byte(t.Kind))

	switch t.Kind {
	case KindGreeting:
		writeUint32(&buf, t.GreetingVersion)
	case KindProceed, KindSkipCurrent, KindTransactionComplete, KindEndConnection, KindServerVersionRequest:
		// no payload
	case KindServerVersion:
		writeUint64(&buf, t.ServerVersion)
	case KindSyncClientToServer:
		writeUint64(&buf, t.ClientVersion)
		writeUint32(&buf, t.NumChanges)
	case KindSyncServerToClient:
		writeUint64(&buf, t.ClientVersion)
	case KindChangeEvent:
		if err := encodeChangeEvent(&buf, t.Event); err != nil {
			return nil, fmt.Errorf("protocol: encoding change event: %w", err)
		}
	case KindError:
		buf.WriteByte(byte(t.ErrorKind))
	case KindOther:
		writeBytes(&buf, t.Opaque)
	default:
		return nil, fmt.Errorf("protocol: encoding unknown kind %d", t.Kind)
	}

	return buf.Bytes(), nil
}

// Decode parses a byte chunk into a Transmission. It fails on any
// unrecognized tag byte or truncated payload.
func Decode(data []byte) (Transmission, error) {
	r := bytes.NewReader(data)

	tagByte, err := r.ReadByte()
	if err != nil {
		return Transmission{}, fmt.Errorf("protocol: reading tag: %w", err)
	}

	kind := Kind(tagByte)

	var t Transmission
	t.Kind = kind

	switch kind {
	case KindGreeting:
		v, err := readUint32(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding greeting: %w", err)
		}

		t.GreetingVersion = v
	case KindProceed, KindSkipCurrent, KindTransactionComplete, KindEndConnection, KindServerVersionRequest:
		// no payload
	case KindServerVersion:
		v, err := readUint64(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding server version: %w", err)
		}

		t.ServerVersion = v
	case KindSyncClientToServer:
		cv, err := readUint64(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding sync client-to-server: %w", err)
		}

		n, err := readUint32(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding sync client-to-server: %w", err)
		}

		t.ClientVersion = cv
		t.NumChanges = n
	case KindSyncServerToClient:
		cv, err := readUint64(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding sync server-to-client: %w", err)
		}

		t.ClientVersion = cv
	case KindChangeEvent:
		e, err := decodeChangeEvent(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding change event: %w", err)
		}

		t.Event = e
	case KindError:
		b, err := r.ReadByte()
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding error kind: %w", err)
		}

		t.ErrorKind = ErrorKind(b)
	case KindOther:
		opaque, err := readBytes(r)
		if err != nil {
			return Transmission{}, fmt.Errorf("protocol: decoding opaque payload: %w", err)
		}

		t.Opaque = opaque
	default:
		return Transmission{}, fmt.Errorf("%w: %d", ErrUnknownTag, tagByte)
	}

	return t, nil
}

func encodeChangeEvent(buf *bytes.Buffer, e ChangeEvent) error {
	buf.WriteByte(byte(e.Category))
	buf.WriteByte(byte(e.Kind))

	switch e.Kind {
	case EventCreate, EventModify:
		writeString(buf, e.Path)
		writeUint64(buf, e.Size)
	case EventDelete, EventUndoDelete:
		writeString(buf, e.Path)
	case EventMove:
		writeString(buf, e.Path)
		writeString(buf, e.ToPath)
	default:
		return fmt.Errorf("unknown event kind %d", e.Kind)
	}

	return nil
}

func decodeChangeEvent(r *bytes.Reader) (ChangeEvent, error) {
	catByte, err := r.ReadByte()
	if err != nil {
		return ChangeEvent{}, err
	}

	kindByte, err := r.ReadByte()
	if err != nil {
		return ChangeEvent{}, err
	}

	e := ChangeEvent{Category: Category(catByte), Kind: EventKind(kindByte)}

	switch e.Kind {
	case EventCreate, EventModify:
		path, err := readString(r)
		if err != nil {
			return ChangeEvent{}, err
		}

		size, err := readUint64(r)
		if err != nil {
			return ChangeEvent{}, err
		}

		e.Path = path
		e.Size = size
	case EventDelete, EventUndoDelete:
		path, err := readString(r)
		if err != nil {
			return ChangeEvent{}, err
		}

		e.Path = path
	case EventMove:
		from, err := readString(r)
		if err != nil {
			return ChangeEvent{}, err
		}

		to, err := readString(r)
		if err != nil {
			return ChangeEvent{}, err
		}

		e.Path = from
		e.ToPath = to
	default:
		return ChangeEvent{}, fmt.Errorf("unknown event kind %d", kindByte)
	}

	return e, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}

	return b, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil {
		return n, err
	}

	if n != len(b) {
		return n, fmt.Errorf("short read: got %d want %d", n, len(b))
	}

	return n, nil
}
