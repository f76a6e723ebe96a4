// Package protocol implements the framed TCP transport, the binary wire
// codec, and the Transmission/ChangeEvent types exchanged between client
// and server.
package protocol

// Kind discriminates the variants of a Transmission. It is always the
// first byte of a Transmission's encoding, so a decoder can reject an
// unrecognized tag without attempting to interpret the rest of the frame.
type Kind byte

// Transmission variants, matching the wire protocol's tagged union.
const (
	KindGreeting Kind = iota
	KindProceed
	KindSkipCurrent
	KindTransactionComplete
	KindEndConnection
	KindServerVersion
	KindSyncClientToServer
	KindSyncServerToClient
	KindChangeEvent
	KindServerVersionRequest
	KindOther
	KindError
)

// ErrorKind enumerates the reasons a server can give for an Error
// transmission. The kinds can be encoded and decoded, but this server never
// sends an Error transmission: the greeting is always answered with Proceed,
// and other failures simply close the connection (see §7 of the protocol
// design).
type ErrorKind byte

const (
	ErrorUnspecified ErrorKind = iota
	ErrorIncompatibleVersion
)

// Category distinguishes file events from directory events.
type Category byte

const (
	CategoryFile Category = iota
	CategoryDirectory
)

// EventKind distinguishes the five change-event operations. UndoDelete is
// carried on the wire but has no server-side implementation (spec §9);
// decoding one succeeds, but the session layer always rejects it with
// ErrUnimplemented, ending the session.
type EventKind byte

const (
	EventCreate EventKind = iota
	EventDelete
	EventModify
	EventMove
	EventUndoDelete
)

// ChangeEvent is the flat representation of the wire protocol's
// File{Create,Delete,Modify,Move,UndoDelete} / Directory{...} payloads.
// Only the fields relevant to Category+Kind are meaningful:
//
//	Create/Modify (file):  Path, Size
//	Delete:                Path
//	Move:                  Path (from), ToPath (to)
//	UndoDelete:            Path
type ChangeEvent struct {
	Category Category
	Kind     EventKind
	Path     string
	ToPath   string
	Size     uint64
}

// FileCreate builds a File/Create change event.
func FileCreate(path string, size uint64) ChangeEvent {
	return ChangeEvent{Category: CategoryFile, Kind: EventCreate, Path: path, Size: size}
}

// FileModify builds a File/Modify change event.
func FileModify(path string, size uint64) ChangeEvent {
	return ChangeEvent{Category: CategoryFile, Kind: EventModify, Path: path, Size: size}
}

// FileDelete builds a File/Delete change event.
func FileDelete(path string) ChangeEvent {
	return ChangeEvent{Category: CategoryFile, Kind: EventDelete, Path: path}
}

// FileMove builds a File/Move change event.
func FileMove(from, to string) ChangeEvent {
	return ChangeEvent{Category: CategoryFile, Kind: EventMove, Path: from, ToPath: to}
}

// DirectoryCreate builds a Directory/Create change event.
func DirectoryCreate(path string) ChangeEvent {
	return ChangeEvent{Category: CategoryDirectory, Kind: EventCreate, Path: path}
}

// DirectoryDelete builds a Directory/Delete change event.
func DirectoryDelete(path string) ChangeEvent {
	return ChangeEvent{Category: CategoryDirectory, Kind: EventDelete, Path: path}
}

// DirectoryMove builds a Directory/Move change event.
func DirectoryMove(from, to string) ChangeEvent {
	return ChangeEvent{Category: CategoryDirectory, Kind: EventMove, Path: from, ToPath: to}
}

// HasBody reports whether the event's wire transmission is followed by
// file-content packets (§4.1, §4.7, §4.8).
func (e ChangeEvent) HasBody() bool {
	return e.Category == CategoryFile && (e.Kind == EventCreate || e.Kind == EventModify)
}

// Transmission is the top-level wire message. Only the fields relevant to
// Kind are meaningful; the per-kind constructors below (Greeting, Proceed,
// ServerVersion, ...) set exactly those fields.
type Transmission struct {
	Kind Kind

	GreetingVersion uint32
	ServerVersion   uint64
	ClientVersion   uint64
	NumChanges      uint32
	Event           ChangeEvent
	ErrorKind       ErrorKind
	Opaque          []byte
}

func Greeting(version uint32) Transmission {
	return Transmission{Kind: KindGreeting, GreetingVersion: version}
}

func Proceed() Transmission { return Transmission{Kind: KindProceed} }

func SkipCurrent() Transmission { return Transmission{Kind: KindSkipCurrent} }

func TransactionComplete() Transmission { return Transmission{Kind: KindTransactionComplete} }

func EndConnection() Transmission { return Transmission{Kind: KindEndConnection} }

func ServerVersion(v uint64) Transmission {
	return Transmission{Kind: KindServerVersion, ServerVersion: v}
}

func SyncClientToServer(clientVersion uint64, numChanges uint32) Transmission {
	return Transmission{Kind: KindSyncClientToServer, ClientVersion: clientVersion, NumChanges: numChanges}
}

func SyncServerToClient(clientVersion uint64) Transmission {
	return Transmission{Kind: KindSyncServerToClient, ClientVersion: clientVersion}
}

func ChangeEventMsg(e ChangeEvent) Transmission {
	return Transmission{Kind: KindChangeEvent, Event: e}
}

func ServerVersionRequest() Transmission { return Transmission{Kind: KindServerVersionRequest} }

func Error(kind ErrorKind) Transmission {
	return Transmission{Kind: KindError, ErrorKind: kind}
}
