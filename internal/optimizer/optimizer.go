// Package optimizer implements the event optimizer (C5): it collapses a
// version-ordered sequence of change-log records into a shorter equivalent
// sequence, per path, before sync-down streams it to a client.
package optimizer

import (
	"strings"

	"github.com/tonimelisma/hcs-server/internal/changelog"
	"github.com/tonimelisma/hcs-server/internal/protocol"
)

// pathKey identifies a per-path coalescing chain. Files and directories
// never share a chain even if they collide on name.
type pathKey struct {
	category protocol.Category
	path     string
}

// slot is one candidate surviving output record, mutated in place as later
// input events fold into it.
type slot struct {
	category protocol.Category
	kind     protocol.EventKind
	path     string // current path for Create/Modify/Delete; target for Move
	origin   string // Move only: the path this chain started from
	toPath   string // Move only: same as path, kept for clarity at output time
	size     uint64
	version  uint64
	alive    bool
}

// dropInterval records a directory whose Create and Delete both collapsed
// away within the window (rule 1 applied to directories): events strictly
// inside it, queued after its creation and no later than its deletion, are
// cancelled (spec's directory-delete cancellation rule).
type dropInterval struct {
	dir        string
	afterVer   uint64
	throughVer uint64
}

// Optimize collapses records into an equivalent, shorter sequence. The
// output retains, for each surviving event, the version of the LAST
// contributing input event.
func Optimize(records []changelog.Record) []changelog.Record {
	slots := make([]*slot, 0, len(records))
	index := make(map[pathKey]int)
	var drops []dropInterval

	get := func(cat protocol.Category, path string) (int, bool) {
		idx, ok := index[pathKey{cat, path}]

		return idx, ok
	}

	for _, rec := range records {
		e := rec.Event
		cat := e.Category

		switch e.Kind {
		case protocol.EventCreate, protocol.EventModify:
			if idx, ok := get(cat, e.Path); ok {
				s := slots[idx]
				switch s.kind {
				case protocol.EventCreate:
					// rule 2: Create then Modify (or a repeated Create) —
					// keep a single Create with the final size.
					s.size = e.Size
					s.version = rec.Version
				case protocol.EventModify:
					// rule 3: Modify then Modify — keep only the last.
					s.size = e.Size
					s.version = rec.Version
				default:
					// Delete-then-Create (rule 6) or Move-then-write: keep
					// both; start a fresh chain for this path.
					ns := &slot{category: cat, kind: e.Kind, path: e.Path, size: e.Size, version: rec.Version, alive: true}
					slots = append(slots, ns)
					index[pathKey{cat, e.Path}] = len(slots) - 1
				}

				continue
			}

			ns := &slot{category: cat, kind: e.Kind, path: e.Path, size: e.Size, version: rec.Version, alive: true}
			slots = append(slots, ns)
			index[pathKey{cat, e.Path}] = len(slots) - 1

		case protocol.EventDelete:
			if idx, ok := get(cat, e.Path); ok {
				s := slots[idx]
				switch s.kind {
				case protocol.EventCreate:
					// rule 1: Create then Delete — drop both, since the
					// object never existed before this window opened.
					if cat == protocol.CategoryDirectory {
						drops = append(drops, dropInterval{dir: s.path, afterVer: s.version, throughVer: rec.Version})
					}

					s.alive = false
					delete(index, pathKey{cat, e.Path})
				case protocol.EventModify:
					// Modify then Delete, with no Create in this window: the
					// path already existed on the client before the window
					// opened, so dropping both would leave it un-deleted.
					// Collapse to a single residual Delete instead.
					s.kind = protocol.EventDelete
					s.size = 0
					s.version = rec.Version
					delete(index, pathKey{cat, e.Path})
				case protocol.EventMove:
					// Move(origin->p) then Delete(p): the object that
					// started at origin is gone; collapse to a single
					// Delete at origin.
					s.kind = protocol.EventDelete
					s.path = s.origin
					s.toPath = ""
					s.version = rec.Version
					delete(index, pathKey{cat, e.Path})
				default:
					s.version = rec.Version
				}

				continue
			}

			ns := &slot{category: cat, kind: protocol.EventDelete, path: e.Path, version: rec.Version, alive: true}
			slots = append(slots, ns)
			index[pathKey{cat, e.Path}] = len(slots) - 1

		case protocol.EventMove:
			p, q := e.Path, e.ToPath

			if idx, ok := get(cat, p); ok {
				s := slots[idx]
				switch s.kind {
				case protocol.EventCreate, protocol.EventModify:
					// rule 4: Create/Modify then Move — rewrite at the new
					// path; drop the move.
					s.path = q
					s.version = rec.Version
					delete(index, pathKey{cat, p})
					index[pathKey{cat, q}] = idx
				case protocol.EventMove:
					// rule 5: Move(origin->p) then Move(p->q) — collapse
					// to Move(origin->q); if origin == q, drop both.
					delete(index, pathKey{cat, p})

					if s.origin == q {
						s.alive = false

						continue
					}

					s.toPath = q
					s.path = q
					s.version = rec.Version
					index[pathKey{cat, q}] = idx
				default:
					// Delete(p) then Move(p->q): not a valid input under
					// the protocol (p was already gone); treat as a fresh
					// move of whatever now occupies p.
					delete(index, pathKey{cat, p})
					ns := &slot{category: cat, kind: protocol.EventMove, path: q, origin: p, toPath: q, version: rec.Version, alive: true}
					slots = append(slots, ns)
					index[pathKey{cat, q}] = len(slots) - 1
				}

				continue
			}

			ns := &slot{category: cat, kind: protocol.EventMove, path: q, origin: p, toPath: q, version: rec.Version, alive: true}
			slots = append(slots, ns)
			index[pathKey{cat, q}] = len(slots) - 1

		default:
			// UndoDelete never reaches the optimizer: the session layer
			// rejects it before it is ever inserted into the change log.
		}
	}

	for _, s := range slots {
		if !s.alive {
			continue
		}

		if cancelledByDirectoryDrop(s, drops) {
			s.alive = false
		}
	}

	out := make([]changelog.Record, 0, len(slots))

	for _, s := range slots {
		if !s.alive {
			continue
		}

		// A Move slot's path is its target; on the wire Path is the source.
		path := s.path
		if s.kind == protocol.EventMove {
			path = s.origin
		}

		out = append(out, changelog.Record{
			Version: s.version,
			Event: protocol.ChangeEvent{
				Category: s.category,
				Kind:     s.kind,
				Path:     path,
				ToPath:   s.toPath,
				Size:     s.size,
			},
		})
	}

	sortByVersion(out)

	return out
}

func cancelledByDirectoryDrop(s *slot, drops []dropInterval) bool {
	for _, d := range drops {
		if s.version <= d.afterVer || s.version > d.throughVer {
			continue
		}

		if strictlyInside(s.path, d.dir) || (s.kind == protocol.EventMove && strictlyInside(s.origin, d.dir)) {
			return true
		}
	}

	return false
}

func strictlyInside(path, dir string) bool {
	return strings.HasPrefix(path, dir+"/")
}

func sortByVersion(records []changelog.Record) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j-1].Version > records[j].Version; j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}
