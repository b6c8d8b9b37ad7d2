// Package collision adapts mebo/internal/collision's name/hash collision
// tracker to channel names: convert.Index hashes channel names with
// internal/hash for O(1) lookup, and this tracker detects the rare case
// where two distinct channel names hash to the same 64-bit id.
package collision

import "github.com/mdf4kit/mdf4/errs"

// Tracker tracks channel names and the hashes they map to, flagging the
// case where two different names collide on the same hash.
type Tracker struct {
	names        map[uint64]string
	namesList    []string
	hasCollision bool
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		names:     make(map[uint64]string),
		namesList: make([]string, 0),
	}
}

// Track records name under its hash id. A repeat of the same name is not an
// error (a channel may be looked up by name more than once); a different
// name landing on the same hash sets HasCollision.
func (t *Tracker) Track(name string, id uint64) error {
	if name == "" {
		return errs.ErrChannelNotFound
	}

	if existing, ok := t.names[id]; ok {
		if existing != name {
			t.hasCollision = true
		}

		return nil
	}

	t.names[id] = name
	t.namesList = append(t.namesList, name)

	return nil
}

// HasCollision reports whether two distinct channel names were seen under
// the same hash id.
func (t *Tracker) HasCollision() bool { return t.hasCollision }

// Names returns the ordered list of tracked channel names.
func (t *Tracker) Names() []string { return t.namesList }
