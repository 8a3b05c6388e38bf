package blockstore

// State is a storage's position in the Fresh -> Open/Clean <-> Open/Dirty ->
// Closed/Clean lifecycle. It exists for observability and tests; it does not
// itself gate any operation, that's Storage.mu plus the closed marker.
type State int

const (
	StateFresh State = iota
	StateOpenClean
	StateOpenDirty
	StateClosedClean
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateOpenClean:
		return "Open/Clean"
	case StateOpenDirty:
		return "Open/Dirty"
	case StateClosedClean:
		return "Closed/Clean"
	default:
		return "Unknown"
	}
}

// State reports the storage's current lifecycle position. Mutations
// (store/remove) move it from Open/Clean to Open/Dirty; a successful close
// or a sync_physical flush followed by the closed-marker rewrite moves it
// back.
func (s *Storage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return StateClosedClean
	}
	if s.hdr.closed() {
		return StateOpenClean
	}
	return StateOpenDirty
}

// markDirty clears the closed bits and, if the storage was clean, commits an
// open-flag header before returning so a crash after this point is always
// caught by recovery.
func (s *Storage) markDirty() error {
	if s.hdr.closed() {
		s.hdr.flags &^= closedMask
		if err := writeHeaderOpen(s.out, s.cfg.start, s.hdr); err != nil {
			return err
		}
	}
	return nil
}
