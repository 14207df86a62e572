package store

// HeldLocks reports how many ids currently have a lock entry.
func (s *FileStore) HeldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
