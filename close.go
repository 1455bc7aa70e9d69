package brec

// Close releases the state a session accumulates while running: cached
// algorithms, implicit enrollment galleries and published in-memory score
// matrices. The session stays usable afterwards; later operations rebuild
// what they need.
//
// Close is idempotent. The configured blob stores belong to the caller and
// are not touched.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.registry.reset()
	s.galleryMem.Clear()
	s.outputMem.Clear()
	return nil
}
