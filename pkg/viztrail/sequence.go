// Package viztrail defines the root aggregate of the versioning model: a
// viztrail owning named branches, each a linear history of workflow
// versions, plus the identifier sequences shared by all branches.
package viztrail

// Sequence issues monotonically increasing identifiers. The counter is
// persisted with its viztrail, so an identifier is never issued twice even
// after the modules or versions that used it are deleted.
type Sequence struct {
	Value int64 `json:"value" yaml:"value"`
}

// Next returns the next identifier and advances the counter.
func (s *Sequence) Next() int64 {
	v := s.Value
	s.Value++
	return v
}

// Peek returns the identifier the next call to Next would return.
func (s *Sequence) Peek() int64 {
	return s.Value
}
