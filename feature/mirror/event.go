package mirror

// Kind classifies a filesystem change.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
	Moved
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	default:
		return "unknown"
	}
}

// ChangeEvent is one raw filesystem notification, with paths already made
// relative to the mapping's local root and normalized to forward slashes.
// DestRelPath is set for Moved events only.
type ChangeEvent struct {
	Kind        Kind
	RelPath     string
	DestRelPath string
	IsDir       bool
}
