package mirror

import (
	"path"
	"path/filepath"
	"strings"
)

// NormalizeRel canonicalizes a relative path to forward slashes and reports
// whether it is usable. Paths that normalize to empty or to the
// current-directory marker indicate a root-level event with no meaningful
// relative target and are rejected.
func NormalizeRel(rel string) (string, bool) {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return "", false
	}
	return rel, true
}

// RemoteSourcePath projects rel into the backend path where the watched tree
// is already visible (the copy source).
func (m *Mapping) RemoteSourcePath(rel string) string {
	return m.RemoteSourceRoot + "/" + rel
}

// RemoteDestinationPath projects rel into the backend mirror destination.
func (m *Mapping) RemoteDestinationPath(rel string) string {
	return m.RemoteDestinationRoot + "/" + rel
}

// TargetPath projects rel into the local pointer-tree root, extension
// unchanged.
func (m *Mapping) TargetPath(rel string) string {
	return filepath.Join(m.TargetRoot, filepath.FromSlash(rel))
}

// PointerPath projects rel into the pointer tree with the extension replaced
// by the pointer extension.
func (m *Mapping) PointerPath(rel string) string {
	return m.TargetPath(strings.TrimSuffix(rel, path.Ext(rel)) + PointerExtension)
}

// PointerContent computes the single line written into a pointer file:
// either a virtual path or, in direct-link mode, an absolute URL.
func (m *Mapping) PointerContent(rel string) string {
	virtual := m.MediaPrefix + "/" + rel
	if m.Options.UseDirectLink {
		return m.Options.BaseURL + virtual
	}
	return virtual
}

// PointerExtension is the extension of generated pointer files.
const PointerExtension = ".strm"
