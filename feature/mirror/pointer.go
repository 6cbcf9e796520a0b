package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// PointerMirror maintains the local derivative tree of a mapping: pointer
// files for media, byte copies for everything else, and the mirrored
// directory skeleton.
type PointerMirror struct {
	mapping *Mapping
	log     *zap.Logger
}

// NewPointerMirror creates the pointer-tree writer for mapping.
func NewPointerMirror(mapping *Mapping, log *zap.Logger) *PointerMirror {
	return &PointerMirror{mapping: mapping, log: log}
}

// WritePointer generates the pointer file for a media path. An existing
// pointer is left untouched unless overwrite is enabled, in which case it is
// removed and regenerated. Parent directories are created as needed.
func (p *PointerMirror) WritePointer(rel string) error {
	target := p.mapping.PointerPath(rel)

	if _, err := os.Stat(target); err == nil {
		if !p.mapping.Options.OverwriteExisting {
			p.log.Warn("pointer file exists, skipping", zap.String("path", target))
			return nil
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replace pointer file %s: %w", target, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create pointer parent for %s: %w", target, err)
	}
	content := p.mapping.PointerContent(rel)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write pointer file %s: %w", target, err)
	}

	p.log.Info("pointer file generated",
		zap.String("path", target),
		zap.String("content", content))
	return nil
}

// CopyLocal mirrors a non-media file's bytes into the target tree,
// honoring the overwrite policy.
func (p *PointerMirror) CopyLocal(rel string) error {
	source := filepath.Join(p.mapping.LocalRoot, filepath.FromSlash(rel))
	target := p.mapping.TargetPath(rel)

	if _, err := os.Stat(target); err == nil && !p.mapping.Options.OverwriteExisting {
		p.log.Warn("target file exists, skipping", zap.String("path", target))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create target parent for %s: %w", target, err)
	}

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source %s: %w", source, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create target %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s -> %s: %w", source, target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close target %s: %w", target, err)
	}

	// Carry over the source timestamps, best effort.
	if fi, err := os.Stat(source); err == nil {
		_ = os.Chtimes(target, fi.ModTime(), fi.ModTime())
	}

	p.log.Info("file mirrored locally",
		zap.String("source", source),
		zap.String("target", target))
	return nil
}

// EnsureDir mirrors a directory creation under the target root.
// Idempotent.
func (p *PointerMirror) EnsureDir(rel string) error {
	target := p.mapping.TargetPath(rel)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create target dir %s: %w", target, err)
	}
	return nil
}

// RemoveTarget deletes the mirrored counterpart of rel: the file or
// directory subtree, plus the associated pointer file when rel is media.
func (p *PointerMirror) RemoveTarget(rel string, isDir bool) error {
	target := p.mapping.TargetPath(rel)

	if _, err := os.Stat(target); err == nil {
		if isDir {
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("remove target dir %s: %w", target, err)
			}
		} else if err := os.Remove(target); err != nil {
			return fmt.Errorf("remove target %s: %w", target, err)
		}
		p.log.Info("target removed", zap.String("path", target))
	}

	if !isDir && p.mapping.Options.IsMedia(rel) {
		pointer := p.mapping.PointerPath(rel)
		if _, err := os.Stat(pointer); err == nil {
			if err := os.Remove(pointer); err != nil {
				return fmt.Errorf("remove pointer file %s: %w", pointer, err)
			}
			p.log.Info("pointer file removed", zap.String("path", pointer))
		}
	}
	return nil
}

// Apply mirrors one settled create/modify for rel into the target tree:
// directories become directories, media becomes a pointer file, ignored
// extensions are dropped, everything else is byte-copied.
func (p *PointerMirror) Apply(rel string, isDir bool) error {
	if isDir {
		return p.EnsureDir(rel)
	}
	if p.mapping.Options.IsIgnored(rel) {
		return nil
	}
	if p.mapping.Options.IsMedia(rel) {
		return p.WritePointer(rel)
	}
	return p.CopyLocal(rel)
}
