package mirror

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Options holds the per-mapping toggles and timings.
type Options struct {
	// DebounceDelay is the event-collapse window for remote mappings.
	DebounceDelay time.Duration
	// PointerDebounceDelay is the window for pointer-only mappings, where
	// churn is expected and collapsing minutes of writes is desirable.
	PointerDebounceDelay time.Duration
	// StableTime is how long a file's size must stay constant before it is
	// considered fully written.
	StableTime time.Duration
	// PollInterval is the size-poll interval of the stability probe.
	PollInterval time.Duration
	// MediaTypes are glob patterns (e.g. *.mp4) selecting files that get
	// pointer files instead of byte copies.
	MediaTypes []string
	// IgnoreExtensions are extensions whose create/delete events are
	// dropped (provisional marker files such as .mp).
	IgnoreExtensions []string
	// SubtitleExtensions get the copy-with-refresh fast path.
	SubtitleExtensions []string
	// OverwriteExisting replaces pointer files and copies that already
	// exist at the target.
	OverwriteExisting bool
	// EnableCleanup propagates deletions to the mirror targets.
	EnableCleanup bool
	// FullSyncOnStartup walks the mapping once before watching.
	FullSyncOnStartup bool
	// UseDirectLink writes absolute URLs into pointer files.
	UseDirectLink bool
	// BaseURL is the URL prefix for direct-link pointer files.
	BaseURL string
}

// Mapping is one watched directory pair. Immutable after construction.
type Mapping struct {
	// Name identifies the mapping in logs and status output.
	Name string
	// LocalRoot is the watched local tree.
	LocalRoot string
	// RemoteSourceRoot is where the backend already sees the watched tree
	// (the copy source projection).
	RemoteSourceRoot string
	// RemoteDestinationRoot is the backend path the tree is mirrored to.
	RemoteDestinationRoot string
	// TargetRoot is the local root of the pointer-file tree.
	TargetRoot string
	// MediaPrefix is the virtual path prefix written into pointer files.
	MediaPrefix string

	Options Options
}

// NewMapping normalizes the roots and applies timing defaults.
func NewMapping(m Mapping) *Mapping {
	m.RemoteSourceRoot = strings.TrimRight(m.RemoteSourceRoot, "/")
	m.RemoteDestinationRoot = strings.TrimRight(m.RemoteDestinationRoot, "/")
	m.MediaPrefix = strings.TrimRight(m.MediaPrefix, "/")
	m.LocalRoot = strings.TrimRight(m.LocalRoot, "/")
	m.TargetRoot = strings.TrimRight(m.TargetRoot, "/")

	if m.Options.DebounceDelay <= 0 {
		m.Options.DebounceDelay = time.Second
	}
	if m.Options.PointerDebounceDelay <= 0 {
		m.Options.PointerDebounceDelay = 120 * time.Second
	}
	if m.Options.StableTime <= 0 {
		m.Options.StableTime = 5 * time.Second
	}
	if m.Options.PollInterval <= 0 {
		m.Options.PollInterval = time.Second
	}
	return &m
}

// RemoteEnabled reports whether the mapping mirrors to the remote backend.
func (m *Mapping) RemoteEnabled() bool {
	return m.RemoteSourceRoot != "" && m.RemoteDestinationRoot != ""
}

// PointerEnabled reports whether the mapping writes a local pointer tree.
func (m *Mapping) PointerEnabled() bool {
	return m.TargetRoot != ""
}

// DebounceDelay picks the effective window: remote mappings use the short
// delay, pointer-only mappings the long one.
func (m *Mapping) DebounceDelay() time.Duration {
	if m.RemoteEnabled() {
		return m.Options.DebounceDelay
	}
	return m.Options.PointerDebounceDelay
}

// Validate reports configuration mismatches. A failing mapping is skipped at
// startup; other mappings continue.
func (m *Mapping) Validate() error {
	if m.LocalRoot == "" {
		return fmt.Errorf("mapping %s: local_root is required", m.Name)
	}
	if !m.RemoteEnabled() && !m.PointerEnabled() {
		return fmt.Errorf("mapping %s: needs remote roots and/or a target_root", m.Name)
	}
	if m.RemoteSourceRoot != "" && m.RemoteDestinationRoot == "" ||
		m.RemoteSourceRoot == "" && m.RemoteDestinationRoot != "" {
		return fmt.Errorf("mapping %s: remote_source_root and remote_destination_root must be set together", m.Name)
	}
	if m.PointerEnabled() && m.MediaPrefix == "" {
		return fmt.Errorf("mapping %s: media_prefix is required with target_root", m.Name)
	}
	return nil
}

// IsMedia reports whether rel matches the media allow-list.
func (o Options) IsMedia(rel string) bool {
	for _, pattern := range o.MediaTypes {
		if strings.HasPrefix(pattern, "*") {
			if strings.HasSuffix(strings.ToLower(rel), strings.ToLower(pattern[1:])) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(strings.ToLower(pattern), strings.ToLower(path.Base(rel))); ok {
			return true
		}
	}
	return false
}

// IsIgnored reports whether rel has an ignored (provisional) extension.
func (o Options) IsIgnored(rel string) bool {
	return hasExtension(rel, o.IgnoreExtensions)
}

// IsSubtitle reports whether rel has a subtitle extension.
func (o Options) IsSubtitle(rel string) bool {
	return hasExtension(rel, o.SubtitleExtensions)
}

func hasExtension(rel string, exts []string) bool {
	ext := strings.ToLower(path.Ext(rel))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
