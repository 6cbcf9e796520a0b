package mirror_test

import (
	"path/filepath"
	"testing"

	"filemirror/feature/mirror"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"Simple", "a/b.mkv", "a/b.mkv", true},
		{"Backslashes", `season 1\ep.01.mkv`, "season 1/ep.01.mkv", true},
		{"LeadingDot", "./a/b", "a/b", true},
		{"SurroundingSlashes", "/a/b/", "a/b", true},
		{"Empty", "", "", false},
		{"Dot", ".", "", false},
		{"Root", "/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mirror.NormalizeRel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMappingProjections(t *testing.T) {
	m := mirror.NewMapping(mirror.Mapping{
		Name:                  "shows",
		LocalRoot:             "/data/shows",
		RemoteSourceRoot:      "/local/shows/",
		RemoteDestinationRoot: "/remote/shows/",
		TargetRoot:            "/srv/strm/shows",
		MediaPrefix:           "/media/shows/",
	})

	rel := "season 1/ep.01.mkv"

	assert.Equal(t, "/local/shows/season 1/ep.01.mkv", m.RemoteSourcePath(rel))
	assert.Equal(t, "/remote/shows/season 1/ep.01.mkv", m.RemoteDestinationPath(rel))
	assert.Equal(t, filepath.Join("/srv/strm/shows", "season 1", "ep.01.mkv"), m.TargetPath(rel))
	assert.Equal(t, filepath.Join("/srv/strm/shows", "season 1", "ep.01.strm"), m.PointerPath(rel))
}

func TestPointerContent(t *testing.T) {
	m := mirror.NewMapping(mirror.Mapping{
		LocalRoot:   "/data/shows",
		TargetRoot:  "/srv/strm/shows",
		MediaPrefix: "/media/shows",
	})
	assert.Equal(t, "/media/shows/season 1/ep.01.mkv", m.PointerContent("season 1/ep.01.mkv"))

	m.Options.UseDirectLink = true
	m.Options.BaseURL = "http://alist:5244/d"
	assert.Equal(t, "http://alist:5244/d/media/shows/season 1/ep.01.mkv", m.PointerContent("season 1/ep.01.mkv"))
}
