package testutils

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// 🧪 Context returns a context carrying a logger that writes to the test log
func Context(t testing.TB) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

// 🏗️ Foundry is a throwaway Foundry install: Config/options.json plus a Data root
type Foundry struct {
	t        testing.TB
	Base     string // install dir holding Config/
	DataPath string // value of dataPath in options.json
	Root     string // DataPath/Data
}

// NewFoundry lays out a fresh install under t.TempDir().
func NewFoundry(t testing.TB) *Foundry {
	t.Helper()
	base := t.TempDir()
	// EvalSymlinks keeps comparisons stable on systems where TMPDIR is a link
	base, err := filepath.EvalSymlinks(base)
	require.NoError(t, err, "resolving temp dir")

	f := &Foundry{
		t:        t,
		Base:     base,
		DataPath: filepath.Join(base, "userdata"),
	}
	f.Root = filepath.Join(f.DataPath, "Data")
	require.NoError(t, os.MkdirAll(f.Root, 0o755), "creating data root")

	opts, err := json.Marshal(map[string]any{"dataPath": f.DataPath})
	require.NoError(t, err)
	WriteFile(t, filepath.Join(base, "Config", "options.json"), string(opts))
	return f
}

// 📦 Project is a world or module inside a Foundry fixture
type Project struct {
	t      testing.TB
	Dir    string
	RelDir string
	Kind   string
	ID     string
}

// Project creates Data/<kind>s/<id> with a manifest using the id field of version.
func (f *Foundry) Project(kind, id string, version int) *Project {
	f.t.Helper()
	rel := kind + "s/" + id
	p := NewProjectAt(f.t, filepath.Join(f.Root, filepath.FromSlash(rel)), kind, id, version)
	p.RelDir = rel
	return p
}

// NewProjectAt writes a manifest into an arbitrary directory, which may live
// outside any data root.
func NewProjectAt(t testing.TB, dir, kind, id string, version int) *Project {
	t.Helper()
	field := "id"
	if version <= 9 {
		field = "name"
	}
	manifest, err := json.Marshal(map[string]any{
		field:   id,
		"title": strings.ToUpper(id),
	})
	require.NoError(t, err)
	WriteFile(t, filepath.Join(dir, kind+".json"), string(manifest))
	return &Project{t: t, Dir: dir, Kind: kind, ID: id}
}

// WriteFile writes content to a project-relative path and returns the absolute path.
func (p *Project) WriteFile(rel, content string) string {
	p.t.Helper()
	path := filepath.Join(p.Dir, filepath.FromSlash(rel))
	WriteFile(p.t, path, content)
	return path
}

// WriteDB writes a database of one record per line under data/.
func (p *Project) WriteDB(name string, lines ...string) string {
	p.t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	return p.WriteFile("data/"+name, content)
}

// ReadFile reads a project-relative path.
func (p *Project) ReadFile(rel string) string {
	p.t.Helper()
	data, err := os.ReadFile(filepath.Join(p.Dir, filepath.FromSlash(rel)))
	require.NoError(p.t, err, "reading %s", rel)
	return string(data)
}

// Exists reports whether a project-relative path exists.
func (p *Project) Exists(rel string) bool {
	_, err := os.Lstat(filepath.Join(p.Dir, filepath.FromSlash(rel)))
	return err == nil
}

// WriteFile creates parents and writes content.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "creating parent of %s", path)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "writing %s", path)
}
