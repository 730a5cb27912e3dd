package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/bundlesync/buildcache"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/metrics"
)

// writeTree creates files under root from a map of slash path to content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func newTestConfig(t *testing.T, revision int) Config {
	t.Helper()
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"chars/hero/body.png":      "hero-body",
		"chars/hero/body.png.meta": "ignored",
		"chars/hero/anim/run.anim": "hero-run",
		"ui/button.prefab":         "button",
		"ui/.DS_Store":             "ignored",
	})
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	return Config{
		SourceRoot: src,
		Folders: []Folder{
			{Path: "chars/hero", Label: "Hero"},
			{Path: "ui", Label: "UI"},
			{Path: "empty", Label: "Empty"},
		},
		OutputRoot: t.TempDir(),
		Platform:   manifest.PlatformAndroid,
		AppVersion: "1.0.0",
		Revision:   revision,
	}
}

func TestBuilder_FirstBuild(t *testing.T) {
	cfg := newTestConfig(t, 1)
	packager := &StubPackager{Sidecar: true}
	collector := metrics.NewCollector("android", "fs", "")

	result, err := New(cfg, packager, nil, collector).Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantDir := filepath.Join(cfg.OutputRoot, "android", "1.0.0", "1")
	if result.Layout.OutputDir != wantDir {
		t.Errorf("OutputDir = %q, want %q", result.Layout.OutputDir, wantDir)
	}
	if packager.CallCount() != 2 {
		t.Errorf("packager calls = %v, want 2", packager.Calls)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "empty" {
		t.Errorf("Skipped = %v, want [empty]", result.Skipped)
	}

	// Artifact content excludes metadata files.
	body := string(readFile(t, filepath.Join(wantDir, "chars~hero.unity3d")))
	if body != "anim/run.anim:hero-run\nbody.png:hero-body\n" {
		t.Errorf("artifact body = %q", body)
	}

	// Sidecars are gone; only artifacts and the manifest remain.
	entries, err := os.ReadDir(wantDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"chars~hero.unity3d", manifest.FileName, "ui.unity3d"}
	if len(names) != len(want) {
		t.Fatalf("output entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("output entries = %v, want %v", names, want)
			break
		}
	}

	m, err := manifest.Load(filepath.Join(wantDir, manifest.FileName))
	if err != nil {
		t.Fatalf("Load manifest: %v", err)
	}
	if m.Platform != manifest.PlatformAndroid || m.AppVersion != "1.0.0" || m.Revision != 1 || m.FileCount != 2 {
		t.Errorf("manifest header = %+v", m)
	}
	if label, _ := m.Lookup("chars~hero.unity3d"); label.Label != "Hero" {
		t.Errorf("hero label = %q, want Hero", label.Label)
	}
	if label, _ := m.Lookup("ui.unity3d"); label.Label != "UI" {
		t.Errorf("ui label = %q, want UI", label.Label)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputRoot, "android", buildcache.FileName)); err != nil {
		t.Errorf("build cache not written: %v", err)
	}

	s := collector.Snapshot()
	if s.BuildsCompleted != 1 || s.FoldersPackaged != 2 || s.FoldersSkipped != 1 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestBuilder_ReusesUnchangedFolders(t *testing.T) {
	cfg := newTestConfig(t, 1)
	first := &StubPackager{}
	r1, err := New(cfg, first, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	cfg.Revision = 2
	second := &StubPackager{}
	r2, err := New(cfg, second, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if second.CallCount() != 0 {
		t.Errorf("packager called for unchanged content: %v", second.Calls)
	}
	if len(r2.Reused) != 2 {
		t.Errorf("Reused = %v, want 2 folders", r2.Reused)
	}
	for _, name := range []string{"chars~hero.unity3d", "ui.unity3d"} {
		prev := readFile(t, filepath.Join(r1.Layout.OutputDir, name))
		cur := readFile(t, filepath.Join(r2.Layout.OutputDir, name))
		if !bytes.Equal(prev, cur) {
			t.Errorf("%s not reused byte-for-byte", name)
		}
	}

	// Revisions are retained.
	if _, err := os.Stat(filepath.Join(r1.Layout.OutputDir, manifest.FileName)); err != nil {
		t.Errorf("revision 1 manifest removed: %v", err)
	}
	if r2.Manifest.Revision != 2 {
		t.Errorf("Revision = %d, want 2", r2.Manifest.Revision)
	}
}

func TestBuilder_RebuildsOnlyChangedFolder(t *testing.T) {
	cfg := newTestConfig(t, 1)
	if _, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	writeTree(t, cfg.SourceRoot, map[string]string{"ui/button.prefab": "button-v2"})
	cfg.Revision = 2
	packager := &StubPackager{}
	result, err := New(cfg, packager, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(packager.Calls) != 1 || packager.Calls[0] != "ui.unity3d" {
		t.Errorf("packager calls = %v, want [ui.unity3d]", packager.Calls)
	}
	if len(result.Reused) != 1 || result.Reused[0] != "chars/hero" {
		t.Errorf("Reused = %v, want [chars/hero]", result.Reused)
	}
}

func TestBuilder_RemovedFileForcesRebuild(t *testing.T) {
	cfg := newTestConfig(t, 1)
	if _, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := os.Remove(filepath.Join(cfg.SourceRoot, "chars", "hero", "anim", "run.anim")); err != nil {
		t.Fatal(err)
	}
	cfg.Revision = 2
	packager := &StubPackager{}
	if _, err := New(cfg, packager, nil, nil).Run(t.Context()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(packager.Calls) != 1 || packager.Calls[0] != "chars~hero.unity3d" {
		t.Errorf("packager calls = %v, want [chars~hero.unity3d]", packager.Calls)
	}

	// The pruned cache settles: a third run rebuilds nothing.
	cfg.Revision = 3
	third := &StubPackager{}
	if _, err := New(cfg, third, nil, nil).Run(t.Context()); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if third.CallCount() != 0 {
		t.Errorf("third run packaged %v", third.Calls)
	}
}

func TestBuilder_IntegralLayout(t *testing.T) {
	cfg := newTestConfig(t, 0)
	if _, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	packager := &StubPackager{}
	result, err := New(cfg, packager, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	platformDir := filepath.Join(cfg.OutputRoot, "android")
	if result.Layout.OutputDir != filepath.Join(platformDir, "integral") {
		t.Errorf("OutputDir = %q", result.Layout.OutputDir)
	}
	if packager.CallCount() != 0 {
		t.Errorf("packager calls = %v, want none", packager.Calls)
	}
	if _, err := os.Stat(filepath.Join(platformDir, "integral_prev", "ui.unity3d")); err != nil {
		t.Errorf("previous integral output not rotated: %v", err)
	}
	if result.Manifest.Revision != 0 {
		t.Errorf("Revision = %d, want 0", result.Manifest.Revision)
	}
}

func TestBuilder_ReusePackagesWhenPreviousMissing(t *testing.T) {
	cfg := newTestConfig(t, 1)
	r1, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := os.RemoveAll(r1.Layout.OutputDir); err != nil {
		t.Fatal(err)
	}

	cfg.Revision = 2
	packager := &StubPackager{}
	result, err := New(cfg, packager, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if packager.CallCount() != 2 {
		t.Errorf("packager calls = %v, want both folders", packager.Calls)
	}
	if len(result.Packaged) != 2 {
		t.Errorf("Packaged = %v", result.Packaged)
	}
}

func TestBuilder_IntegralNeverReusesFromFailedRun(t *testing.T) {
	cfg := newTestConfig(t, 0)
	writeTree(t, cfg.SourceRoot, map[string]string{"fx/spark.vfx": "spark"})
	cfg.Folders = append(cfg.Folders, Folder{Path: "fx", Label: "FX"})
	if _, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// ui is packaged at v2, then fx fails: integral is left without a manifest.
	writeTree(t, cfg.SourceRoot, map[string]string{"ui/button.prefab": "button-v2", "fx/spark.vfx": "spark-v2"})
	failing := &StubPackager{Errs: map[string]error{"fx.unity3d": errors.New("packer crashed")}}
	if _, err := New(cfg, failing, nil, nil).Run(t.Context()); !IsPackagingError(err) {
		t.Fatalf("second Run error = %v, want PackagingError", err)
	}

	// Reverted sources match the cache again, but the rotated backup holds v2.
	writeTree(t, cfg.SourceRoot, map[string]string{"ui/button.prefab": "button", "fx/spark.vfx": "spark"})
	packager := &StubPackager{}
	result, err := New(cfg, packager, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if len(result.Reused) != 0 {
		t.Errorf("Reused = %v, want none from a failed run", result.Reused)
	}
	got := readFile(t, filepath.Join(result.Layout.OutputDir, "ui.unity3d"))
	if !bytes.Contains(got, []byte("button.prefab:button\n")) {
		t.Errorf("ui artifact = %q, want rebuilt from reverted source", got)
	}
}

func TestBuilder_ReuseVerifiesPreviousArtifact(t *testing.T) {
	cfg := newTestConfig(t, 1)
	r1, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r1.Layout.OutputDir, "ui.unity3d"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg.Revision = 2
	packager := &StubPackager{}
	result, err := New(cfg, packager, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(packager.Calls) != 1 || packager.Calls[0] != "ui.unity3d" {
		t.Errorf("packager calls = %v, want [ui.unity3d]", packager.Calls)
	}
	if len(result.Reused) != 1 || result.Reused[0] != "chars/hero" {
		t.Errorf("Reused = %v, want [chars/hero]", result.Reused)
	}
}

func TestBuilder_PackagingErrorAborts(t *testing.T) {
	cfg := newTestConfig(t, 1)
	boom := errors.New("packer crashed")
	packager := &StubPackager{Errs: map[string]error{"ui.unity3d": boom}}
	collector := metrics.NewCollector("android", "fs", "")

	_, err := New(cfg, packager, nil, collector).Run(t.Context())
	if !IsPackagingError(err) {
		t.Fatalf("error = %v, want PackagingError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("underlying error not in chain: %v", err)
	}
	var pe *PackagingError
	if errors.As(err, &pe) && pe.Folder != "ui" {
		t.Errorf("Folder = %q, want ui", pe.Folder)
	}

	outDir := filepath.Join(cfg.OutputRoot, "android", "1.0.0", "1")
	if _, err := os.Stat(filepath.Join(outDir, manifest.FileName)); !os.IsNotExist(err) {
		t.Errorf("manifest written despite failure: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputRoot, "android", buildcache.FileName)); !os.IsNotExist(err) {
		t.Errorf("build cache saved despite failure: %v", err)
	}

	s := collector.Snapshot()
	if s.BuildsFailed != 1 || s.PackagingFailures != 1 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestBuilder_MissingArtifactIsPackagingError(t *testing.T) {
	cfg := newTestConfig(t, 1)
	_, err := New(cfg, packagerFunc(func(context.Context, string, string, []Asset) error { return nil }), nil, nil).Run(t.Context())
	if !IsPackagingError(err) {
		t.Fatalf("error = %v, want PackagingError", err)
	}
}

func TestBuilder_ConfigErrorsBeforeMutation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing output", func(c *Config) { c.OutputRoot = "" }},
		{"missing folder", func(c *Config) { c.Folders = append(c.Folders, Folder{Path: "nope"}) }},
		{"duplicate folder", func(c *Config) { c.Folders = append(c.Folders, Folder{Path: "ui/"}) }},
		{"bundle name collision", func(c *Config) { c.Folders = append(c.Folders, Folder{Path: "chars~hero"}) }},
		{"unknown platform", func(c *Config) { c.Platform = manifest.PlatformUnknown }},
		{"no folders", func(c *Config) { c.Folders = nil }},
		{"revisioned without version", func(c *Config) { c.AppVersion = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, 1)
			out := cfg.OutputRoot
			tt.mutate(&cfg)

			_, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context())
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("error = %v, want ErrConfig", err)
			}
			entries, _ := os.ReadDir(out)
			if len(entries) != 0 {
				t.Errorf("output root mutated: %v", entries)
			}
		})
	}
}

func TestBuilder_LabelsNestedFolders(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"hero/a.png":       "top-level hero",
		"chars/hero/b.png": "nested hero",
		"superhero/c.png":  "super",
	})
	cfg := Config{
		SourceRoot: src,
		Folders: []Folder{
			{Path: "hero", Label: "Hero"},
			{Path: "chars/hero", Label: "CharsHero"},
			{Path: "superhero", Label: "Super"},
		},
		OutputRoot: t.TempDir(),
		Platform:   manifest.PlatformAndroid,
		AppVersion: "1.0.0",
		Revision:   1,
	}

	res, err := New(cfg, &StubPackager{}, nil, nil).Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]string{
		"hero.unity3d":       "Hero",
		"chars~hero.unity3d": "CharsHero",
		"superhero.unity3d":  "Super",
	}
	if len(res.Manifest.FileInfos) != len(want) {
		t.Fatalf("manifest entries = %+v", res.Manifest.FileInfos)
	}
	for _, fd := range res.Manifest.FileInfos {
		if fd.Label != want[fd.Path] {
			t.Errorf("%s label = %q, want %q", fd.Path, fd.Label, want[fd.Path])
		}
	}
	if path, ok := res.Manifest.PathByLabel("Hero"); !ok || path != "hero.unity3d" {
		t.Errorf("PathByLabel(Hero) = %q, %v", path, ok)
	}
}

func TestBuilder_Cancelled(t *testing.T) {
	cfg := newTestConfig(t, 1)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := New(cfg, &StubPackager{}, nil, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

type packagerFunc func(ctx context.Context, outputDir, bundleName string, assets []Asset) error

func (f packagerFunc) Package(ctx context.Context, outputDir, bundleName string, assets []Asset) error {
	return f(ctx, outputDir, bundleName, assets)
}
