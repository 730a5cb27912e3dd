package build

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.png":            "b",
		"a/z.mat":          "z",
		"a/z.mat.meta":     "m",
		"a/c.prefab":       "c",
		".DS_Store":        "x",
		"Icon.localized":   "x",
		"Thumbs.db":        "x",
		"deep/er/leaf.txt": "l",
	})

	files, err := Enumerate(root)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	want := []string{"a/c.prefab", "a/z.mat", "b.png", "deep/er/leaf.txt"}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", files, want)
	}
}

func TestEnumerate_MissingRoot(t *testing.T) {
	if _, err := Enumerate(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestBundleName(t *testing.T) {
	tests := map[string]string{
		"ui":           "ui.unity3d",
		"chars/hero":   "chars~hero.unity3d",
		"/chars/hero/": "chars~hero.unity3d",
		"a/b/c":        "a~b~c.unity3d",
	}
	for in, want := range tests {
		if got := BundleName(in); got != want {
			t.Errorf("BundleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArchivePackager(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"x.txt": "hello", "sub/y.bin": "world"})
	assets := []Asset{
		{Name: "sub/y.bin", Path: filepath.Join(src, "sub", "y.bin")},
		{Name: "x.txt", Path: filepath.Join(src, "x.txt")},
	}

	out := t.TempDir()
	p := NewArchivePackager()
	if err := p.Package(t.Context(), out, "set.unity3d", assets); err != nil {
		t.Fatalf("Package: %v", err)
	}

	contents, err := ReadArchive(filepath.Join(out, "set.unity3d"))
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if string(contents["x.txt"]) != "hello" || string(contents["sub/y.bin"]) != "world" {
		t.Errorf("contents = %v", contents)
	}

	sidecar := readFile(t, filepath.Join(out, "set.unity3d"+SidecarExtension))
	if string(sidecar) != "sub/y.bin\t5\nx.txt\t5\n" {
		t.Errorf("sidecar = %q", sidecar)
	}

	// Equal input packages to equal bytes.
	out2 := t.TempDir()
	if err := p.Package(t.Context(), out2, "set.unity3d", assets); err != nil {
		t.Fatalf("Package: %v", err)
	}
	if !bytes.Equal(readFile(t, filepath.Join(out, "set.unity3d")), readFile(t, filepath.Join(out2, "set.unity3d"))) {
		t.Error("archive output is not deterministic")
	}
}

func TestArchivePackager_MissingAsset(t *testing.T) {
	out := t.TempDir()
	err := NewArchivePackager().Package(t.Context(), out, "x.unity3d", []Asset{{Name: "gone", Path: filepath.Join(out, "gone")}})
	if err == nil {
		t.Fatal("expected error for missing asset")
	}
	if _, statErr := os.Stat(filepath.Join(out, "x.unity3d")); !os.IsNotExist(statErr) {
		t.Error("partial artifact left behind")
	}
}

func TestCommandPackager(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	script := `while [ "$1" != "--" ]; do
  case "$1" in
    --output) out="$2"; shift ;;
    --name) name="$2"; shift ;;
  esac
  shift
done
shift
cat "$@" > "$out/$name"`

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "A", "b": "B"})
	out := t.TempDir()

	p := &CommandPackager{Command: sh, Args: []string{"-c", script, "packer"}}
	assets := []Asset{{Name: "a", Path: filepath.Join(src, "a")}, {Name: "b", Path: filepath.Join(src, "b")}}
	if err := p.Package(t.Context(), out, "ab.unity3d", assets); err != nil {
		t.Fatalf("Package: %v", err)
	}
	if got := readFile(t, filepath.Join(out, "ab.unity3d")); string(got) != "AB" {
		t.Errorf("artifact = %q, want AB", got)
	}
}

func TestCommandPackager_Failure(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	p := &CommandPackager{Command: sh, Args: []string{"-c", "echo 'texture too large' >&2; exit 3", "packer"}}
	err = p.Package(t.Context(), t.TempDir(), "x.unity3d", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "texture too large") || !strings.Contains(err.Error(), "code 3") {
		t.Errorf("error = %v", err)
	}
}

func TestCommandPackager_RequiresCommand(t *testing.T) {
	if err := (&CommandPackager{}).Package(t.Context(), t.TempDir(), "x", nil); err == nil {
		t.Error("expected error for empty command")
	}
}
