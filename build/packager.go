package build

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/pithecene-io/bundlesync/iox"
)

// SidecarExtension marks the per-artifact listing a packager may leave
// next to an artifact. The orchestrator removes these after packaging.
const SidecarExtension = ".manifest"

// Asset is one source file handed to a packager.
type Asset struct {
	// Name is the slash path relative to the folder root.
	Name string
	// Path is the file's location on disk.
	Path string
}

// Packager turns a folder's assets into one artifact named bundleName
// inside outputDir. Implementations may leave sidecar files behind.
type Packager interface {
	Package(ctx context.Context, outputDir, bundleName string, assets []Asset) error
}

// ArchivePackager writes assets as a zstd-compressed tar.
// Entry headers carry a fixed timestamp so equal input yields equal bytes.
type ArchivePackager struct {
	Level zstd.EncoderLevel
}

// NewArchivePackager returns an ArchivePackager at the default level.
func NewArchivePackager() *ArchivePackager {
	return &ArchivePackager{Level: zstd.SpeedDefault}
}

var archiveModTime = time.Unix(0, 0).UTC()

// Package implements Packager.
func (p *ArchivePackager) Package(ctx context.Context, outputDir, bundleName string, assets []Asset) error {
	level := p.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}
	tw := tar.NewWriter(enc)

	var listing strings.Builder
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			_ = enc.Close()
			return err
		}
		n, err := addToArchive(tw, a)
		if err != nil {
			_ = enc.Close()
			return fmt.Errorf("archive %s: %w", a.Name, err)
		}
		fmt.Fprintf(&listing, "%s\t%d\n", a.Name, n)
	}
	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("close archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}

	if err := iox.WriteFileAtomic(filepath.Join(outputDir, bundleName), buf.Bytes(), 0o644); err != nil {
		return err
	}
	return iox.WriteFileAtomic(filepath.Join(outputDir, bundleName+SidecarExtension), []byte(listing.String()), 0o644)
}

func addToArchive(tw *tar.Writer, a Asset) (int64, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return 0, err
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     a.Name,
		Mode:     0o644,
		Size:     info.Size(),
		ModTime:  archiveModTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, f)
}

// ReadArchive decodes an artifact written by ArchivePackager into a map
// of entry name to content.
func ReadArchive(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	defer dec.Close()

	out := make(map[string][]byte)
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		out[hdr.Name] = data
	}
}

// CommandPackager delegates to an external program invoked as
//
//	Command Args... --output DIR --name NAME -- ASSET...
//
// Stderr is captured and returned with any failure.
type CommandPackager struct {
	Command string
	Args    []string
	// Env is appended to the current environment.
	Env []string
}

// Package implements Packager.
func (p *CommandPackager) Package(ctx context.Context, outputDir, bundleName string, assets []Asset) error {
	if p.Command == "" {
		return errors.New("packager command is required")
	}

	args := append([]string(nil), p.Args...)
	args = append(args, "--output", outputDir, "--name", bundleName, "--")
	for _, a := range assets {
		args = append(args, a.Path)
	}

	cmd := exec.CommandContext(ctx, p.Command, args...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", p.Command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("run %s: %w", p.Command, err)
	}
	return nil
}

// StubPackager writes a deterministic artifact listing asset names and
// records every call. For testing.
type StubPackager struct {
	mu    sync.Mutex
	Calls []string
	// Errs forces a failure for the named bundle.
	Errs map[string]error
	// Sidecar, when true, also writes {bundle}.manifest and a file named
	// after the output directory.
	Sidecar bool
}

// Package implements Packager.
func (s *StubPackager) Package(_ context.Context, outputDir, bundleName string, assets []Asset) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, bundleName)
	err := s.Errs[bundleName]
	s.mu.Unlock()
	if err != nil {
		return err
	}

	var body strings.Builder
	for _, a := range assets {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(&body, "%s:%s\n", a.Name, data)
	}
	if err := os.WriteFile(filepath.Join(outputDir, bundleName), []byte(body.String()), 0o644); err != nil {
		return err
	}
	if s.Sidecar {
		if err := os.WriteFile(filepath.Join(outputDir, bundleName+SidecarExtension), []byte("sidecar"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(outputDir, filepath.Base(outputDir)), []byte("index"), 0o644)
	}
	return nil
}

// CallCount returns the number of Package calls.
func (s *StubPackager) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

var (
	_ Packager = (*ArchivePackager)(nil)
	_ Packager = (*CommandPackager)(nil)
	_ Packager = (*StubPackager)(nil)
)
