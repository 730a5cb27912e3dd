package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/iox"
	"github.com/pithecene-io/bundlesync/log"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/metrics"
)

// ErrInconsistentOutput is returned when an artifact on disk does not
// match its manifest entry.
var ErrInconsistentOutput = errors.New("artifact does not match manifest")

// PublishOptions controls a Publish call.
type PublishOptions struct {
	// Prefix is the key prefix of the content root in the store.
	Prefix string
	// Prune deletes keys under Prefix that the manifest no longer lists.
	// Runs after the manifest is uploaded.
	Prune bool
}

// PublishResult reports what a Publish call did.
type PublishResult struct {
	Platform    string
	AppVersion  string
	Revision    int
	ManifestKey string
	Uploaded    []string
	Unchanged   []string
	Pruned      []string
	Bytes       int64
}

// Publisher uploads a build output directory to a lode store.
//
// Artifacts are uploaded first and the manifest last, so a client that
// observes the new manifest can fetch every file it lists.
type Publisher struct {
	factory   lode.StoreFactory
	logger    *log.Logger
	collector *metrics.Collector

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewPublisher creates a publisher. The store is created on first use.
func NewPublisher(factory lode.StoreFactory, logger *log.Logger, collector *metrics.Collector) (*Publisher, error) {
	if factory == nil {
		return nil, errors.New("publisher requires a store factory")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Publisher{factory: factory, logger: logger, collector: collector}, nil
}

func (p *Publisher) getOrCreateStore() (lode.Store, error) {
	p.storeOnce.Do(func() {
		p.store, p.storeErr = p.factory()
		if p.storeErr != nil {
			p.storeErr = Wrap(p.storeErr, "init", "")
		}
	})
	return p.store, p.storeErr
}

// Publish uploads the manifest in dir and every file it lists.
func (p *Publisher) Publish(ctx context.Context, dir string, opts PublishOptions) (*PublishResult, error) {
	result, err := p.publish(ctx, dir, opts)
	if err != nil {
		p.collector.IncPublishFailure()
		p.logger.Error("publish failed", map[string]any{
			"dir":    dir,
			"prefix": opts.Prefix,
			"error":  err.Error(),
		})
		return nil, err
	}
	p.collector.IncPublishSuccess()
	p.logger.Info("published", map[string]any{
		"dir":       dir,
		"prefix":    opts.Prefix,
		"revision":  result.Revision,
		"uploaded":  len(result.Uploaded),
		"unchanged": len(result.Unchanged),
		"pruned":    len(result.Pruned),
		"bytes":     result.Bytes,
	})
	return result, nil
}

func (p *Publisher) publish(ctx context.Context, dir string, opts PublishOptions) (*PublishResult, error) {
	store, err := p.getOrCreateStore()
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(dir, manifest.FileName)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	result := &PublishResult{
		Platform:    m.Platform.String(),
		AppVersion:  m.AppVersion,
		Revision:    m.Revision,
		ManifestKey: joinKey(opts.Prefix, manifest.FileName),
	}

	for _, fi := range m.FileInfos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filepath.IsLocal(filepath.FromSlash(fi.Path)) {
			return nil, fmt.Errorf("manifest entry %q escapes the output directory", fi.Path)
		}
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(fi.Path)))
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", fi.Path, err)
		}
		if int64(len(data)) != fi.Size || fingerprint.String(data) != fi.Hash {
			return nil, fmt.Errorf("%w: %s", ErrInconsistentOutput, fi.Path)
		}

		changed, err := p.put(ctx, store, joinKey(opts.Prefix, fi.Path), data)
		if err != nil {
			return nil, err
		}
		if changed {
			result.Uploaded = append(result.Uploaded, fi.Path)
			result.Bytes += fi.Size
		} else {
			result.Unchanged = append(result.Unchanged, fi.Path)
		}
	}

	if _, err := p.put(ctx, store, result.ManifestKey, manifestData); err != nil {
		return nil, err
	}

	if opts.Prune {
		pruned, err := p.prune(ctx, store, opts.Prefix, m)
		if err != nil {
			return nil, err
		}
		result.Pruned = pruned
	}
	return result, nil
}

// put writes data at key unless identical content is already there.
// Existing keys are deleted before being rewritten.
func (p *Publisher) put(ctx context.Context, store lode.Store, key string, data []byte) (bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return false, Wrap(err, "exists", key)
	}
	if exists {
		same, err := sameContent(ctx, store, key, data)
		if err != nil {
			return false, err
		}
		if same {
			return false, nil
		}
		if err := store.Delete(ctx, key); err != nil {
			return false, Wrap(err, "delete", key)
		}
	}
	if err := store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return false, Wrap(err, "put", key)
	}
	return true, nil
}

func sameContent(ctx context.Context, store lode.Store, key string, data []byte) (bool, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return false, Wrap(err, "get", key)
	}
	defer iox.DiscardClose(rc)

	sum, err := fingerprint.SumReader(rc)
	if err != nil {
		return false, Wrap(err, "get", key)
	}
	return fingerprint.Format(sum) == fingerprint.String(data), nil
}

func (p *Publisher) prune(ctx context.Context, store lode.Store, prefix string, m *manifest.Manifest) ([]string, error) {
	keep := make(map[string]struct{}, len(m.FileInfos)+1)
	keep[joinKey(prefix, manifest.FileName)] = struct{}{}
	for _, fi := range m.FileInfos {
		keep[joinKey(prefix, fi.Path)] = struct{}{}
	}

	listPrefix := prefix
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}
	keys, err := store.List(ctx, listPrefix)
	if err != nil {
		if errors.Is(Classify(err), ErrNotFound) {
			return nil, nil
		}
		return nil, Wrap(err, "list", listPrefix)
	}
	sort.Strings(keys)

	var pruned []string
	for _, key := range keys {
		if _, ok := keep[key]; ok {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			return pruned, Wrap(err, "delete", key)
		}
		p.logger.Debug("pruned stale key", map[string]any{"key": key})
		pruned = append(pruned, key)
	}
	return pruned, nil
}

// Get reads the object at key.
func (p *Publisher) Get(ctx context.Context, key string) ([]byte, error) {
	store, err := p.getOrCreateStore()
	if err != nil {
		return nil, err
	}
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, Wrap(err, "get", key)
	}
	defer iox.DiscardClose(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Wrap(err, "get", key)
	}
	return data, nil
}

// joinKey joins a prefix and a name with exactly one slash.
func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	name = strings.TrimPrefix(name, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
