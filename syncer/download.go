package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/iox"
	"github.com/pithecene-io/bundlesync/log"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/transport"
)

// download transfers files with at most Concurrency in flight. Failures
// are recorded in result.Failed and never stop the other transfers.
// Cancellation stops acquiring new slots; files never started are
// recorded as failed with the context error.
func (e *Engine) download(ctx context.Context, logger *log.Logger, files []manifest.FileDescriptor, progress ProgressFunc, result *RoundResult) {
	total := len(files)
	if total == 0 {
		return
	}

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	settle := func(fd manifest.FileDescriptor, n int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed[fd.Path] = err
		} else {
			result.Downloaded++
			result.DownloadedBytes += n
		}
		settled++
		if progress != nil {
			progress(float64(settled) / float64(total))
		}
	}

dispatch:
	for i, fd := range files {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			mu.Lock()
			for _, rest := range files[i:] {
				result.Failed[rest.Path] = ctx.Err()
			}
			mu.Unlock()
			break dispatch
		}

		wg.Add(1)
		go func(fd manifest.FileDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := e.transfer(ctx, logger, fd)
			if err != nil {
				e.collector.IncTransferFailure()
				logger.Error("transfer failed", map[string]any{
					"path":  fd.Path,
					"error": err.Error(),
				})
			}
			settle(fd, n, err)
		}(fd)
	}
	wg.Wait()
}

// transfer fetches, verifies and stores one file, retrying up to
// MaxAttempts. Not-found and auth failures are not retried.
func (e *Engine) transfer(ctx context.Context, logger *log.Logger, fd manifest.FileDescriptor) (int64, error) {
	dst, err := e.cachePath(fd.Path)
	if err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			e.collector.IncRetry()
			logger.Debug("retrying transfer", map[string]any{
				"path":    fd.Path,
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
			if err := sleep(ctx, time.Duration(attempt-1)*e.config.RetryBackoff); err != nil {
				return 0, err
			}
		}

		data, err := e.fetcher.Fetch(ctx, fd.Path)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || !retryable(err) {
				return 0, err
			}
			continue
		}

		if err := verify(fd, data); err != nil {
			e.collector.IncIntegrityFailure()
			lastErr = err
			continue
		}

		if err := iox.WriteFileAtomic(dst, data, 0o644); err != nil {
			return 0, err
		}
		e.forget(fd.Path)
		e.collector.AddDownloaded(int64(len(data)))
		return int64(len(data)), nil
	}
	return 0, lastErr
}

// verify checks size first, then fingerprint.
func verify(fd manifest.FileDescriptor, data []byte) error {
	size := int64(len(data))
	if size != fd.Size {
		return &IntegrityError{Path: fd.Path, WantSize: fd.Size, GotSize: size, WantHash: fd.Hash}
	}
	if got := fingerprint.String(data); got != fd.Hash {
		return &IntegrityError{Path: fd.Path, WantSize: fd.Size, GotSize: size, WantHash: fd.Hash, GotHash: got}
	}
	return nil
}

func retryable(err error) bool {
	return !errors.Is(err, transport.ErrNotFound) && !errors.Is(err, transport.ErrAuth)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
