package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-voxura-native/internal/errs"
	"go-voxura-native/internal/events"
	"go-voxura-native/internal/helpers"
	"go-voxura-native/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// DefaultThreshold is the number of bytes between two progress events.
const DefaultThreshold = 100000

// Custom Downloader Errors
var (
	ErrNoContentLength = fmt.Errorf("%w: server did not report a content length", errs.ErrTransport)
	ErrHttpStatus      = fmt.Errorf("%w: unexpected HTTP status code", errs.ErrTransport)
)

// Downloader streams HTTP bodies to disk and reports progress on events.DownloadUpdate.
type Downloader struct {
	client    *http.Client
	emitter   events.Emitter
	threshold uint64
}

// NewDownloader creates a new Downloader instance. A zero threshold uses DefaultThreshold.
func NewDownloader(client *http.Client, emitter events.Emitter, threshold uint64) *Downloader {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Minute,
		}
	}
	if emitter == nil {
		emitter = events.Discard
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Downloader{
		client:    client,
		emitter:   emitter,
		threshold: threshold,
	}
}

// Start runs Download in the background. The outcome reaches the listener
// as the task's final progress event.
func (d *Downloader) Start(ctx context.Context, id, dest, url string) {
	go func() {
		if err := d.Download(ctx, id, dest, url); err != nil {
			log.WithError(err).WithField("id", id).Error("Download failed")
		}
	}()
}

// Download fetches url into dest. The file only appears at dest once the full
// body has been written; on failure no partial file is left behind.
func (d *Downloader) Download(ctx context.Context, id, dest, url string) (err error) {
	tracker := &progressTracker{id: id, emitter: d.emitter, threshold: d.threshold}
	defer func() {
		metrics.Downloads.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			tracker.fail(err)
		}
	}()

	targetDir := filepath.Dir(dest)
	if err := helpers.CheckAndMakeDir(targetDir); err != nil {
		return fmt.Errorf("%w: creating target directory %s: %v", errs.ErrIO, targetDir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: creating download request for %s: %v", errs.ErrTransport, url, err)
	}
	// Transparent gzip would hide the length the progress total depends on.
	req.Header.Set("Accept-Encoding", "identity")

	log.WithFields(log.Fields{"id": id, "url": url}).Info("Starting download")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: performing request for %s: %v", errs.ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, url)
	}
	if resp.ContentLength < 0 {
		return fmt.Errorf("%w: %s", ErrNoContentLength, url)
	}
	tracker.total = uint64(resp.ContentLength)

	tempFile, err := os.CreateTemp(targetDir, filepath.Base(dest)+".*"+helpers.TempSuffix)
	if err != nil {
		return fmt.Errorf("%w: creating temporary file for %s: %v", errs.ErrIO, dest, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			_ = tempFile.Close()
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	counter := &helpers.CounterWriter{Writer: tempFile, OnWrite: tracker.update}
	log.Debugf("Downloading %s to %s (%s)", url, tempFile.Name(), helpers.BytesToSize(tracker.total))

	if _, err := io.Copy(counter, resp.Body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: download of %s interrupted: %v", errs.ErrTransport, url, err)
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return fmt.Errorf("%w: writing %s: %v", errs.ErrIO, tempFile.Name(), err)
		}
		return fmt.Errorf("%w: reading body of %s: %v", errs.ErrTransport, url, err)
	}
	if counter.Total != tracker.total {
		return fmt.Errorf("%w: got %d of %d bytes from %s", errs.ErrTransport, counter.Total, tracker.total, url)
	}
	metrics.DownloadBytes.Add(float64(counter.Total))

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file %s: %v", errs.ErrIO, tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), dest); err != nil {
		return fmt.Errorf("%w: renaming %s to %s: %v", errs.ErrIO, tempFile.Name(), dest, err)
	}
	shouldCleanupTemp = false

	tracker.finish()
	log.WithFields(log.Fields{"id": id, "dest": dest, "size": helpers.BytesToSize(tracker.total)}).Info("Download complete")
	return nil
}
