package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// SaveOptions controls how SaveResponse writes a body to disk.
type SaveOptions struct {
	// Progress receives a progress bar. Nil disables it.
	Progress io.Writer
	// Limiter throttles the copy. Nil means unlimited.
	Limiter *RateLimiter
}

// createFile opens the destination of SaveResponse.
var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

// SaveResponse streams the body of resp into path and closes the body. The
// partial file is removed when the copy or the final close fails.
func SaveResponse(ctx context.Context, resp *http.Response, path string, opts SaveOptions) (int64, error) {
	defer closeResponseBody(resp)

	if dir := filepath.Dir(path); dir != "" {
		if err := ensureDirExists(dir); err != nil {
			return 0, err
		}
	}
	file, err := createFile(path)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to create file %s", path)
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	var src io.Reader = opts.Limiter.Reader(resp.Body)
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions64(
			resp.ContentLength, // -1 shows a spinner
			progressbar.OptionSetDescription(fmt.Sprintf("Saving %s", filepath.Base(path))),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionThrottle(500*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetPredictTime(false),
		)
		reader := progressbar.NewReader(src, bar)
		src = &reader
	}

	buffer := make([]byte, 32*1024)
	n, err := io.CopyBuffer(file, src, buffer)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Info().Msgf("Save cancelled while copying %s", path)
		} else {
			log.Error().Err(err).Msgf("Failed to save response body to %s", path)
		}
		_ = file.Close()
		_ = os.Remove(path)
		return n, fmt.Errorf("failed to save %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		log.Error().Err(err).Msgf("Failed to close %s", path)
		_ = os.Remove(path)
		return n, fmt.Errorf("failed to save %s: %w", path, err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return n, nil
}

func ensureDirExists(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path %s exists but is not a directory", path)
		}
		return nil
	}
	if os.IsNotExist(err) {
		log.Debug().Msgf("Creating directory: %s", path)
		return os.MkdirAll(path, 0o755)
	}
	return err
}
