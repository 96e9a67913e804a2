// Package evidence captures durable proof of an alert (a full-page
// screenshot) and prunes old artifacts on a schedule. Capture is strictly
// best-effort: its failure must never suppress or delay the alert itself.
package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pagewatch/pkg/logx"
)

// filenameFormat yields UTC timestamp-named artifacts, e.g.
// 20260830T142501Z.png.
const filenameFormat = "20060102T150405Z"

// Screenshotter is the secondary-fetch capability used for capture.
type Screenshotter interface {
	Screenshot(ctx context.Context, url string) ([]byte, error)
}

// Capture writes alert screenshots into a fixed directory.
type Capture struct {
	dir     string
	shooter Screenshotter
	log     logx.Logger

	now func() time.Time
}

func NewCapture(dir string, shooter Screenshotter, log logx.Logger) *Capture {
	return &Capture{dir: dir, shooter: shooter, log: log, now: time.Now}
}

// Take performs an independent fetch of the URL and stores the screenshot.
// Returns the artifact path on success.
func (c *Capture) Take(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("evidence: create dir: %w", err)
	}

	png, err := c.shooter.Screenshot(ctx, url)
	if err != nil {
		return "", fmt.Errorf("evidence: screenshot %s: %w", url, err)
	}

	path := filepath.Join(c.dir, c.now().UTC().Format(filenameFormat)+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("evidence: write %s: %w", path, err)
	}

	c.log.Info("evidence captured", logx.String("url", url), logx.String("path", path))
	return path, nil
}
