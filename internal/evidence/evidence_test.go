package evidence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pagewatch/pkg/logx"
)

type fakeShooter struct {
	png []byte
	err error
}

func (f *fakeShooter) Screenshot(context.Context, string) ([]byte, error) {
	return f.png, f.err
}

func TestTakeWritesTimestampedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screens")
	c := NewCapture(dir, &fakeShooter{png: []byte("png-bytes")}, logx.Nop())
	c.now = func() time.Time {
		return time.Date(2026, 8, 30, 14, 25, 1, 0, time.UTC)
	}

	path, err := c.Take(context.Background(), "https://a.test")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if filepath.Base(path) != "20260830T142501Z.png" {
		t.Fatalf("path = %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(b) != "png-bytes" {
		t.Fatalf("artifact content = %q", b)
	}
}

func TestTakeReportsScreenshotFailure(t *testing.T) {
	c := NewCapture(t.TempDir(), &fakeShooter{err: errors.New("page gone")}, logx.Nop())
	if _, err := c.Take(context.Background(), "https://a.test"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSweepRemovesOnlyExpiredScreenshots(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	old := filepath.Join(dir, "20260801T000000Z.png")
	fresh := filepath.Join(dir, "20260830T000000Z.png")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(old, now.Add(-10*24*time.Hour), now.Add(-10*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(dir, 7*24*time.Hour, "@daily", logx.Nop())
	s.now = func() time.Time { return now }
	s.Sweep()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired screenshot should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh screenshot should survive: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("non-png file should survive: %v", err)
	}
}

func TestSweepMissingDirIsQuiet(t *testing.T) {
	s := NewSweeper(filepath.Join(t.TempDir(), "absent"), time.Hour, "@daily", logx.Nop())
	s.Sweep()
}

func TestSweeperDisabledByZeroRetention(t *testing.T) {
	s := NewSweeper(t.TempDir(), 0, "@daily", logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
