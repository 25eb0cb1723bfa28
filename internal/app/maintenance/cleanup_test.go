package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/voiceclone/internal/middleware"
)

func TestRunOnceEvictsExpiredLimiterEntries(t *testing.T) {
	base := time.Now()
	clock := base
	limiter := middleware.NewLimiter().WithClock(func() time.Time { return clock })

	limiter.Check("stale", 5, time.Minute)
	limiter.Check("fresh", 5, time.Hour)

	clock = base.Add(5 * time.Minute)
	cleaner := NewCleaner(limiter, "", 0, WithNow(func() time.Time { return clock }))

	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.Equal(t, 1, limiter.Len())
}

func TestRunOncePrunesStaleAudioFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.mp3")
	fresh := filepath.Join(dir, "fresh.wav")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	cleaner := NewCleaner(nil, dir, 24*time.Hour)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err), "stale file should be removed")

	_, err = os.Stat(fresh)
	require.NoError(t, err, "fresh file should survive")
}

func TestRunOnceToleratesMissingAudioDir(t *testing.T) {
	cleaner := NewCleaner(nil, filepath.Join(t.TempDir(), "missing"), time.Hour)
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	cleaner := NewCleaner(middleware.NewLimiter(), "", 0, WithSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())

	ctx := cleaner.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cleaner := NewCleaner(nil, "", 0, WithSchedule("not-a-spec"))
	require.Error(t, cleaner.Start())
}
