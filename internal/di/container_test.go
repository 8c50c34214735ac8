package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/di/providers"
	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/logger"
	"github.com/listenupapp/clipdeck/internal/search"
	"github.com/listenupapp/clipdeck/internal/store/sqlite"
)

func testInjector(t *testing.T, extra ...string) (*do.RootScope, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	args := append([]string{
		"-env-file", filepath.Join(dir, "missing.env"),
		"-db-path", filepath.Join(dir, "clips.db"),
		"-port", "0",
		"-autosave-interval", "10ms",
	}, extra...)
	cfg, err := config.Load(args)
	require.NoError(t, err)

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger.Discard())
	Register(injector)
	return injector, cfg
}

func TestBootstrap_WiresEditorToStorageAndSearch(t *testing.T) {
	injector, cfg := testInjector(t)
	require.NoError(t, Bootstrap(injector))

	ed := do.MustInvoke[*editor.Editor](injector)
	_, err := ed.OpenTimeline(domain.Timeline{ID: "tl-1", DurationMs: 60_000, PixelsPerSecond: 100})
	require.NoError(t, err)
	_, err = ed.Import("tl-1", []clips.ImportedClip{
		{Start: 1_000, End: 3_000, Fields: map[string]string{domain.TranscriptionField: "hello there"}},
	}, clips.ImportReplace)
	require.NoError(t, err)

	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
	require.Eventually(t, func() bool {
		saved, err := storeHandle.ListTimelines(context.Background())
		return err == nil && len(saved) == 1 && saved[0].ClipCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	searchHandle := do.MustInvoke[*providers.SearchIndexHandle](injector)
	require.NotNil(t, searchHandle.SearchIndex)
	require.Eventually(t, func() bool {
		res, err := searchHandle.Search(context.Background(), search.SearchParams{Query: "hello", Limit: 10})
		return err == nil && res.Total == 1
	}, 2*time.Second, 10*time.Millisecond)

	_ = injector.Shutdown()

	store, err := sqlite.Open(cfg.Storage.DatabasePath, logger.Discard().Logger)
	require.NoError(t, err)
	defer store.Close()
	snap, err := store.LoadSnapshot(context.Background(), "tl-1")
	require.NoError(t, err)
	assert.Len(t, snap.Clips, 1)
}

func TestBootstrap_OptionalServicesDisabled(t *testing.T) {
	injector, _ := testInjector(t, "-search=false", "-autosave=false")
	require.NoError(t, Bootstrap(injector))
	defer injector.Shutdown()

	assert.Nil(t, do.MustInvoke[*providers.SearchIndexHandle](injector).SearchIndex)
	assert.Nil(t, do.MustInvoke[*providers.AutosaveHandle](injector).Worker)
	assert.NotNil(t, do.MustInvoke[*providers.HTTPServerHandle](injector).Handler)
}

func TestEditorConfig(t *testing.T) {
	engine := config.DefaultEngine()
	engine.ImportPolicy = config.ImportPolicyMerge

	got := providers.EditorConfig(engine)
	assert.Equal(t, engine.MinDuration.Milliseconds(), got.MinDuration)
	assert.Equal(t, got.MinDuration, got.Gesture.MinDuration)
	assert.Equal(t, engine.MoveStartDelay, got.Gesture.MoveStartDelay)
	assert.Equal(t, clips.ImportMerge, got.ImportPolicy)
}
