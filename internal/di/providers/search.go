package providers

import (
	"context"
	"sync"

	"github.com/samber/do/v2"

	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/logger"
	"github.com/listenupapp/clipdeck/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// SearchIndex is nil when search is disabled.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.SearchIndex == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search disabled by configuration")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Search.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	// Documents of timelines closed while we were down are stale.
	if err := index.Rebuild(); err != nil {
		_ = index.Close()
		return nil, err
	}

	log.Info("Search index initialized", "path", cfg.Search.DataPath)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// SearchIndexerHandle runs the indexer on bus events.
type SearchIndexerHandle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsub  func()
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexerHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	h.wg.Wait()
	h.unsub()
	return nil
}

// ProvideSearchIndexer subscribes the indexer to editor events.
func ProvideSearchIndexer(i do.Injector) (*SearchIndexerHandle, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	if indexHandle.SearchIndex == nil {
		return &SearchIndexerHandle{}, nil
	}
	busHandle := do.MustInvoke[*EventBusHandle](i)
	ed := do.MustInvoke[*editor.Editor](i)
	log := do.MustInvoke[*logger.Logger](i)

	sub, err := busHandle.Subscribe("search", "")
	if err != nil {
		return nil, err
	}

	indexer := search.NewIndexer(indexHandle.SearchIndex, ed, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &SearchIndexerHandle{
		cancel: cancel,
		unsub:  func() { busHandle.Unsubscribe(sub.ID) },
	}
	h.wg.Go(func() { indexer.Run(ctx, sub.Events) })

	return h, nil
}
