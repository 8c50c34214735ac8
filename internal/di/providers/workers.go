package providers

import (
	"context"
	"sync"

	"github.com/samber/do/v2"

	"github.com/listenupapp/clipdeck/internal/autosave"
	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/logger"
)

// AutosaveHandle runs the autosave worker on bus events.
// Worker is nil when autosave is disabled.
type AutosaveHandle struct {
	*autosave.Worker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsub  func()
}

// Shutdown implements do.Shutdownable. The worker flushes dirty timelines
// before it returns.
func (h *AutosaveHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	h.wg.Wait()
	h.unsub()
	return nil
}

// ProvideAutosave provides the autosave worker.
func ProvideAutosave(i do.Injector) (*AutosaveHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Autosave.Enabled {
		log.Info("Autosave disabled by configuration")
		return &AutosaveHandle{}, nil
	}

	busHandle := do.MustInvoke[*EventBusHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	ed := do.MustInvoke[*editor.Editor](i)

	sub, err := busHandle.Subscribe("autosave", "")
	if err != nil {
		return nil, err
	}

	worker := autosave.New(cfg.Autosave.Interval, ed, storeHandle.Store, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &AutosaveHandle{
		Worker: worker,
		cancel: cancel,
		unsub:  func() { busHandle.Unsubscribe(sub.ID) },
	}
	h.wg.Go(func() { worker.Run(ctx, sub.Events) })

	return h, nil
}
