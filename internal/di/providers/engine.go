package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/events"
	"github.com/listenupapp/clipdeck/internal/gesture"
	"github.com/listenupapp/clipdeck/internal/logger"
)

// EventBusHandle wraps the event bus with its context for lifecycle management.
type EventBusHandle struct {
	*events.Bus
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventBusHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Bus.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideEventBus provides the change event bus.
func ProvideEventBus(i do.Injector) (*EventBusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	bus := events.NewBus(log.Logger, eventQueueSize)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)

	return &EventBusHandle{Bus: bus, cancel: cancel}, nil
}

// EditorConfig maps engine configuration onto the editor.
func EditorConfig(e config.EngineConfig) editor.Config {
	return editor.Config{
		MinDuration: e.MinDuration.Milliseconds(),
		Gesture: gesture.Config{
			MinDuration:     e.MinDuration.Milliseconds(),
			EdgeHitRadiusPx: e.EdgeHitRadiusPx,
			MoveStartDelay:  e.MoveStartDelay,
		},
		PixelsPerSecond: e.PixelsPerSecond,
		EdgeBufferPx:    e.EdgeBufferPx,
		ImportPolicy:    clips.ImportPolicy(e.ImportPolicy),
	}
}

// ProvideEditor provides the clip editor. Its changes go to the event bus.
func ProvideEditor(i do.Injector) (*editor.Editor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*EventBusHandle](i)

	return editor.New(EditorConfig(cfg.Engine), busHandle.Bus, log.Logger), nil
}
