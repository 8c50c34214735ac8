package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/clipdeck/internal/api"
	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/logger"
	"github.com/listenupapp/clipdeck/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	ed := do.MustInvoke[*editor.Editor](i)
	busHandle := do.MustInvoke[*EventBusHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	autosaveHandle := do.MustInvoke[*AutosaveHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	// Started for its side effect of keeping the index current.
	_ = do.MustInvoke[*SearchIndexerHandle](i)

	services := api.Services{
		Editor:    ed,
		Snapshots: storeHandle.Store,
		Events:    sse.NewHandler(busHandle.Bus, 0, log.Logger),
		Bus:       busHandle.Bus,
	}
	// Leave interface fields nil rather than holding typed nil pointers.
	if autosaveHandle.Worker != nil {
		services.Autosave = autosaveHandle.Worker
	}
	if searchHandle.SearchIndex != nil {
		services.Search = searchHandle.SearchIndex
	}

	handler := api.NewServer(services, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
