package app

import (
	"net/http"

	"github.com/MrWong99/fearkeeper/internal/config"
)

// ApplyConfigChange runs the hot-reload callback without a file watcher.
func (a *App) ApplyConfigChange(old, new *config.Config) { a.onConfigChange(old, new) }

// Handler exposes the HTTP handler without opening a listener.
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }
