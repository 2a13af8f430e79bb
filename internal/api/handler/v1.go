// 文件路径: internal/api/handler/v1.go
// 模块说明: /api/v1 默认路由与返回 error 的 handler 适配器。
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/creamcroissant/apiserver/internal/apperr"
)

// Func is an http.HandlerFunc that may fail; failures go to the error handler.
type Func func(w http.ResponseWriter, r *http.Request) error

// Adapter converts Funcs into http.Handlers bound to one error handler.
type Adapter struct {
	errs apperr.Responder
}

// NewAdapter binds handlers to errs.
func NewAdapter(errs apperr.Responder) Adapter {
	return Adapter{errs: errs}
}

// Handle wraps fn.
func (a Adapter) Handle(fn Func) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			a.errs.ServeError(w, r, err)
		}
	}
}

// ServiceInfo describes the running build.
type ServiceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewV1Router is the default /api/v1 collaborator. Deployments mount their
// own business router in its place; this one only describes the service.
func NewV1Router(errs apperr.Responder, info ServiceInfo) http.Handler {
	adapter := NewAdapter(errs)
	r := chi.NewRouter()
	r.Get("/", adapter.Handle(func(w http.ResponseWriter, _ *http.Request) error {
		respondJSON(w, http.StatusOK, info)
		return nil
	}))
	return r
}
