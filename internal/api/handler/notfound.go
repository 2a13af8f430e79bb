// 文件路径: internal/api/handler/notfound.go
// 模块说明: 未匹配路由的 404 响应。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/microcosm-cc/bluemonday"

	"github.com/creamcroissant/apiserver/internal/api/requestctx"
	"github.com/creamcroissant/apiserver/internal/support/i18n"
)

// NotFoundResponse is returned when no route matched.
type NotFoundResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// NotFound answers unmatched routes with a JSON 404. It never goes through
// the error handler. The echoed path is stripped of markup.
func NotFound(logger *slog.Logger, i18nMgr *i18n.Manager) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	sanitizer := bluemonday.StrictPolicy()

	return func(w http.ResponseWriter, r *http.Request) {
		logger.DebugContext(r.Context(), "unmapped route hit", "method", r.Method, "path", r.URL.Path)

		msg := "error.not_found"
		if i18nMgr != nil {
			msg = i18nMgr.Translate(requestctx.GetLanguage(r.Context()), msg)
		}
		respondJSON(w, http.StatusNotFound, NotFoundResponse{
			Error:  msg,
			Code:   "not_found",
			Method: r.Method,
			Path:   sanitizer.Sanitize(r.URL.Path),
		})
	}
}
