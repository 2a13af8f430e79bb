// 文件路径: internal/api/handler/errors.go
// 模块说明: 终端错误处理器，所有错误响应都在这里生成。
package handler

import (
	"log/slog"
	"mime"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/creamcroissant/apiserver/internal/api/requestctx"
	"github.com/creamcroissant/apiserver/internal/apperr"
	"github.com/creamcroissant/apiserver/internal/support/i18n"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler is the terminal error stage: every failure raised by
// middleware or handlers ends up in ServeError, which is the only place
// error responses are built.
type ErrorHandler struct {
	logger *slog.Logger
	i18n   *i18n.Manager
}

// NewErrorHandler creates the terminal error handler.
func NewErrorHandler(logger *slog.Logger, i18nMgr *i18n.Manager) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger, i18n: i18nMgr}
}

// ServeError implements apperr.Responder. Only the translated message of the
// error kind reaches the client; the cause is logged.
func (h *ErrorHandler) ServeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	status := appErr.Status()
	requestID := chiMiddleware.GetReqID(r.Context())

	attrs := []any{
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", string(appErr.Kind),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", attrs...)
	}

	respondJSON(w, status, ErrorResponse{
		Error:     h.message(r, appErr),
		Code:      string(appErr.Kind),
		RequestID: requestID,
	})
}

func (h *ErrorHandler) message(r *http.Request, appErr *apperr.Error) string {
	key := appErr.Key
	if key == "" {
		key = "error.internal"
	}
	if h.i18n == nil {
		return key
	}
	lang := requestctx.GetLanguage(r.Context())
	if key == "error.unsupported_charset" {
		return h.i18n.Translate(lang, key, charsetOf(r))
	}
	return h.i18n.Translate(lang, key)
}

func charsetOf(r *http.Request) string {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return params["charset"]
}
