// 文件路径: internal/api/middleware/i18n.go
// 模块说明: 根据 Accept-Language 选择语言并写入 context。
package middleware

import (
	"net/http"

	"github.com/creamcroissant/apiserver/internal/api/requestctx"
	"github.com/creamcroissant/apiserver/internal/support/i18n"
)

// I18n middleware detects the client's preferred language for error messages
// and stores it in the context. Precedence: ?lang, X-I18N-Lang, Accept-Language.
func I18n(manager *i18n.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := manager.Match(
				r.URL.Query().Get("lang"),
				r.Header.Get("X-I18N-Lang"),
				r.Header.Get("Accept-Language"),
			)
			w.Header().Set("Content-Language", lang)
			next.ServeHTTP(w, r.WithContext(requestctx.WithLanguage(r.Context(), lang)))
		})
	}
}
