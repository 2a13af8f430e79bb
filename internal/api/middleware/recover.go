// 文件路径: internal/api/middleware/recover.go
// 模块说明: 捕获 panic 并转为内部错误。
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/creamcroissant/apiserver/internal/apperr"
)

// Recover turns a panic anywhere below it into an internal error handed to
// the error handler, so panics and returned errors share one response path.
func Recover(errs apperr.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				errs.ServeError(w, r, apperr.Internal(fmt.Errorf("panic: %v\n%s", rec, debug.Stack())))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
