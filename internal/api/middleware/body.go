// 文件路径: internal/api/middleware/body.go
// 模块说明: JSON 与 urlencoded 请求体解析，结果写入请求上下文。
package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/creamcroissant/apiserver/internal/api/requestctx"
	"github.com/creamcroissant/apiserver/internal/apperr"
)

// BodyParserConfig 请求体解析配置
type BodyParserConfig struct {
	MaxBytes       int64    // 最大字节数
	ParameterLimit int      // URL-encoded 参数个数上限
	Depth          int      // 嵌套 key 的最大深度
	SkipPaths      []string // 跳过的路径
	Errors         apperr.Responder
}

// DefaultBodyParserConfig 默认配置（100KB，1000 个参数，深度 5）
func DefaultBodyParserConfig() BodyParserConfig {
	return BodyParserConfig{
		MaxBytes:       100 * 1024,
		ParameterLimit: 1000,
		Depth:          5,
	}
}

// BodyParser 将 JSON 与 urlencoded 请求体解析进请求上下文，其他类型原样放行。
// 原始字节会回填到 r.Body，后续 handler 仍可读取。
func BodyParser(config BodyParserConfig) func(http.Handler) http.Handler {
	defaults := DefaultBodyParserConfig()
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaults.MaxBytes
	}
	if config.ParameterLimit <= 0 {
		config.ParameterLimit = defaults.ParameterLimit
	}
	if config.Depth <= 0 {
		config.Depth = defaults.Depth
	}
	skipPaths := pathSet(config.SkipPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] || !hasBody(r) {
				next.ServeHTTP(w, r)
				return
			}

			kind, charset, ok := bodyKind(r.Header.Get("Content-Type"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if charset != "" && !isUTF8(charset) {
				config.Errors.ServeError(w, r, apperr.New(apperr.KindUnsupportedMediaType, "error.unsupported_charset",
					fmt.Errorf("unsupported charset %q", charset)))
				return
			}

			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					config.Errors.ServeError(w, r, apperr.New(apperr.KindPayloadTooLarge, "error.payload_too_large", err))
					return
				}
				config.Errors.ServeError(w, r, apperr.BadRequest("error.invalid_form", fmt.Errorf("read body: %w", err)))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			body := requestctx.Body{Kind: kind, Raw: raw}
			switch kind {
			case requestctx.BodyJSON:
				value, err := decodeJSONBody(raw)
				if err != nil {
					config.Errors.ServeError(w, r, apperr.BadRequest("error.invalid_json", err))
					return
				}
				body.Value = value
			case requestctx.BodyURLEncoded:
				if n := strings.Count(string(raw), "&") + 1; n > config.ParameterLimit {
					config.Errors.ServeError(w, r, apperr.New(apperr.KindPayloadTooLarge, "error.too_many_parameters",
						fmt.Errorf("%d parameters exceed limit %d", n, config.ParameterLimit)))
					return
				}
				pairs := ParseForm(string(raw))
				body.Form = FormValues(pairs)
				body.Value = ExpandForm(pairs, config.Depth)
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithBody(r.Context(), body)))
		})
	}
}

func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	return r.ContentLength != 0
}

func bodyKind(contentType string) (requestctx.BodyKind, string, bool) {
	if contentType == "" {
		return "", "", false
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", false
	}
	switch {
	case mediaType == "application/json":
		return requestctx.BodyJSON, params["charset"], true
	case mediaType == "application/x-www-form-urlencoded":
		return requestctx.BodyURLEncoded, params["charset"], true
	}
	return "", "", false
}

func isUTF8(charset string) bool {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// decodeJSONBody 只接受单个顶层对象或数组；空请求体视为 {}。
func decodeJSONBody(raw []byte) (any, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, fmt.Errorf("unexpected token %q, expected object or array", trimmed[0])
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return value, nil
}
