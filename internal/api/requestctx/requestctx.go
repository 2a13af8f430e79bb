// 文件路径: internal/api/requestctx/requestctx.go
// 模块说明: 在 context 中传递解析后的请求体与语言标识。
package requestctx

import (
	"context"
	"net/url"
)

// BodyKind 标识产生 Body 的解析器。
type BodyKind string

const (
	BodyJSON       BodyKind = "json"
	BodyURLEncoded BodyKind = "urlencoded"
)

// Body 是 body 中间件解析后的请求体。
type Body struct {
	Kind BodyKind
	Raw  []byte
	// Value 为解码后的 JSON 文档或展开后的表单树
	// （嵌套 map[string]any、[]any 与 string 叶子）。
	Value any
	// Form 保存 URL-encoded 请求体的扁平表单值。
	Form url.Values
}

type bodyKey struct{}

// I18nKey 用于在 context 中存储语言标识的 key 类型。
type I18nKey struct{}

// WithBody 附加解析结果供下游 handler 使用。
func WithBody(ctx context.Context, body Body) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// BodyFromContext 返回解析后的请求体；未解析时 ok 为 false。
func BodyFromContext(ctx context.Context) (Body, bool) {
	if ctx == nil {
		return Body{}, false
	}
	body, ok := ctx.Value(bodyKey{}).(Body)
	return body, ok
}

// WithLanguage 将语言标识附加到 context 中供下游使用。
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, I18nKey{}, lang)
}

// GetLanguage 从 context 中获取语言标识，若未设置则返回默认值 "en-US"。
func GetLanguage(ctx context.Context) string {
	if ctx == nil {
		return "en-US"
	}
	if lang, ok := ctx.Value(I18nKey{}).(string); ok {
		return lang
	}
	return "en-US"
}
