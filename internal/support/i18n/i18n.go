// 文件路径: internal/support/i18n/i18n.go
// 模块说明: 内嵌语言包加载与翻译。
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var embeddedLocales embed.FS

// Manager 管理错误消息的翻译内容。加载完成后只读，可并发使用。
type Manager struct {
	defaultLang  string
	translations map[string]map[string]string
	supported    []string
	matcher      language.Matcher
	logger       *slog.Logger
}

// Option 用于配置 Manager。
type Option func(*Manager)

// WithLogger 设置 Manager 使用的日志实例。
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDefaultLang 设置默认语言。
func WithDefaultLang(lang string) Option {
	return func(m *Manager) {
		m.defaultLang = lang
	}
}

// NewManager 创建 i18n Manager 并加载内嵌语言包。
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		defaultLang:  "en-US",
		translations: make(map[string]map[string]string),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.loadEmbeddedTranslations(); err != nil {
		return nil, err
	}
	if _, ok := m.translations[m.defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no locale file", m.defaultLang)
	}

	// 默认语言放在首位，匹配失败时回退到它。
	tags := []language.Tag{language.Make(m.defaultLang)}
	m.supported = []string{m.defaultLang}
	langs := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		if lang != m.defaultLang {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	for _, lang := range langs {
		tags = append(tags, language.Make(lang))
		m.supported = append(m.supported, lang)
	}
	m.matcher = language.NewMatcher(tags)

	return m, nil
}

func (m *Manager) loadEmbeddedTranslations() error {
	entries, err := embeddedLocales.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("failed to read locales directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(entry.Name(), ".json")
		data, err := embeddedLocales.ReadFile("locales/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", entry.Name(), err)
		}

		var content map[string]string
		if err := json.Unmarshal(data, &content); err != nil {
			return fmt.Errorf("failed to unmarshal locale file %s: %w", entry.Name(), err)
		}
		m.translations[lang] = content
	}

	return nil
}

// Match 为给定偏好选择最合适的语言，每项可以是单个标签（"pt"）
// 或完整的 Accept-Language 头。
func (m *Manager) Match(prefs ...string) string {
	var tags []language.Tag
	for _, pref := range prefs {
		if strings.TrimSpace(pref) == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			m.logger.Debug("ignoring unparsable language preference", "value", pref, "error", err)
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return m.defaultLang
	}
	_, idx, confidence := m.matcher.Match(tags...)
	if confidence == language.No {
		return m.defaultLang
	}
	return m.supported[idx]
}

// Translate 按语言与键名返回翻译内容，缺失时回退到默认语言，再回退为 key。
func (m *Manager) Translate(lang, key string, args ...interface{}) string {
	if tag, err := language.Parse(lang); err == nil {
		lang = tag.String()
	}

	for _, candidate := range []string{lang, m.defaultLang} {
		trans, ok := m.translations[candidate]
		if !ok {
			continue
		}
		if val, ok := trans[key]; ok {
			if len(args) > 0 {
				return fmt.Sprintf(val, args...)
			}
			return val
		}
	}

	return key
}

// Supported 返回支持的语言列表，默认语言排在第一位。
func (m *Manager) Supported() []string {
	return append([]string(nil), m.supported...)
}
