// 文件路径: internal/api/middleware/form.go
// 模块说明: urlencoded 请求体的宽松解析与括号键展开。
package middleware

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// maxArrayIndex bounds numeric keys that turn into array positions; larger
// indices stay object keys so a single a[99999]=x cannot allocate a huge slice.
const maxArrayIndex = 20

// FormPair is one decoded key=value segment, kept in body order.
type FormPair struct {
	Key   string
	Value string
}

// ParseForm splits a urlencoded body on '&' and the first '='. Only '&'
// separates pairs. A segment that fails to unescape keeps its raw text with
// '+' read as a space. Segments with an empty key are dropped.
func ParseForm(raw string) []FormPair {
	var pairs []FormPair
	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		key = unescapeFormText(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, FormPair{Key: key, Value: unescapeFormText(value)})
	}
	return pairs
}

func unescapeFormText(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return strings.ReplaceAll(s, "+", " ")
}

// FormValues flattens pairs into url.Values.
func FormValues(pairs []FormPair) url.Values {
	values := make(url.Values, len(pairs))
	for _, pair := range pairs {
		values.Add(pair.Key, pair.Value)
	}
	return values
}

// ExpandForm turns bracketed form keys into a nested tree:
//
//	a=1&a=2        -> {"a": ["1", "2"]}
//	a[b][c]=d      -> {"a": {"b": {"c": "d"}}}
//	a[]=1&a[]=2    -> {"a": ["1", "2"]}
//	a[1]=y&a[0]=x  -> {"a": ["x", "y"]}
//
// Pairs are applied in body order. Keys nested deeper than depth keep the
// remainder as one literal key.
func ExpandForm(pairs []FormPair, depth int) map[string]any {
	root := make(map[string]any)
	for _, pair := range pairs {
		insertFormValue(root, splitFormKey(pair.Key, depth), pair.Value)
	}
	for key, child := range root {
		root[key] = finalizeFormNode(child)
	}
	return root
}

// splitFormKey splits "a[b][]" into ["a", "b", ""].
func splitFormKey(key string, depth int) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.Contains(key[open:], "]") {
		return []string{key}
	}

	segments := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 && rest[0] == '[' && len(segments) <= depth {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}
	if rest != "" {
		segments = append(segments, rest)
	}
	return segments
}

func insertFormValue(node map[string]any, segments []string, value string) {
	head, rest := segments[0], segments[1:]

	if len(rest) == 0 {
		switch existing := node[head].(type) {
		case nil:
			node[head] = value
		case string:
			node[head] = []any{existing, value}
		case []any:
			node[head] = append(existing, value)
		case map[string]any:
			existing[strconv.Itoa(len(existing))] = value
		}
		return
	}

	if rest[0] == "" {
		list := asList(node[head])
		if len(rest) == 1 {
			node[head] = append(list, value)
			return
		}
		child := make(map[string]any)
		insertFormValue(child, rest[1:], value)
		node[head] = append(list, child)
		return
	}

	child := asObject(node[head])
	node[head] = child
	insertFormValue(child, rest, value)
}

func asList(v any) []any {
	switch existing := v.(type) {
	case nil:
		return nil
	case []any:
		return existing
	case map[string]any:
		if list, ok := indexedList(existing); ok {
			return list
		}
		list := make([]any, 0, len(existing))
		for _, key := range sortedKeys(existing) {
			list = append(list, existing[key])
		}
		return list
	default:
		return []any{existing}
	}
}

func asObject(v any) map[string]any {
	switch existing := v.(type) {
	case map[string]any:
		return existing
	case []any:
		obj := make(map[string]any, len(existing))
		for i, item := range existing {
			obj[strconv.Itoa(i)] = item
		}
		return obj
	case nil:
		return make(map[string]any)
	default:
		return map[string]any{"0": existing}
	}
}

// finalizeFormNode converts objects whose keys are all small indices into arrays.
func finalizeFormNode(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			node[key] = finalizeFormNode(child)
		}
		if list, ok := indexedList(node); ok {
			return list
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = finalizeFormNode(child)
		}
		return node
	default:
		return v
	}
}

func indexedList(node map[string]any) ([]any, bool) {
	if len(node) == 0 {
		return nil, false
	}
	indices := make([]int, 0, len(node))
	for key := range node {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx > maxArrayIndex || strconv.Itoa(idx) != key {
			return nil, false
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	list := make([]any, 0, len(indices))
	for _, idx := range indices {
		list = append(list, node[strconv.Itoa(idx)])
	}
	return list, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
