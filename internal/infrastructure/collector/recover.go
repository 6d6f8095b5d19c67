package collectors

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?i)```(?:json)?\\s*([\\s\\S]*?)```")

// RecoverJSON extracts a JSON value from generation output that is not
// guaranteed to be clean JSON. Backends wrap valid payloads in prose,
// markdown fences, or diagnostic banners, so recovery is layered: direct
// parse, fenced block, balanced-bracket array scan, then balanced-brace
// object scan. The first layer that yields valid JSON wins.
func RecoverJSON(text string) (any, error) {
	s := strings.TrimSpace(text)

	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, nil
	}

	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		inner := strings.TrimSpace(m[1])
		if err := json.Unmarshal([]byte(inner), &v); err == nil {
			return v, nil
		}
		// Keep scanning inside the fence; the fence may still wrap
		// prose around the actual array.
		s = inner
	}

	if arr, ok := scanArray(s); ok {
		return arr, nil
	}

	if obj, ok := scanObject(s); ok {
		if m, isMap := obj.(map[string]any); isMap {
			if items, has := m["items"]; has {
				return items, nil
			}
		}
		return obj, nil
	}

	head := s
	if len(head) > 120 {
		head = head[:120]
	}
	return nil, fmt.Errorf("no JSON payload recovered from output head: %s", head)
}

// scanArray finds the first '[' and walks to its balanced ']'. Bracket
// characters inside string literals are rare enough in practice that this
// level deliberately does not track quoting.
func scanArray(s string) (any, bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return nil, false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				var v any
				if err := json.Unmarshal([]byte(s[start:i+1]), &v); err == nil {
					return v, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}

// scanObject finds the first '{' and walks to its balanced '}', tracking
// string literals and escapes so braces inside strings do not affect depth.
func scanObject(s string) (any, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return nil, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var v any
				if err := json.Unmarshal([]byte(s[start:i+1]), &v); err == nil {
					return v, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}
