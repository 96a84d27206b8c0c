package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON value out of a model response. Fenced
// code blocks are preferred over bare objects in the prose, and fences
// tagged as another language are skipped.
func ExtractJSON(response string) (string, error) {
	for _, block := range fencedBlocks(response) {
		if v := firstJSONValue(block); v != "" {
			return v, nil
		}
	}
	if v := firstJSONValue(response); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("response contains no JSON value")
}

// fencedBlocks returns the bodies of markdown code fences whose language
// tag is empty or "json".
func fencedBlocks(s string) []string {
	var blocks []string
	for {
		open := strings.Index(s, "```")
		if open < 0 {
			return blocks
		}
		rest := s[open+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			return blocks
		}
		block := rest[:end]
		s = rest[end+3:]

		tag, body, hasBody := strings.Cut(block, "\n")
		if !hasBody {
			tag, body = "", block
		}
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || tag == "json" {
			blocks = append(blocks, body)
		}
	}
}

// firstJSONValue scans for the first balanced object or array that parses
// as JSON.
func firstJSONValue(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if v := balancedValue(s[i:]); v != "" && json.Valid([]byte(v)) {
			return v
		}
	}
	return ""
}

// balancedValue returns the prefix of s up to the bracket matching s[0].
// Brackets inside string literals do not count toward balance.
func balancedValue(s string) string {
	open, close := s[0], byte('}')
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
