// Package jsonrepair recovers usable JSON from LLM output: fenced, padded
// with prose, sprinkled with stray commas, or cut off mid-array.
package jsonrepair

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var ErrUnrecoverable = errors.New("jsonrepair: output is not recoverable JSON")

type Strategy string

const (
	StrategyDirect     Strategy = "direct"
	StrategyTruncation Strategy = "truncation"
)

type Result struct {
	JSON         []byte
	Strategy     Strategy
	ItemsDropped int
}

// Repair returns valid JSON for raw, trying a cleaned direct parse first and
// then truncating the outermost array after its last complete element.
func Repair(raw string) (Result, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Result{}, ErrUnrecoverable
	}
	if json.Valid([]byte(cleaned)) {
		return Result{JSON: []byte(cleaned), Strategy: StrategyDirect}, nil
	}
	out, dropped, ok := truncateArray(cleaned)
	if !ok || !json.Valid(out) {
		return Result{}, ErrUnrecoverable
	}
	return Result{JSON: out, Strategy: StrategyTruncation, ItemsDropped: dropped}, nil
}

// Clean strips markdown fences, leading prose, trailing prose after a
// complete value, and trailing or duplicate commas outside strings.
func Clean(raw string) string {
	s := strings.TrimSpace(stripFences(raw))
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	s = s[start:]
	s = dropStrayCommas(s)
	if end := valueEnd(s); end > 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func stripFences(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// skip the language tag line
		if !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
	}
	if close := strings.LastIndex(body, "```"); close >= 0 {
		body = body[:close]
	}
	return body
}

// dropStrayCommas removes commas directly followed by a closer or another
// comma, ignoring string contents.
func dropStrayCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			b.WriteByte(ch)
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		if ch == '"' {
			inStr = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == ',' || s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// valueEnd is the offset just past the first complete top-level value, or -1.
func valueEnd(s string) int {
	depth := 0
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// truncateArray cuts s after the last complete element of the first array
// still open at EOF and closes every container left open at that point.
// Arrays that close cleanly before it, such as a leading metadata field,
// are kept whole.
func truncateArray(s string) ([]byte, int, bool) {
	var (
		stack      []byte
		outer      []byte
		arrayDepth = -1
		arrayOpen  = -1
		lastEnd    = -1
		started    int
		completed  int
		inElem     bool
		inStr, esc bool
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		atArray := arrayDepth > 0 && len(stack) == arrayDepth
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
				if atArray && inElem {
					completed++
					inElem = false
					lastEnd = i + 1
				}
			}
			continue
		}
		if isSpace(ch) {
			continue
		}
		if atArray && !inElem && ch != ',' && ch != ']' {
			started++
			inElem = true
		}
		switch ch {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, ch)
			if ch == '[' && arrayDepth < 0 {
				arrayDepth = len(stack)
				arrayOpen = i
				outer = append([]byte(nil), stack...)
			}
		case '}', ']':
			if len(stack) == 0 {
				return nil, 0, false
			}
			if arrayDepth > 0 && len(stack) == arrayDepth && ch == ']' {
				// tracked array closed cleanly; watch for the next one
				stack = stack[:len(stack)-1]
				arrayDepth, arrayOpen, lastEnd = -1, -1, -1
				started, completed = 0, 0
				inElem = false
				outer = nil
				continue
			}
			stack = stack[:len(stack)-1]
			if arrayDepth > 0 && len(stack) == arrayDepth && inElem {
				completed++
				inElem = false
				lastEnd = i + 1
			}
		case ',':
			if atArray && inElem {
				// scalar element ended
				completed++
				inElem = false
				lastEnd = i
			}
		}
	}
	if arrayDepth < 0 {
		return nil, 0, false
	}
	cut := lastEnd
	if cut < 0 {
		cut = arrayOpen + 1
	}
	var buf bytes.Buffer
	buf.WriteString(strings.TrimRight(s[:cut], " \t\r\n,"))
	for i := len(outer) - 1; i >= 0; i-- {
		if outer[i] == '[' {
			buf.WriteByte(']')
		} else {
			buf.WriteByte('}')
		}
	}
	return buf.Bytes(), started - completed, true
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
