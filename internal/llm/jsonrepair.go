package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON means no balanced JSON object or array could be found in the
// oracle output.
var ErrNoJSON = errors.New("no JSON value in oracle output")

// ExtractJSON recovers a JSON object or array from model output. It accepts
// markdown code fences, prose before the first '{' or '[', prose after the
// matching closing bracket, '//' line comments outside strings, trailing
// commas before '}' or ']', and surrounding whitespace. The returned text is
// not validated beyond bracket balance.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(strings.TrimSpace(raw))

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}

	var (
		out      strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			out.WriteByte(ch)
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
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				// leave the newline for the next iteration
				i--
				continue
			}
		case '{', '[':
			stack = append(stack, closerFor(ch))
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return "", fmt.Errorf("%w: unbalanced %q", ErrNoJSON, ch)
			}
			stack = stack[:len(stack)-1]
			trimTrailingComma(&out)
			out.WriteByte(ch)
			if len(stack) == 0 {
				return out.String(), nil
			}
			continue
		}
		out.WriteByte(ch)
	}
	return "", fmt.Errorf("%w: unterminated value", ErrNoJSON)
}

// DecodeJSON extracts a JSON value from raw and unmarshals it into v.
func DecodeJSON(raw string, v any) error {
	text, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decode oracle JSON: %w", err)
	}
	return nil
}

// DecodeObject decodes raw into a generic object for field-by-field repair.
// It returns nil when nothing usable is found.
func DecodeObject(raw string) map[string]any {
	var obj map[string]any
	if err := DecodeJSON(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func closerFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

// stripFences keeps the body of the first fenced block, if there is one.
func stripFences(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

// trimTrailingComma drops a comma (and the whitespace after it) written just
// before a closing bracket.
func trimTrailingComma(b *strings.Builder) {
	s := b.String()
	t := strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(t, ",") {
		b.Reset()
		b.WriteString(t[:len(t)-1])
	}
}
