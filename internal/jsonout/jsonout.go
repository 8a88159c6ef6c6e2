// Package jsonout parses model replies that are expected to carry a JSON
// object with a top-level "Result" member.
package jsonout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const ResultKey = "Result"

var (
	ErrJSONParse     = errors.New("json parse error")
	ErrMissingResult = errors.New("json not contain Result")
)

// Kind is the JSON type a Result value must have.
type Kind int

const (
	KindAny Kind = iota
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// Parse decodes the first JSON object in text. Markdown code fences and
// surrounding prose are tolerated, and so are replies cut off mid-object and
// raw control characters inside strings.
func Parse(text string) (map[string]any, error) {
	obj, _, err := decode(text)
	return obj, err
}

func decode(text string) (map[string]any, json.RawMessage, error) {
	candidate := stripFences(strings.TrimSpace(text))

	start := strings.Index(candidate, "{")
	if start < 0 {
		return nil, nil, fmt.Errorf("%w: no JSON object found", ErrJSONParse)
	}

	body, closers := repair(candidate[start:])

	var firstErr error
	for body != "" {
		obj, raw, err := decodeObject(body + closers)
		if err == nil {
			return obj, raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		_, size := utf8.DecodeLastRuneInString(body)
		body = body[:len(body)-size]
	}
	return nil, nil, fmt.Errorf("%w: %v", ErrJSONParse, firstErr)
}

func decodeObject(s string) (map[string]any, json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&raw); err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, nil, err
	}
	return obj, raw, nil
}

// repair escapes raw control characters inside string literals and returns
// the suffix that closes whatever string, array or object is still open at
// the end of s.
func repair(s string) (string, string) {
	out := make([]byte, 0, len(s)+8)
	var closers []byte
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c < 0x20:
				out = append(out, controlEscape(c)...)
				continue
			}
			out = append(out, c)
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if n := len(closers); n > 0 && closers[n-1] == c {
				closers = closers[:n-1]
			}
		}
		out = append(out, c)
	}

	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out = append(out, '"')
	}

	suffix := make([]byte, 0, len(closers))
	for i := len(closers) - 1; i >= 0; i-- {
		suffix = append(suffix, closers[i])
	}
	return string(out), string(suffix)
}

func controlEscape(c byte) string {
	switch c {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	default:
		return fmt.Sprintf(`\u%04x`, c)
	}
}

// ExtractResult checks that obj carries a Result member of the given kind.
func ExtractResult(obj map[string]any, kind Kind) (any, error) {
	result, ok := obj[ResultKey]
	if !ok {
		return nil, ErrMissingResult
	}

	switch kind {
	case KindList:
		if _, ok := result.([]any); !ok {
			return nil, fmt.Errorf("%w: expected %s", ErrMissingResult, kind)
		}
	case KindObject:
		if _, ok := result.(map[string]any); !ok {
			return nil, fmt.Errorf("%w: expected %s", ErrMissingResult, kind)
		}
	}
	return result, nil
}

// ParseResult runs Parse and ExtractResult and returns the object as Dumps
// prints it.
func ParseResult(text string, kind Kind) (string, error) {
	obj, raw, err := decode(text)
	if err != nil {
		return "", err
	}
	if _, err := ExtractResult(obj, kind); err != nil {
		return "", err
	}
	return Dumps(raw)
}

// Marshal encodes v without HTML escaping so non-ASCII text stays readable.
func Marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Dumps re-prints a JSON document keeping its key order, with ", " and ": "
// separators and non-ASCII text unescaped.
func Dumps(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	type frame struct {
		object bool
		n      int
	}
	var (
		b     strings.Builder
		stack []frame
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			b.WriteByte(byte(d))
			continue
		}

		if n := len(stack); n > 0 {
			top := &stack[n-1]
			switch {
			case top.object && top.n%2 == 1:
				b.WriteString(": ")
			case top.n > 0:
				b.WriteString(", ")
			}
			top.n++
		}

		switch v := tok.(type) {
		case json.Delim:
			stack = append(stack, frame{object: v == '{'})
			b.WriteByte(byte(v))
		case string:
			s, err := Marshal(v)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case json.Number:
			b.WriteString(v.String())
		case bool:
			b.WriteString(strconv.FormatBool(v))
		case nil:
			b.WriteString("null")
		}
	}
	return b.String(), nil
}

// Token maps the two parse failures to the plain tokens printed to users.
func Token(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrJSONParse):
		return ErrJSONParse.Error(), true
	case errors.Is(err, ErrMissingResult):
		return ErrMissingResult.Error(), true
	default:
		return "", false
	}
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "```"); i >= 0 && !strings.Contains(s[:i], "{") {
			s = s[i:]
		} else {
			return s
		}
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
