package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Response is the backend reply. Both fields are optional; presence is kept
// separately from the raw value so an explicit null differs from absence.
type Response struct {
	PlainText     json.RawMessage
	HasPlainText  bool
	Structured    json.RawMessage
	HasStructured bool
	// Status is the HTTP status the reply came with.
	Status int
}

// DecodeResponse parses a response body. Bodies that are not JSON fail, a
// top-level null fails with ErrNullResponse, and any other non-object value
// yields a Response with neither field present.
func DecodeResponse(body []byte) (Response, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Response{}, errors.New("decode response: body is not valid JSON")
	}
	if string(trimmed) == "null" {
		return Response{}, ErrNullResponse
	}
	if trimmed[0] != '{' {
		return Response{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	var r Response
	r.PlainText, r.HasPlainText = field(fields, "plain_text")
	r.Structured, r.HasStructured = field(fields, "structured")
	return r, nil
}

func field(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok {
		return nil, false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	return raw, true
}

// Render picks the text to display: plain_text when it is present and
// truthy, otherwise structured pretty-printed with two-space indentation.
// An absent structured field renders as the empty string; an explicit null
// renders as "null".
func Render(r Response) string {
	if r.HasPlainText && truthy(r.PlainText) {
		return displayValue(r.PlainText)
	}
	if !r.HasStructured {
		return ""
	}
	out, err := reencode(r.Structured)
	if err != nil {
		return string(r.Structured)
	}
	return out
}

// truthy follows the usual JSON-in-a-browser rules: null, false, 0 and the
// empty string are falsy; everything else is truthy.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s != ""
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		return (err == nil || math.IsInf(f, 0)) && f != 0
	}
}

// displayValue shows a string plain_text verbatim. Other truthy values are
// shown as compact JSON rather than the browser's textContent coercion
// ("[object Object]", "1,2").
func displayValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// reencode serializes a parsed JSON value with two-space indentation. Key
// order is kept as received; strings are written unescaped where JSON allows
// and numbers in their shortest float64 form, so "\u00b5g" shows as "µg"
// and 1.50 as 1.5.
func reencode(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var b strings.Builder
	if err := writeValue(&b, dec, ""); err != nil {
		return "", err
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("trailing data after structured value")
	}
	return b.String(), nil
}

func writeValue(b *strings.Builder, dec *json.Decoder, indent string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		return writeContainer(b, dec, v, indent)
	case string:
		b.WriteString(quote(v))
	case json.Number:
		b.WriteString(formatNumber(v))
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case nil:
		b.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func writeContainer(b *strings.Builder, dec *json.Decoder, open json.Delim, indent string) error {
	closing := "]"
	if open == '{' {
		closing = "}"
	}
	b.WriteByte(byte(open))
	inner := indent + "  "
	n := 0
	for dec.More() {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
		b.WriteString(inner)
		if open == '{' {
			key, err := dec.Token()
			if err != nil {
				return err
			}
			k, ok := key.(string)
			if !ok {
				return fmt.Errorf("object key %v is not a string", key)
			}
			b.WriteString(quote(k))
			b.WriteString(": ")
		}
		if err := writeValue(b, dec, inner); err != nil {
			return err
		}
		n++
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if n > 0 {
		b.WriteByte('\n')
		b.WriteString(indent)
	}
	b.WriteString(closing)
	return nil
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// formatNumber writes n the way a browser prints a double: plain decimal
// between 1e-6 and 1e21, exponent form outside it, null when it overflows.
func formatNumber(n json.Number) string {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !math.IsInf(f, 0) {
		return string(n)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null"
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
