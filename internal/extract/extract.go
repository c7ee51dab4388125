package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rxglue/internal/backend"
)

// ErrNullResponse is returned when the backend answers with a JSON null,
// which has no fields to read.
var ErrNullResponse = errors.New("cannot read properties of null response")

// Request is the body of POST /extract.
type Request struct {
	Text string `json:"text"`
}

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends prescription text to an extraction backend.
type Client struct {
	// BaseURL is the backend root; "/extract" is appended.
	BaseURL    string
	HTTPClient Doer
	UserAgent  string
}

// Extract performs exactly one POST to <BaseURL>/extract. Any HTTP status is
// accepted as long as the body is JSON; transport errors are returned as-is.
func (c *Client) Extract(ctx context.Context, text string) (Response, error) {
	body, err := encodeRequest(Request{Text: text})
	if err != nil {
		return Response{}, err
	}
	url := backend.JoinPath(c.BaseURL, "/extract")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	doer := c.HTTPClient
	if doer == nil {
		doer = http.DefaultClient
	}
	resp, err := doer.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	log.Debug().Str("url", url).Int("status", resp.StatusCode).Int("bytes", len(raw)).Msg("extract response")

	out, err := DecodeResponse(raw)
	if err != nil {
		return Response{}, err
	}
	out.Status = resp.StatusCode
	return out, nil
}

// encodeRequest marshals without HTML escaping so the body carries the text
// exactly as typed.
func encodeRequest(r Request) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ErrorText is the output shown for any failed extraction.
func ErrorText(err error) string {
	if err == nil {
		return "Error: "
	}
	return "Error: " + err.Error()
}

// IsBlank reports whether text fails the non-empty precondition.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
