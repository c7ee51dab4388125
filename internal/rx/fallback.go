package rx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/rxglue/internal/cache"
	"github.com/hyperifyio/rxglue/internal/llm"
)

// drugSchema constrains fallback replies.
const drugSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "condition": {"type": "string"},
    "name":      {"type": "string"},
    "dosage":    {"type": "string"},
    "frequency": {"type": "string"},
    "duration":  {"type": "string"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("drug.json", strings.NewReader(drugSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("drug.json")
	})
	return schema, schemaErr
}

// LLMFallback asks a chat model to parse prescription text the heuristics
// could not.
type LLMFallback struct {
	Client llm.Client
	Model  string
	// Cache is optional.
	Cache *cache.ReplyCache
	// SystemPrompt overrides the default system message when non-empty.
	SystemPrompt string

	group singleflight.Group
}

// Lookup returns the parsed reply. Identical snippets requested concurrently
// share one model call, which is detached from the first caller's
// cancellation; each caller still returns early when its own ctx ends.
func (f *LLMFallback) Lookup(ctx context.Context, snippet string) (Drug, bool) {
	if f == nil || f.Client == nil || strings.TrimSpace(f.Model) == "" {
		return Drug{}, false
	}
	sys := f.SystemPrompt
	if strings.TrimSpace(sys) == "" {
		sys = systemMessage
	}
	user := userMessage(snippet)
	key := cache.KeyFrom(f.Model, sys+"\n\n"+user)

	detached := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		return f.lookup(detached, key, sys, user)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		log.Debug().Err(ctx.Err()).Str("key", key[:12]).Msg("fallback abandoned by caller")
		return Drug{}, false
	}
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("model", f.Model).Msg("extraction fallback failed")
		return Drug{}, false
	}
	if res.Shared {
		log.Debug().Str("key", key[:12]).Msg("fallback reply shared")
	}
	d := res.Val.(Drug)
	return d, d != (Drug{})
}

func (f *LLMFallback) lookup(ctx context.Context, key, sys, user string) (Drug, error) {
	if f.Cache != nil {
		if raw, ok, _ := f.Cache.Get(ctx, key); ok {
			var d Drug
			if err := json.Unmarshal(raw, &d); err == nil {
				return d, nil
			}
		}
	}
	resp, err := f.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.0,
		N:           1,
	})
	if err != nil {
		return Drug{}, fmt.Errorf("chat completion: %w", err)
	}
	d, err := ParseReply(llm.FirstContent(resp))
	if err != nil {
		return Drug{}, err
	}
	if f.Cache != nil {
		if b, err := json.Marshal(d); err == nil {
			_ = f.Cache.Save(ctx, key, b)
		}
	}
	return d, nil
}

const systemMessage = `You are a medical text extractor.
Task: Parse prescriptions into structured data.
Rules:
- Only list actual drugs, not symptoms or conditions.
- If a condition is mentioned (e.g., 'Acid reflux'), place it under 'condition'.
- Extract: condition, drug name, dosage, frequency, duration.
- Ignore non-drug terms like 'acid', 'fever', 'pain', etc.
- Always include 'duration' if mentioned.
Respond with strict JSON only: {"condition":string,"name":string,"dosage":string,"frequency":string,"duration":string}.`

func userMessage(snippet string) string {
	return "Input: '" + snippet + "'"
}

// ParseReply accepts either a JSON object matching the drug schema or the
// "Key: value" line format models tend to fall back to.
func ParseReply(content string) (Drug, error) {
	content = stripFences(strings.TrimSpace(content))
	if content == "" {
		return Drug{}, fmt.Errorf("empty reply")
	}
	if strings.HasPrefix(content, "{") {
		d, err := parseJSONReply([]byte(content))
		if err == nil {
			return d, nil
		}
		log.Debug().Err(err).Msg("fallback reply is not schema JSON; trying lines")
	}
	d := parseLines(content)
	if d == (Drug{}) {
		return Drug{}, fmt.Errorf("reply has no recognizable fields")
	}
	return d, nil
}

func parseJSONReply(b []byte) (Drug, error) {
	s, err := compiledSchema()
	if err != nil {
		return Drug{}, err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Drug{}, fmt.Errorf("unmarshal reply: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return Drug{}, fmt.Errorf("reply does not match schema: %w", err)
	}
	var d Drug
	if err := json.Unmarshal(b, &d); err != nil {
		return Drug{}, fmt.Errorf("decode reply: %w", err)
	}
	return d, nil
}

func parseLines(content string) Drug {
	var d Drug
	for _, line := range strings.Split(content, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "..." {
			v = ""
		}
		switch strings.ToLower(strings.Trim(strings.TrimSpace(k), "-* ")) {
		case "condition":
			d.Condition = v
		case "drug", "drug name", "name":
			d.Name = v
		case "dosage":
			d.Dosage = v
		case "frequency":
			d.Frequency = v
		case "duration":
			d.Duration = v
		}
	}
	return d
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
