// Package engines submits the artifact to external detection services
// and normalizes whatever they answer. Engines are unreliable by
// assumption: every call has its own timeout, a missing answer is
// recorded as unknown, and unknown is never treated as clean.
package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Kind selects an engine's submission model.
type Kind string

const (
	// KindSubmit posts the raw artifact bytes for analysis.
	KindSubmit Kind = "submit"
	// KindLookup queries a reputation service by content hash; the
	// artifact itself never leaves the pipeline.
	KindLookup Kind = "lookup"
)

// Config describes one external engine endpoint.
type Config struct {
	Name    string
	Kind    Kind
	URL     string
	APIKey  string
	Timeout time.Duration
	// RPS throttles submissions to the engine. Zero means unthrottled.
	RPS float64
}

// Verdict is the raw normalized answer plus the response payload that
// produced it, kept for digesting.
type Verdict struct {
	Value string // clean | suspicious | malicious
	Raw   []byte
}

// Engine is one external detection service.
type Engine interface {
	Name() string
	// Scan submits the artifact and returns a normalized verdict. An
	// error means no verdict was obtained; the adapter records unknown.
	Scan(ctx context.Context, artifact []byte, sha256hex string) (Verdict, error)
}

// Build constructs engines from configuration. Unknown kinds are a
// configuration error, fatal at startup.
func Build(cfgs []Config) ([]Engine, error) {
	var out []Engine
	for i, c := range cfgs {
		if c.Name == "" {
			return nil, fmt.Errorf("engine %d: missing name", i)
		}
		if c.URL == "" {
			return nil, fmt.Errorf("engine %q: missing url", c.Name)
		}
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		limiter := rate.NewLimiter(rate.Inf, 1)
		if c.RPS > 0 {
			limiter = rate.NewLimiter(rate.Limit(c.RPS), 1)
		}
		base := httpEngine{
			name:    c.Name,
			url:     strings.TrimRight(c.URL, "/"),
			apiKey:  c.APIKey,
			limiter: limiter,
			client:  &http.Client{Timeout: timeout},
		}
		switch c.Kind {
		case KindSubmit, "":
			out = append(out, &submitEngine{base})
		case KindLookup:
			out = append(out, &lookupEngine{base})
		default:
			return nil, fmt.Errorf("engine %q: unknown kind %q", c.Name, c.Kind)
		}
	}
	return out, nil
}

type httpEngine struct {
	name    string
	url     string
	apiKey  string
	limiter *rate.Limiter
	client  *http.Client
}

func (e *httpEngine) Name() string { return e.name }

// engineResponse is the wire shape both engine models answer with.
type engineResponse struct {
	Verdict string `json:"verdict"`
}

func (e *httpEngine) do(req *http.Request) (Verdict, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Verdict{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("engine %s: status %d", e.name, resp.StatusCode)
	}
	var er engineResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return Verdict{}, fmt.Errorf("engine %s: malformed response: %w", e.name, err)
	}
	v, err := normalize(er.Verdict)
	if err != nil {
		return Verdict{}, fmt.Errorf("engine %s: %w", e.name, err)
	}
	return Verdict{Value: v, Raw: raw}, nil
}

func normalize(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clean", "ok", "benign":
		return "clean", nil
	case "suspicious":
		return "suspicious", nil
	case "malicious", "infected":
		return "malicious", nil
	default:
		return "", fmt.Errorf("unrecognized verdict %q", s)
	}
}

// submitEngine posts the raw artifact bytes.
type submitEngine struct{ httpEngine }

func (e *submitEngine) Scan(ctx context.Context, artifact []byte, _ string) (Verdict, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return Verdict{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/scan", bytes.NewReader(artifact))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}
	return e.do(req)
}

// lookupEngine queries by content hash.
type lookupEngine struct{ httpEngine }

func (e *lookupEngine) Scan(ctx context.Context, _ []byte, sha256hex string) (Verdict, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return Verdict{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url+"/lookup/"+sha256hex, nil)
	if err != nil {
		return Verdict{}, err
	}
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}
	return e.do(req)
}
