package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// URLConfig describes the fixed query of the lookup endpoint.
type URLConfig struct {
	BaseURL     string
	ComponentID string
	PageID      string
	KeyParam    string
	Year        string
	Type        string
}

// URLBuilder renders the lookup URL for a key.
type URLBuilder struct {
	base     url.URL
	fixed    url.Values
	keyParam string
}

// NewURLBuilder validates the endpoint and fixed parameters.
func NewURLBuilder(cfg URLConfig) (*URLBuilder, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.KeyParam == "" {
		return nil, errors.New("key parameter name is required")
	}

	fixed := u.Query()
	setIf(fixed, "ComponentId", cfg.ComponentID)
	setIf(fixed, "PageId", cfg.PageID)
	setIf(fixed, "year", cfg.Year)
	setIf(fixed, "type", cfg.Type)

	return &URLBuilder{base: *u, fixed: fixed, keyParam: cfg.KeyParam}, nil
}

func setIf(v url.Values, k, val string) {
	if val != "" {
		v.Set(k, val)
	}
}

// Build returns the full lookup URL for key.
func (b *URLBuilder) Build(key string) string {
	q := make(url.Values, len(b.fixed)+1)
	for k, v := range b.fixed {
		q[k] = v
	}
	q.Set(b.keyParam, key)

	u := b.base
	u.RawQuery = q.Encode()
	return u.String()
}
