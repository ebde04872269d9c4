// Package webhook provides the public lead-ingestion endpoint and the
// per-platform payload normalizers behind it.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"leadflow_backend/platform/phone"
)

// Documented fallbacks shared by every variant.
const (
	DefaultEmail = "Not Provided"
	DefaultPhone = "N/A"
)

// NormalizedLead is the canonical field set every variant produces.
// All fields except CampaignID are non-empty after normalization.
type NormalizedLead struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Interest   string `json:"interest"`
	CampaignID string `json:"campaignId,omitempty"`
	Source     string `json:"source"`
}

// Normalizer maps one platform's payload shape into a NormalizedLead.
// Implementations fail only when the body is not a JSON object.
type Normalizer interface {
	Normalize(raw []byte) (NormalizedLead, error)
}

// UnsupportedPlatformError is returned for a tag with no registered normalizer.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return "Unsupported platform: " + e.Platform
}

// NormalizationError is returned when a body cannot be read as a JSON object.
type NormalizationError struct {
	Platform string
	Reason   string
}

func (e *NormalizationError) Error() string {
	if e.Platform == "" {
		return "payload is not a JSON object: " + e.Reason
	}
	return fmt.Sprintf("%s payload is not a JSON object: %s", e.Platform, e.Reason)
}

// Registry maps platform tags to normalizers. The tag a normalizer is found
// under becomes the lead's source.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[string]Normalizer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{normalizers: make(map[string]Normalizer)}
}

// DefaultRegistry returns a registry with the built-in variants.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("google", GoogleNormalizer{})
	r.Register("meta", MetaNormalizer{})
	r.Register("tiktok", TikTokNormalizer{})
	r.Register("website", WebsiteNormalizer{})
	return r
}

// WithAliases registers every alias=platform pair in sorted alias order.
// Targets must be tags registered before the call, so an alias of an alias
// is rejected.
func (r *Registry) WithAliases(aliases map[string]string) (*Registry, error) {
	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)

	r.mu.RLock()
	base := make(map[string]Normalizer, len(r.normalizers))
	for tag, n := range r.normalizers {
		base[tag] = n
	}
	r.mu.RUnlock()

	for _, alias := range names {
		n, ok := base[canonicalTag(aliases[alias])]
		if !ok {
			return nil, fmt.Errorf("alias %s: %w", alias, &UnsupportedPlatformError{Platform: aliases[alias]})
		}
		r.Register(alias, n)
	}
	return r, nil
}

// Register binds tag to n, replacing any previous binding. Tags are case-insensitive.
func (r *Registry) Register(tag string, n Normalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalizers[canonicalTag(tag)] = n
}

// Lookup returns the normalizer for tag.
func (r *Registry) Lookup(tag string) (Normalizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.normalizers[canonicalTag(tag)]
	if !ok {
		return nil, &UnsupportedPlatformError{Platform: tag}
	}
	return n, nil
}

// Tags lists registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.normalizers))
	for tag := range r.normalizers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Normalize resolves tag and runs its normalizer, stamping the source and
// converting a parseable phone number to E.164.
func (r *Registry) Normalize(tag string, raw []byte) (NormalizedLead, error) {
	n, err := r.Lookup(tag)
	if err != nil {
		return NormalizedLead{}, err
	}
	lead, err := n.Normalize(raw)
	if err != nil {
		var ne *NormalizationError
		if errors.As(err, &ne) && ne.Platform == "" {
			ne.Platform = tag
		}
		return NormalizedLead{}, err
	}
	lead.Source = tag
	if lead.Phone != DefaultPhone {
		lead.Phone = phone.NormalizeE164(lead.Phone)
	}
	return lead, nil
}

func canonicalTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// object is a leniently-read JSON object: accessors return zero values for
// absent or wrongly-typed members instead of failing.
type object map[string]json.RawMessage

// parseObject is the validating constructor shared by all variants.
func parseObject(raw []byte) (object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &NormalizationError{Reason: "expected '{'"}
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &NormalizationError{Reason: err.Error()}
	}
	if obj == nil {
		obj = object{}
	}
	return obj, nil
}

func asObject(raw json.RawMessage) object {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func (o object) obj(key string) object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	return asObject(raw)
}

func (o object) arr(key string) []json.RawMessage {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// str returns a trimmed string member. Numbers are returned in their JSON text form.
func (o object) str(key string) string {
	raw, ok := o[key]
	if !ok {
		return ""
	}
	return scalarString(raw)
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
