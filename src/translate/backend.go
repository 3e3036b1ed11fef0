// Package translate defines the translation backend capability, the closed set of
// backend kinds and languages, and the HTTP clients for each provider.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedLanguagePair is returned when a backend cannot translate between the two languages.
	ErrUnsupportedLanguagePair = errors.New("unsupported language pair")
	// ErrNetwork covers transport failures and unexpected HTTP statuses.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited is returned when the provider throttles the caller.
	ErrRateLimited = errors.New("rate limited")
	// ErrMissingCredentials is returned when a provider needs keys that were not configured.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrMalformedResponse is returned when a provider reply cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnknownBackend is returned for kinds outside the closed set or not registered.
	ErrUnknownBackend = errors.New("unknown backend")
)

// Backend translates text between two languages. Implementations hold no state
// besides credentials and HTTP clients and are safe for concurrent use.
type Backend interface {
	Translate(ctx context.Context, text string, from, to Language) (string, error)
}

// Kind enumerates the available backends.
type Kind int

const (
	Google Kind = iota
	Baidu
	Youdao
	OpenRouter
)

var kindNames = map[Kind]string{
	Google:     "google",
	Baidu:      "baidu",
	Youdao:     "youdao",
	OpenRouter: "openrouter",
}

// Kinds returns every backend kind in declaration order.
func Kinds() []Kind { return []Kind{Google, Baidu, Youdao, OpenRouter} }

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a backend name (case-insensitive) to its Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return Google, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Error is a failed translation attributed to one backend.
type Error struct {
	Backend Kind
	Err     error
}

func (e *Error) Error() string { return fmt.Sprintf("%s translation failed: %v", e.Backend, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Set maps each Kind to its Backend. Lookups happen per call so a change of the
// selected kind takes effect on the next translation.
type Set struct {
	backends map[Kind]Backend
}

// NewSet copies the provided mapping. Invalid kinds are ignored.
func NewSet(backends map[Kind]Backend) *Set {
	s := &Set{backends: make(map[Kind]Backend, len(backends))}
	for k, b := range backends {
		if k.Valid() && b != nil {
			s.backends[k] = b
		}
	}
	return s
}

// Resolve returns the backend registered for k.
func (s *Set) Resolve(k Kind) (Backend, error) {
	b, ok := s.backends[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, k)
	}
	return b, nil
}

// Registered returns the registered kinds, sorted.
func (s *Set) Registered() []Kind {
	out := make([]Kind, 0, len(s.backends))
	for k := range s.backends {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Translate resolves k and runs one translation. Failures are returned as *Error.
func (s *Set) Translate(ctx context.Context, k Kind, text string, from, to Language) (string, error) {
	if to == Auto || !to.Valid() || !from.Valid() {
		return "", &Error{Backend: k, Err: fmt.Errorf("%w: %s -> %s", ErrUnsupportedLanguagePair, from, to)}
	}
	b, err := s.Resolve(k)
	if err != nil {
		return "", &Error{Backend: k, Err: err}
	}
	out, err := b.Translate(ctx, text, from, to)
	if err != nil {
		return "", &Error{Backend: k, Err: err}
	}
	return out, nil
}

// codeFor looks up a provider-specific language code.
func codeFor(codes map[Language]string, l Language) (string, bool) {
	c, ok := codes[l]
	return c, ok
}

func pairCodes(codes map[Language]string, from, to Language) (string, string, error) {
	src, ok := codeFor(codes, from)
	if !ok {
		return "", "", fmt.Errorf("%w: source %s", ErrUnsupportedLanguagePair, from)
	}
	dst, ok := codeFor(codes, to)
	if !ok || to == Auto {
		return "", "", fmt.Errorf("%w: destination %s", ErrUnsupportedLanguagePair, to)
	}
	return src, dst, nil
}
