package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"clip-translator/src/llm"
)

// Completer is the part of the LLM client the OpenRouter backend needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenRouterBackend translates by prompting a chat model.
type OpenRouterBackend struct {
	llm Completer
}

func NewOpenRouterBackend(c Completer) *OpenRouterBackend {
	return &OpenRouterBackend{llm: c}
}

func (o *OpenRouterBackend) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	if o.llm == nil {
		return "", fmt.Errorf("%w: OpenRouter client not configured", ErrMissingCredentials)
	}
	if to == Auto || !to.Valid() || !from.Valid() {
		return "", fmt.Errorf("%w: %s -> %s", ErrUnsupportedLanguagePair, from, to)
	}

	out, err := o.llm.Complete(ctx, translationPrompt(from, to), text)
	if err != nil {
		return "", mapLLMError(err)
	}
	if out == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	return out, nil
}

func translationPrompt(from, to Language) string {
	source := "the source language (detect it)"
	if from != Auto {
		source = from.DisplayName()
	}
	return fmt.Sprintf("You are a translation engine. Translate the user's text from %s to %s. "+
		"Preserve line breaks. Reply with the translation only, without notes or quotes.", source, to.DisplayName())
}

func mapLLMError(err error) error {
	var se *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	case errors.Is(err, llm.ErrNoChoices):
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	case errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden):
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}
