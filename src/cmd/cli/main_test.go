package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clip-translator/src/config"
	"clip-translator/src/facade"
	"clip-translator/src/translate"
)

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{
			name:    "ValidPNG",
			data:    []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00},
			wantErr: false,
		},
		{
			name:    "InvalidMagic",
			data:    []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
			wantErr: true,
		},
		{
			name:    "TooShort",
			data:    []byte{0x89, 'P', 'N', 'G'},
			wantErr: true,
		},
		{
			name:    "Empty",
			data:    []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePNG() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadImageFromStdinAndFile(t *testing.T) {
	png := append([]byte{}, pngMagic...)

	got, err := readImage("-", bytes.NewReader(png))
	if err != nil || !bytes.Equal(got, png) {
		t.Fatalf("stdin: got %v, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, []byte("not a png"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readImage(path, nil); err == nil || !strings.Contains(err.Error(), "magic") {
		t.Fatalf("Expected magic number error, got %v", err)
	}

	if _, err := readImage(filepath.Join(t.TempDir(), "missing.png"), nil); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"translate-tool", "-file", "a.png", "-json=true", "-v", "--to", "ja"})
	want := []string{"translate-tool", "--file", "a.png", "--json=true", "-v", "--to", "ja"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestRootCmdRequiresExactlyOneInput(t *testing.T) {
	var out, errOut bytes.Buffer
	s := streams{out: &out, err: &errOut}

	if err := runWithArgs([]string{"translate-tool"}, s); err == nil {
		t.Fatal("Expected error without --text or --file")
	}
	if err := runWithArgs([]string{"translate-tool", "--text", "a", "--file", "b.png"}, s); err == nil {
		t.Fatal("Expected error with both --text and --file")
	}
}

func TestRootCmdRejectsUnknownBackend(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runWithArgs([]string{"translate-tool", "--text", "hi", "--backend", "bing"}, streams{out: &out, err: &errOut})
	if !errors.Is(err, config.ErrInvalidBackend) {
		t.Fatalf("Expected ErrInvalidBackend, got %v", err)
	}
}

type echoBackends struct{}

func (echoBackends) Translate(_ context.Context, k translate.Kind, text string, from, to translate.Language) (string, error) {
	return strings.ToUpper(text), nil
}

type fixedRecognizer struct {
	text string
	err  error
}

func (r fixedRecognizer) Recognize(context.Context, []byte) (string, error) { return r.text, r.err }

func newTestFacade(t *testing.T) *facade.Facade {
	t.Helper()
	settings, err := config.NewSettings(config.Snapshot{
		Translator:     translate.Google,
		SourceLanguage: translate.English,
		DestLanguage:   translate.Japanese,
	})
	if err != nil {
		t.Fatal(err)
	}
	f, err := facade.New(facade.Options{Settings: settings, Backends: echoBackends{}})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestTranslateInputText(t *testing.T) {
	res, err := translateInput(context.Background(), newTestFacade(t), nil, input{text: "hello", source: "text"})
	if err != nil {
		t.Fatalf("translateInput: %v", err)
	}
	if res.Text != "HELLO" || res.Origin != "hello" || res.Backend != "google" || res.From != "en" || res.To != "ja" {
		t.Fatalf("Unexpected result: %+v", res)
	}
	if res.CharCount != 5 || res.JobID == "" {
		t.Fatalf("Unexpected metadata: %+v", res)
	}
}

func TestTranslateInputImage(t *testing.T) {
	f := newTestFacade(t)

	res, err := translateInput(context.Background(), f, fixedRecognizer{text: "from image"}, input{image: pngMagic, source: "-"})
	if err != nil {
		t.Fatalf("translateInput: %v", err)
	}
	if res.Text != "FROM IMAGE" || res.Source != "-" {
		t.Fatalf("Unexpected result: %+v", res)
	}

	_, err = translateInput(context.Background(), f, fixedRecognizer{err: errors.New("decode")}, input{image: pngMagic})
	var captureErr *facade.InputCaptureError
	if !errors.As(err, &captureErr) {
		t.Fatalf("Expected InputCaptureError, got %v", err)
	}

	_, err = translateInput(context.Background(), f, nil, input{image: pngMagic})
	if !errors.Is(err, facade.ErrNoRecognizer) {
		t.Fatalf("Expected ErrNoRecognizer, got %v", err)
	}

	_, err = translateInput(context.Background(), f, fixedRecognizer{text: "  "}, input{image: pngMagic})
	if !errors.Is(err, errNoText) {
		t.Fatalf("Expected errNoText for an image without text, got %v", err)
	}

	_, err = translateInput(context.Background(), f, nil, input{text: "  ", source: "text"})
	if !errors.Is(err, facade.ErrEmptyText) {
		t.Fatalf("Expected ErrEmptyText for blank --text, got %v", err)
	}
}

func TestWriteOutcomeNoTextIsNotAnError(t *testing.T) {
	var out, errOut bytes.Buffer
	s := streams{out: &out, err: &errOut}

	if err := writeOutcome(s, TranslateResult{}, errNoText, true); err != nil {
		t.Fatalf("Expected nil error for an image without text, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("Expected nothing on stdout, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "No text found") {
		t.Fatalf("Expected notice on stderr, got %q", errOut.String())
	}

	boom := errors.New("boom")
	if err := writeOutcome(s, TranslateResult{}, boom, false); !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	out.Reset()
	if err := writeOutcome(s, TranslateResult{Text: "ok"}, nil, false); err != nil || out.String() != "ok" {
		t.Fatalf("Expected ok on stdout, got %q, %v", out.String(), err)
	}
}

func TestOutputResult(t *testing.T) {
	res := TranslateResult{Text: "こんにちは", Source: "text", CharCount: 5}

	var plain bytes.Buffer
	if err := outputResult(&plain, res, false); err != nil {
		t.Fatal(err)
	}
	if plain.String() != "こんにちは" {
		t.Fatalf("Expected plain text, got %q", plain.String())
	}

	var js bytes.Buffer
	if err := outputResult(&js, res, true); err != nil {
		t.Fatal(err)
	}
	var decoded TranslateResult
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if decoded.Text != res.Text || decoded.CharCount != 5 {
		t.Fatalf("Unexpected JSON result: %+v", decoded)
	}
}
