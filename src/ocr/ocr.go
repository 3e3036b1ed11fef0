package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrDecode is returned when the input is not a decodable PNG image.
var ErrDecode = errors.New("image decode failed")

const (
	noTextMarker = "NO_TEXT_FOUND"
	prompt       = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
		"- No formatting\n" +
		"- No XML/HTML tags\n" +
		"- No markdown\n" +
		"- No explanations\n" +
		"- Preserve line breaks accurately from the visual layout.\n" +
		"If no text found, return '" + noTextMarker + "'"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// Recognizer extracts text from a PNG image. An image without text yields ("", nil).
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// VisionQuerier is the part of the LLM client used for OCR.
type VisionQuerier interface {
	QueryVision(ctx context.Context, prompt string, png []byte) (string, error)
}

// LLMRecognizer performs OCR with an OpenRouter vision model.
type LLMRecognizer struct {
	vision    VisionQuerier
	logger    *zap.Logger
	saveDebug bool
}

func NewLLMRecognizer(v VisionQuerier, logger *zap.Logger) *LLMRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRecognizer{
		vision:    v,
		logger:    logger,
		saveDebug: os.Getenv("OCR_DEBUG_SAVE_IMAGES") == "true",
	}
}

// Validate checks the PNG signature and header without decoding pixels.
func Validate(data []byte) (image.Config, error) {
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return image.Config{}, fmt.Errorf("%w: invalid PNG magic number", ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return image.Config{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return cfg, nil
}

func (r *LLMRecognizer) Recognize(ctx context.Context, png []byte) (string, error) {
	cfg, err := Validate(png)
	if err != nil {
		return "", err
	}
	r.logger.Debug("running OCR", zap.Int("width", cfg.Width), zap.Int("height", cfg.Height), zap.Int("bytes", len(png)))

	if r.saveDebug {
		name := fmt.Sprintf("debug_ocr_%dx%d_%d.png", cfg.Width, cfg.Height, time.Now().UnixMilli())
		if err := os.WriteFile(name, png, 0600); err != nil {
			r.logger.Warn("could not save debug image", zap.Error(err))
		}
	}

	text, err := r.vision.QueryVision(ctx, prompt, png)
	if err != nil {
		return "", fmt.Errorf("vision query failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == noTextMarker {
		return "", nil
	}
	return text, nil
}
