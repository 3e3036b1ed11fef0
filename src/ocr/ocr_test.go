package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVision struct {
	out   string
	err   error
	calls int
}

func (f *fakeVision) QueryVision(ctx context.Context, prompt string, data []byte) (string, error) {
	f.calls++
	return f.out, f.err
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRecognize(t *testing.T) {
	fv := &fakeVision{out: " Hello\nworld \n"}
	text, err := NewLLMRecognizer(fv, nil).Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello\nworld", text)
}

func TestRecognizeNoText(t *testing.T) {
	fv := &fakeVision{out: "NO_TEXT_FOUND"}
	text, err := NewLLMRecognizer(fv, nil).Recognize(context.Background(), testPNG(t))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRecognizeRejectsNonPNG(t *testing.T) {
	fv := &fakeVision{out: "never"}
	tests := map[string][]byte{
		"empty":     nil,
		"jpeg":      {0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0},
		"truncated": append([]byte{}, pngMagic...),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewLLMRecognizer(fv, nil).Recognize(context.Background(), data)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
	assert.Zero(t, fv.calls)
}

func TestRecognizeWrapsVisionError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewLLMRecognizer(&fakeVision{err: boom}, nil).Recognize(context.Background(), testPNG(t))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDecode)
}
