package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-translator/src/facade"
	"clip-translator/src/translate"
)

func TestTooltipFor(t *testing.T) {
	c := facade.Completion{Text: "你好\n世界", From: translate.English, To: translate.ChineseSimplified}
	prefix := translate.English.DisplayName() + " -> " + translate.ChineseSimplified.DisplayName() + ": "
	assert.Equal(t, prefix+"你好 世界", tooltipFor(c))

	c.Text = strings.Repeat("x", 500)
	got := tooltipFor(c)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, tooltipLimit, utf8.RuneCountInString(strings.TrimPrefix(got, prefix)))
}

func TestAboutTitle(t *testing.T) {
	assert.Equal(t, "Clip Translator", aboutTitle("", 0))
	assert.Equal(t, "Clip Translator | OCR hotkey: Ctrl+Alt+Q | port 49500", aboutTitle("Ctrl+Alt+Q", 49500))
}

func TestDestLanguagesExcludeAuto(t *testing.T) {
	langs := destLanguages()
	assert.NotContains(t, langs, translate.Auto)
	assert.Len(t, langs, len(translate.Languages())-1)
}

func TestIconIsPNG(t *testing.T) {
	cfg, err := png.DecodeConfig(bytes.NewReader(icon()))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
}

func TestTrayIconIsICOOnWindows(t *testing.T) {
	assert.Equal(t, icon(), trayIcon("linux"))
	assert.Equal(t, icon(), trayIcon("darwin"))

	ico := trayIcon("windows")
	pngData := icon()
	require.Len(t, ico, 22+len(pngData))

	le := binary.LittleEndian
	assert.Equal(t, uint16(0), le.Uint16(ico[0:2]), "reserved")
	assert.Equal(t, uint16(1), le.Uint16(ico[2:4]), "type")
	assert.Equal(t, uint16(1), le.Uint16(ico[4:6]), "count")
	assert.Equal(t, byte(16), ico[6], "width")
	assert.Equal(t, byte(16), ico[7], "height")
	assert.Equal(t, uint16(1), le.Uint16(ico[10:12]), "planes")
	assert.Equal(t, uint16(32), le.Uint16(ico[12:14]), "bit count")
	assert.Equal(t, uint32(len(pngData)), le.Uint32(ico[14:18]), "size")
	assert.Equal(t, uint32(22), le.Uint32(ico[18:22]), "offset")

	cfg, err := png.DecodeConfig(bytes.NewReader(ico[22:]))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
}
