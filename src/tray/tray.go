// Package tray is the system tray front end: menus that produce loop actions
// and a tooltip that shows the latest translation.
package tray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/getlantern/systray"

	"clip-translator/src/config"
	"clip-translator/src/eventloop"
	"clip-translator/src/facade"
	"clip-translator/src/translate"
)

const (
	appTitle       = "Clip Translator"
	tooltipLimit   = 120
	defaultTooltip = appTitle
)

type Config struct {
	Initial config.Snapshot
	Hotkey  string
	// Submit receives every menu action, including Quit.
	Submit func(eventloop.Action)
}

// Run blocks on the systray main loop. onReady runs once the tray exists.
func Run(cfg Config, onReady func(*Tray)) {
	systray.Run(func() {
		t := build(cfg)
		if onReady != nil {
			onReady(t)
		}
	}, func() {})
}

// Quit stops the systray loop started by Run.
func Quit() { systray.Quit() }

type Tray struct {
	mu    sync.Mutex
	about *systray.MenuItem
}

func build(cfg Config) *Tray {
	systray.SetIcon(trayIcon(runtime.GOOS))
	systray.SetTitle(appTitle)
	systray.SetTooltip(defaultTooltip)

	t := &Tray{}
	submit := cfg.Submit
	if submit == nil {
		submit = func(eventloop.Action) {}
	}

	backends := systray.AddMenuItem("Translator", "Translation backend")
	radio(backends, translate.Kinds(), cfg.Initial.Translator, translate.Kind.String, func(k translate.Kind) {
		submit(eventloop.SelectBackend(k))
	})

	from := systray.AddMenuItem("Source language", "Language of captured text")
	radio(from, translate.Languages(), cfg.Initial.SourceLanguage, translate.Language.DisplayName, func(l translate.Language) {
		submit(eventloop.SelectSource(l))
	})

	to := systray.AddMenuItem("Target language", "Language to translate into")
	radio(to, destLanguages(), cfg.Initial.DestLanguage, translate.Language.DisplayName, func(l translate.Language) {
		submit(eventloop.SelectDest(l))
	})

	systray.AddSeparator()
	checkbox("Watch clipboard", cfg.Initial.ClipboardListener, eventloop.ActionClipboardListener, submit)
	checkbox("Drag to copy", cfg.Initial.DragCopy, eventloop.ActionDragCopy, submit)
	checkbox("Keep paragraphs", cfg.Initial.KeepParagraph, eventloop.ActionKeepParagraph, submit)
	checkbox("Keep on top", cfg.Initial.KeepOnTop, eventloop.ActionKeepOnTop, submit)
	checkbox("Incremental copy", cfg.Initial.IncrementalCopy, eventloop.ActionIncrementalCopy, submit)

	systray.AddSeparator()
	t.about = systray.AddMenuItem(aboutTitle(cfg.Hotkey, 0), "")
	t.about.Disable()
	quit := systray.AddMenuItem("Quit", "Quit the application")
	go func() {
		<-quit.ClickedCh
		submit(eventloop.Quit())
	}()
	return t
}

// SetResidentPort shows the delegation port in the About entry.
func (t *Tray) SetResidentPort(hotkey string, port int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.about != nil {
		t.about.SetTitle(aboutTitle(hotkey, port))
	}
}

func aboutTitle(hotkey string, port int) string {
	title := appTitle
	if hotkey != "" {
		title += " | OCR hotkey: " + hotkey
	}
	if port > 0 {
		title += fmt.Sprintf(" | port %d", port)
	}
	return title
}

func destLanguages() []translate.Language {
	var out []translate.Language
	for _, l := range translate.Languages() {
		if l != translate.Auto {
			out = append(out, l)
		}
	}
	return out
}

func radio[T comparable](parent *systray.MenuItem, values []T, selected T, label func(T) string, onSelect func(T)) {
	items := make([]*systray.MenuItem, len(values))
	for i, v := range values {
		items[i] = parent.AddSubMenuItemCheckbox(label(v), "", v == selected)
	}
	for i, v := range values {
		go func(i int, v T) {
			for range items[i].ClickedCh {
				for j, other := range items {
					if j == i {
						other.Check()
					} else {
						other.Uncheck()
					}
				}
				onSelect(v)
			}
		}(i, v)
	}
}

func checkbox(title string, checked bool, kind eventloop.ActionKind, submit func(eventloop.Action)) {
	item := systray.AddMenuItemCheckbox(title, "", checked)
	go func() {
		for range item.ClickedCh {
			on := !item.Checked()
			if on {
				item.Check()
			} else {
				item.Uncheck()
			}
			submit(eventloop.Toggle(kind, on))
		}
	}()
}

// TooltipPresenter shows the latest translation in the tray tooltip.
type TooltipPresenter struct{}

func (TooltipPresenter) Present(c facade.Completion) { systray.SetTooltip(tooltipFor(c)) }

func (TooltipPresenter) PresentError(f facade.Failure) {
	systray.SetTooltip(appTitle + ": " + f.Job.Backend.String() + " failed")
}

func tooltipFor(c facade.Completion) string {
	text := strings.Join(strings.Fields(c.Text), " ")
	if utf8.RuneCountInString(text) > tooltipLimit {
		text = string([]rune(text)[:tooltipLimit-1]) + "…"
	}
	return fmt.Sprintf("%s -> %s: %s", c.From.DisplayName(), c.To.DisplayName(), text)
}

// trayIcon returns the icon in the format systray expects on goos: ICO on
// Windows, PNG elsewhere.
func trayIcon(goos string) []byte {
	if goos == "windows" {
		return icoFromPNG(icon(), iconSize)
	}
	return icon()
}

// icoFromPNG wraps one PNG image in an ICO container (a PNG-compressed entry,
// supported since Windows Vista).
func icoFromPNG(data []byte, size int) []byte {
	const headerLen = 6 + 16
	var buf bytes.Buffer
	buf.Grow(headerLen + len(data))
	le := binary.LittleEndian
	// ICONDIR: reserved, type 1 (icon), one image.
	_ = binary.Write(&buf, le, [3]uint16{0, 1, 1})
	// ICONDIRENTRY: width and height of 256 are stored as 0.
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	buf.Write([]byte{dim, dim, 0, 0})
	_ = binary.Write(&buf, le, [2]uint16{1, 32})
	_ = binary.Write(&buf, le, [2]uint32{uint32(len(data)), headerLen})
	buf.Write(data)
	return buf.Bytes()
}

const iconSize = 16

// icon draws a 16x16 PNG: a speech bubble outline.
func icon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	blue := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	for x := 1; x < 15; x++ {
		img.Set(x, 2, blue)
		img.Set(x, 11, blue)
	}
	for y := 2; y < 12; y++ {
		img.Set(1, y, blue)
		img.Set(14, y, blue)
	}
	for i := 0; i < 3; i++ {
		img.Set(4+i, 12+i, blue)
	}
	for x := 4; x < 12; x += 2 {
		img.Set(x, 6, blue)
		img.Set(x+1, 7, blue)
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
