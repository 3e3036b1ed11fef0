package translate

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnknownLanguage is returned when a language code is outside the supported set.
var ErrUnknownLanguage = errors.New("unknown language")

// Language is the closed set of languages the translator understands.
type Language int

const (
	Auto Language = iota
	ChineseSimplified
	ChineseTraditional
	English
	Japanese
	French
	Korean
	German
)

type languageInfo struct {
	code string
	tag  language.Tag
}

var languages = map[Language]languageInfo{
	Auto:               {code: "auto", tag: language.Und},
	ChineseSimplified:  {code: "zh-CN", tag: language.SimplifiedChinese},
	ChineseTraditional: {code: "zh-TW", tag: language.TraditionalChinese},
	English:            {code: "en", tag: language.English},
	Japanese:           {code: "ja", tag: language.Japanese},
	French:             {code: "fr", tag: language.French},
	Korean:             {code: "ko", tag: language.Korean},
	German:             {code: "de", tag: language.German},
}

// Languages returns every supported language in declaration order.
func Languages() []Language {
	return []Language{Auto, ChineseSimplified, ChineseTraditional, English, Japanese, French, Korean, German}
}

// Valid reports whether l is a member of the closed set.
func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

// String returns the canonical code, e.g. "zh-CN".
func (l Language) String() string {
	if info, ok := languages[l]; ok {
		return info.code
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Tag returns the BCP 47 tag. Auto maps to the undetermined tag.
func (l Language) Tag() language.Tag {
	return languages[l].tag
}

// DisplayName returns an English name suitable for prompts and menus.
func (l Language) DisplayName() string {
	if l == Auto {
		return "Auto detect"
	}
	if !l.Valid() {
		return l.String()
	}
	return display.English.Tags().Name(l.Tag())
}

var (
	supportedTags = []language.Tag{
		language.English, // index 0 doubles as the matcher default; see ParseLanguage
		language.SimplifiedChinese,
		language.TraditionalChinese,
		language.Japanese,
		language.French,
		language.Korean,
		language.German,
	}
	languageMatcher = language.NewMatcher(supportedTags)
)

// ParseLanguage accepts canonical codes ("zh-CN", "en", "auto") and other BCP 47
// spellings of the same languages ("zh-Hans", "en-US").
func ParseLanguage(s string) (Language, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Auto, fmt.Errorf("%w: empty code", ErrUnknownLanguage)
	}
	for _, l := range Languages() {
		if strings.EqualFold(languages[l].code, trimmed) {
			return l, nil
		}
	}

	tag, err := language.Parse(trimmed)
	if err != nil {
		return Auto, fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf < language.High {
		return Auto, fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
	// The matcher falls back to English with High confidence for unrelated
	// languages, so the base language must agree too.
	base, _ := tag.Base()
	if want, _ := supportedTags[idx].Base(); base != want {
		return Auto, fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
	switch idx {
	case 0:
		return English, nil
	case 1:
		return ChineseSimplified, nil
	case 2:
		return ChineseTraditional, nil
	case 3:
		return Japanese, nil
	case 4:
		return French, nil
	case 5:
		return Korean, nil
	case 6:
		return German, nil
	}
	return Auto, fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}
