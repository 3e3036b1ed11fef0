package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		in            string
		keepParagraph bool
		want          string
	}{
		{"reflow wrapped sentence", "Hello\nworld", false, "Hello world"},
		{"keep wrapped sentence", "Hello\nworld", true, "Hello\nworld"},
		{"keep trims outer space and CRLF", "  Hello\r\nworld \n", true, "Hello\nworld"},
		{"reflow keeps blank-line paragraphs", "First line\nwraps here.\n\nSecond\nparagraph.", false, "First line wraps here.\nSecond paragraph."},
		{"reflow rejoins hyphenated word", "inter-\nnational trade", false, "international trade"},
		{"reflow keeps real hyphen before capital", "Jean-\nPaul", false, "Jean- Paul"},
		{"reflow joins CJK without space", "这是一个\n测试。", false, "这是一个测试。"},
		{"reflow collapses inner spaces", "a   b\t\tc\nd", false, "a b c d"},
		{"empty", "", false, ""},
		{"only blank lines", "\n \n\t\n", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, tt.keepParagraph))
		})
	}
}
