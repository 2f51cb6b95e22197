package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// Converter はページ HTML を端末表示用の Markdown テキストに変換します。
type Converter struct {
	conv *converter.Converter
}

// NewConverter は Converter を作成します。
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	// script / style / iframe は base プラグインが除去する
	for _, tag := range []string{"embed", "object", "nav", "form", "button", "select", "canvas", "video", "audio"} {
		conv.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
	}
	return &Converter{conv: conv}
}

// Convert は html を Markdown に変換し、連続する空行を1行にまとめます。
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	markdown, err := c.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert page to text: %w", err)
	}

	lines := strings.Split(markdown, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" && (len(cleaned) == 0 || cleaned[len(cleaned)-1] == "") {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n")), nil
}

// BaseWidth は 100% 表示時の折り返し幅（桁数）です。
const BaseWidth = 80

const minWidth = 20

// WidthFor は倍率に応じた折り返し幅を返します。倍率を上げるほど1行が短くなります。
// 全画面表示では操作部が無い分だけ幅を広げます。
func WidthFor(zoom int, base int, fullscreen bool) int {
	if base <= 0 {
		base = BaseWidth
	}
	if zoom <= 0 {
		zoom = 100
	}
	if fullscreen {
		base = base * 5 / 4
	}
	return max(minWidth, base*100/zoom)
}

// Wrap は text を width 桁で折り返します。空行とコードブロックはそのまま残します。
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	inCode := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			out = append(out, line)
			continue
		}
		if inCode || utf8.RuneCountInString(line) <= width {
			out = append(out, line)
			continue
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
		var current strings.Builder
		current.WriteString(indent)
		n := utf8.RuneCountInString(indent)
		for _, word := range strings.Fields(line) {
			wn := utf8.RuneCountInString(word)
			if n > len(indent) && n+1+wn > width {
				out = append(out, current.String())
				current.Reset()
				current.WriteString(indent)
				n = len(indent)
			}
			if n > len(indent) {
				current.WriteByte(' ')
				n++
			}
			current.WriteString(word)
			n += wn
		}
		out = append(out, current.String())
	}
	return strings.Join(out, "\n")
}
