package web

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageContent はバックエンドが生成したページ HTML から取り出した、埋め込み用の本文とスタイルです。
type PageContent struct {
	Styles template.CSS
	Body   template.HTML
}

// Empty は本文が空かを返します。
func (p PageContent) Empty() bool {
	return strings.TrimSpace(string(p.Body)) == ""
}

// ExtractContent はページ HTML から <style> と <body> の中身を取り出します。
// スクリプトやイベントハンドラ属性は取り除きます。
func ExtractContent(raw string) (PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return PageContent{}, fmt.Errorf("failed to parse page markup: %w", err)
	}

	var styles strings.Builder
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		styles.WriteString(s.Text())
		styles.WriteString("\n")
	})

	doc.Find("script, noscript, iframe, object, embed, style, link, meta, base").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			key := strings.ToLower(attr.Key)
			if strings.HasPrefix(key, "on") {
				continue
			}
			if (key == "href" || key == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})

	body, err := doc.Find("body").Html()
	if err != nil {
		return PageContent{}, fmt.Errorf("failed to render page body: %w", err)
	}

	return PageContent{
		Styles: template.CSS(strings.TrimSpace(styles.String())),
		Body:   template.HTML(strings.TrimSpace(body)),
	}, nil
}
