// Package theme は閲覧画面のテーマ（11種類の固定セット）と、その適用・永続化を扱います。
package theme

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Theme はテーマ名です。保存値・CSS クラス名の元になります。
type Theme string

const (
	Minimal   Theme = "minimal"
	Dark      Theme = "dark"
	Sepia     Theme = "sepia"
	Fantasy   Theme = "fantasy"
	Pastel    Theme = "pastel"
	Cyberpunk Theme = "cyberpunk"
	Vintage   Theme = "vintage"
	Ocean     Theme = "ocean"
	Forest    Theme = "forest"
	Noir      Theme = "noir"
	Cozy      Theme = "cozy"
)

// Default は保存値が無い・不正な場合に使うテーマです。
const Default = Minimal

// classPrefix はドキュメントルートに付与するクラス名の接頭辞です。
const classPrefix = "theme-"

var all = []Theme{
	Minimal, Dark, Sepia, Fantasy, Pastel, Cyberpunk,
	Vintage, Ocean, Forest, Noir, Cozy,
}

var displayNames = map[Theme]string{
	Minimal:   "Minimal Light",
	Dark:      "Dark Mode",
	Sepia:     "Sepia Tone",
	Fantasy:   "Fantasy",
	Pastel:    "Pastel",
	Cyberpunk: "Cyberpunk",
	Vintage:   "Vintage",
	Ocean:     "Ocean",
	Forest:    "Forest",
	Noir:      "Noir",
	Cozy:      "Cozy Night",
}

// All は全テーマを表示順で返します。
func All() []Theme {
	out := make([]Theme, len(all))
	copy(out, all)
	return out
}

// Parse は文字列をテーマに変換します。未知の値は ok=false です。
func Parse(name string) (Theme, bool) {
	t := Theme(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := displayNames[t]; !ok {
		return "", false
	}
	return t, true
}

// ParseOrDefault は Parse に失敗した場合 Default を返します。
func ParseOrDefault(name string) Theme {
	if t, ok := Parse(name); ok {
		return t
	}
	return Default
}

// Valid は t が既知のテーマかを返します。
func (t Theme) Valid() bool {
	_, ok := displayNames[t]
	return ok
}

// String は保存用の文字列を返します。
func (t Theme) String() string {
	return string(t)
}

// Class はドキュメントルートに付与する CSS クラス名を返します。
func (t Theme) Class() string {
	return classPrefix + string(t)
}

// DisplayName はテーマ選択 UI 向けの表示名を返します。
func (t Theme) DisplayName() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// Classes は全テーマの CSS クラス名を返します。
func Classes() []string {
	classes := make([]string, 0, len(all))
	for _, t := range all {
		classes = append(classes, t.Class())
	}
	return classes
}

// Search はテーマ名・表示名に対するあいまい検索を行います。
// 空のクエリは全テーマを返します。
func Search(query string) []Theme {
	query = strings.TrimSpace(query)
	if query == "" {
		return All()
	}

	// 名前と表示名を同じ検索対象に並べ、インデックスからテーマを逆引きする
	targets := make([]string, 0, len(all)*2)
	owners := make([]Theme, 0, len(all)*2)
	for _, t := range all {
		targets = append(targets, string(t), displayNames[t])
		owners = append(owners, t, t)
	}

	matches := fuzzy.Find(strings.ToLower(query), lowerAll(targets))
	seen := make(map[Theme]bool, len(all))
	results := make([]Theme, 0, len(matches))
	for _, m := range matches {
		t := owners[m.Index]
		if seen[t] {
			continue
		}
		seen[t] = true
		results = append(results, t)
	}
	return results
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
