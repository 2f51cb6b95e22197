package theme

import "strings"

// ClassList はドキュメントルートのクラス属性を操作するためのインターフェースです。
type ClassList interface {
	Add(classes ...string)
	Remove(classes ...string)
	Contains(class string) bool
}

// ClassSet は挿入順を保つ ClassList 実装です。テンプレートでは String() をそのまま class 属性に使います。
type ClassSet struct {
	classes []string
}

// NewClassSet は初期クラスを持つ ClassSet を作成します。
func NewClassSet(classes ...string) *ClassSet {
	s := &ClassSet{}
	s.Add(classes...)
	return s
}

func (s *ClassSet) Add(classes ...string) {
	for _, c := range classes {
		c = strings.TrimSpace(c)
		if c == "" || s.Contains(c) {
			continue
		}
		s.classes = append(s.classes, c)
	}
}

func (s *ClassSet) Remove(classes ...string) {
	if len(classes) == 0 {
		return
	}
	drop := make(map[string]bool, len(classes))
	for _, c := range classes {
		drop[c] = true
	}
	kept := s.classes[:0]
	for _, c := range s.classes {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	s.classes = kept
}

func (s *ClassSet) Contains(class string) bool {
	for _, c := range s.classes {
		if c == class {
			return true
		}
	}
	return false
}

// Slice は現在のクラスをコピーして返します。
func (s *ClassSet) Slice() []string {
	out := make([]string, len(s.classes))
	copy(out, s.classes)
	return out
}

func (s *ClassSet) String() string {
	return strings.Join(s.classes, " ")
}

// Preferences はテーマ設定の永続化先です。
type Preferences interface {
	SetThemePreference(t Theme)
	ThemePreference() Theme
}

// Controller はテーマの適用と保存を行います。
type Controller struct {
	prefs Preferences
}

// NewController は Controller を作成します。
func NewController(prefs Preferences) *Controller {
	return &Controller{prefs: prefs}
}

// ApplyClasses は root から全テーマクラスを外し、t のクラスだけを付与します。永続化はしません。
func ApplyClasses(root ClassList, t Theme) {
	if !t.Valid() {
		t = Default
	}
	root.Remove(Classes()...)
	root.Add(t.Class())
}

// Apply は root にテーマを適用し、設定として保存します。何度呼んでも結果は同じです。
func (c *Controller) Apply(root ClassList, t Theme) {
	if !t.Valid() {
		t = Default
	}
	ApplyClasses(root, t)
	if c.prefs != nil {
		c.prefs.SetThemePreference(t)
	}
}

// ResolveInitial は保存済みのテーマを返します。未設定・不正な値なら Default です。
func (c *Controller) ResolveInitial() Theme {
	if c.prefs == nil {
		return Default
	}
	if t := c.prefs.ThemePreference(); t.Valid() {
		return t
	}
	return Default
}
