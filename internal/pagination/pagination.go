// Package pagination はページ一覧のグループ分けと、ページ送り用のウィンドウ計算を提供します。
// いずれも副作用のない純粋関数です。
package pagination

const (
	// DefaultGroupSize は一覧画面で1グループにまとめるページ数です。
	DefaultGroupSize = 20
	// DefaultWindowSize は現在ページ周辺に表示するページ番号の数です。
	DefaultWindowSize = 5
)

// Group は連続したページ範囲 [Start, End] を表します。
type Group struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len はグループに含まれるページ数を返します。
func (g Group) Len() int {
	return g.End - g.Start + 1
}

// Pages はグループに含まれるページ番号を昇順で返します。
func (g Group) Pages() []int {
	if g.End < g.Start {
		return nil
	}
	pages := make([]int, 0, g.Len())
	for p := g.Start; p <= g.End; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Contains は page がグループ内にあるかを返します。
func (g Group) Contains(page int) bool {
	return page >= g.Start && page <= g.End
}

// Groups は [1, totalPages] を groupSize ごとの連続した範囲に分割します。
// 最後のグループのみ短くなることがあります。totalPages が 0 以下なら空です。
func Groups(totalPages, groupSize int) []Group {
	if totalPages <= 0 {
		return []Group{}
	}
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	count := (totalPages + groupSize - 1) / groupSize
	groups := make([]Group, 0, count)
	for i := 0; i < count; i++ {
		start := i*groupSize + 1
		end := min((i+1)*groupSize, totalPages)
		groups = append(groups, Group{Start: start, End: end})
	}
	return groups
}

// Marker はページ送りの1要素です。Ellipsis が true の場合 Page は 0 です。
type Marker struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// PageMarker はページ番号のマーカーを返します。
func PageMarker(page int) Marker {
	return Marker{Page: page}
}

// EllipsisMarker は省略記号のマーカーを返します。
func EllipsisMarker() Marker {
	return Marker{Ellipsis: true}
}

// IsCurrent は m が current ページを指しているかを返します。
func (m Marker) IsCurrent(current int) bool {
	return !m.Ellipsis && m.Page == current
}

// Window は現在ページを中心としたページ送りを計算します。
//
// 先頭は常に 1、末尾は totalPages (>1 の場合) で、その間に最大 windowSize 件の
// 連続したページが並びます。連続範囲が先頭・末尾と隣接しない位置には省略記号が入ります。
// currentPage は [1, totalPages] に丸められます。
func Window(currentPage, totalPages, windowSize int) []Marker {
	if totalPages <= 0 {
		return []Marker{}
	}
	if totalPages == 1 {
		return []Marker{PageMarker(1)}
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	currentPage = max(1, min(currentPage, totalPages))

	markers := []Marker{PageMarker(1)}

	start := max(2, currentPage-windowSize/2)
	end := min(totalPages-1, start+windowSize-1)
	// 末尾で切り詰められた場合は開始位置を引き戻して件数を保つ
	if end-start+1 < windowSize {
		start = max(2, end-windowSize+1)
	}

	if start > 2 {
		markers = append(markers, EllipsisMarker())
	}
	for p := start; p <= end; p++ {
		markers = append(markers, PageMarker(p))
	}
	if end < totalPages-1 {
		markers = append(markers, EllipsisMarker())
	}

	markers = append(markers, PageMarker(totalPages))
	return markers
}
