// Package viewer は1ページ表示画面の状態（ズーム・全画面・キーボード操作・ページ移動・読み込み）を管理します。
package viewer

import (
	"strconv"
	"strings"
)

const (
	MinZoom     Zoom = 50
	MaxZoom     Zoom = 200
	DefaultZoom Zoom = 100
	ZoomStep    Zoom = 10
)

// Zoom は表示倍率（パーセント）です。
type Zoom int

// In は1段階拡大した倍率を返します。
func (z Zoom) In() Zoom {
	return clampZoom(z + ZoomStep)
}

// Out は1段階縮小した倍率を返します。
func (z Zoom) Out() Zoom {
	return clampZoom(z - ZoomStep)
}

// Reset は既定の倍率を返します。
func (z Zoom) Reset() Zoom {
	return DefaultZoom
}

// CanZoomIn はこれ以上拡大できるかを返します。
func (z Zoom) CanZoomIn() bool {
	return z < MaxZoom
}

// CanZoomOut はこれ以上縮小できるかを返します。
func (z Zoom) CanZoomOut() bool {
	return z > MinZoom
}

// Scale は CSS の transform 等で使う倍率を返します。
func (z Zoom) Scale() float64 {
	return float64(z) / 100
}

func (z Zoom) String() string {
	return strconv.Itoa(int(z)) + "%"
}

// ParseZoom はクエリ文字列やフラグの値を倍率に変換します。
// 空・不正な値は既定値、範囲外は [MinZoom, MaxZoom] に丸め、ZoomStep 刻みに寄せます。
func ParseZoom(raw string) Zoom {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if raw == "" {
		return DefaultZoom
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultZoom
	}
	return snapZoom(clampZoom(Zoom(n)))
}

// snapZoom は z を最も近い ZoomStep の倍数に寄せます。z は非負であること。
func snapZoom(z Zoom) Zoom {
	return (z + ZoomStep/2) / ZoomStep * ZoomStep
}

func clampZoom(z Zoom) Zoom {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
