package agent

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidImage 生成纯色测试图
func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// pngDataURI 按仿真器的格式编码为 data URI（PNG 无损，像素占比可精确控制）
func pngDataURI(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultConfig(), nil)
}

var (
	obstacleGreen = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	pureBlue      = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

func TestClassifierGreenObstacle(t *testing.T) {
	cls := newTestClassifier()
	uri := pngDataURI(t, solidImage(64, 48, obstacleGreen))
	assert.True(t, cls.ObstacleAhead(uri))
}

func TestClassifierNonGreenHueClear(t *testing.T) {
	cls := newTestClassifier()
	// 色带之外的色相，不论饱和度/明度组合都不算障碍
	for _, c := range []color.RGBA{
		{R: 0, G: 0, B: 255, A: 255},     // 纯蓝
		{R: 0, G: 0, B: 80, A: 255},      // 暗蓝
		{R: 150, G: 150, B: 255, A: 255}, // 淡蓝
		{R: 255, G: 0, B: 0, A: 255},     // 纯红
	} {
		uri := pngDataURI(t, solidImage(32, 32, c))
		assert.False(t, cls.ObstacleAhead(uri), "color %v should not trigger", c)
	}
}

func TestClassifierSatValFloor(t *testing.T) {
	cls := newTestClassifier()
	// 发白的绿（低饱和）与近黑的绿（低明度）都应被排除
	washed := color.RGBA{R: 225, G: 255, B: 225, A: 255}
	dark := color.RGBA{R: 0, G: 40, B: 0, A: 255}
	assert.False(t, cls.ObstacleAhead(pngDataURI(t, solidImage(32, 32, washed))))
	assert.False(t, cls.ObstacleAhead(pngDataURI(t, solidImage(32, 32, dark))))
}

func TestClassifierThresholdMonotonic(t *testing.T) {
	cls := newTestClassifier()
	// 100x100 = 10000 像素，阈值 0.1% 即 10 像素；判定为严格大于
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	cases := []struct {
		greenPixels int
		want        bool
	}{
		{0, false},
		{5, false},
		{10, false}, // 恰好等于阈值不触发
		{11, true},
		{100, true},
		{5000, true},
		{10000, true},
	}
	for _, tc := range cases {
		img := solidImage(100, 100, gray)
		for i := 0; i < tc.greenPixels; i++ {
			img.SetRGBA(i%100, i/100, obstacleGreen)
		}
		got := cls.ObstacleAhead(pngDataURI(t, img))
		assert.Equal(t, tc.want, got, "green pixels = %d", tc.greenPixels)
	}
}

func TestClassifierDecodeFailOpen(t *testing.T) {
	m := &LoopMetrics{}
	cls := NewClassifier(DefaultConfig(), m)
	for _, payload := range []string{
		"",
		"not an image at all",
		"data:image/png;base64,!!!!",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("garbage bytes")),
	} {
		// 解码失败不得外抛，一律按"无障碍"处理
		assert.False(t, cls.ObstacleAhead(payload))
	}
	assert.Equal(t, int64(4), m.DecodeFailures)
}

func TestClassifierTruncatedImageFailOpen(t *testing.T) {
	cls := newTestClassifier()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(64, 64, obstacleGreen)))
	truncated := buf.Bytes()[:buf.Len()/3]
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(truncated)
	assert.False(t, cls.ObstacleAhead(uri))
}

func TestDecodeDataURIBareBase64(t *testing.T) {
	// 没有 data URI 头部时按裸 base64 解
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(8, 8, pureBlue)))
	img, err := decodeDataURI(base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestRGBToHSVScale(t *testing.T) {
	// 纯绿：色相 120° → 半度刻度 60，落在 35-85 色带内
	h, s, v := rgbToHSV(0, 255, 0)
	assert.InDelta(t, 60, h, 0.01)
	assert.InDelta(t, 255, s, 0.01)
	assert.InDelta(t, 255, v, 0.01)

	// 纯蓝：色相 240° → 120，在色带外
	h, _, _ = rgbToHSV(0, 0, 255)
	assert.InDelta(t, 120, h, 0.01)

	// 灰度无色相、零饱和
	h, s, v = rgbToHSV(128, 128, 128)
	assert.Zero(t, h)
	assert.Zero(t, s)
	assert.InDelta(t, 128, v, 0.01)
}
