package agent

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// 注册常见帧编码的解码器（仿真器采样为 PNG/JPEG）
	_ "image/jpeg"
	_ "image/png"
)

// Classifier 基于 HSV 颜色分割的障碍物判定器
// 将帧转入 HSV 空间后统计落在绿色色带内的像素占比，超过阈值即判定有障碍。
// 色相把颜色身份与光照强度分开，固定色带对明暗变化更稳健。
type Classifier struct {
	HueMin       float64 // 色相下界，0-179 半度刻度（同 OpenCV）
	HueMax       float64
	SatMin       float64 // 饱和度下界，0-255
	ValMin       float64 // 明度下界，0-255
	GreenPercent float64 // 判定阈值（百分比）

	metrics *LoopMetrics // 可为 nil
}

// NewClassifier 按配置构造判定器
func NewClassifier(cfg Config, m *LoopMetrics) *Classifier {
	return &Classifier{
		HueMin:       cfg.HueMin,
		HueMax:       cfg.HueMax,
		SatMin:       cfg.SatMin,
		ValMin:       cfg.ValMin,
		GreenPercent: cfg.GreenPercent,
		metrics:      m,
	}
}

// ObstacleAhead 对一帧 data URI 图像给出二值判定
// 解码失败按"无障碍"处理（fail-open）：损坏的帧不应卡住机器人，只记录原因
func (c *Classifier) ObstacleAhead(imageDataURI string) bool {
	img, err := decodeDataURI(imageDataURI)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncDecodeFailure()
		}
		Log.Warnf("frame decode failed, treating as clear path: %v", err)
		return false
	}
	return c.greenPercent(img) > c.GreenPercent
}

// greenPercent 统计落在绿色色带内的像素百分比
func (c *Classifier) greenPercent(img image.Image) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	green := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			h, s, v := rgbToHSV(uint8(r16>>8), uint8(g16>>8), uint8(b16>>8))
			if h >= c.HueMin && h <= c.HueMax && s >= c.SatMin && v >= c.ValMin {
				green++
			}
		}
	}
	return float64(green) / float64(total) * 100
}

// decodeDataURI 剥离 data URI 头部后做 base64 + 图像解码
// 形如 "data:image/png;base64,...."，逗号前为头部
func decodeDataURI(s string) (image.Image, error) {
	_, encoded, found := strings.Cut(s, ",")
	if !found {
		// 无头部时按裸 base64 处理
		encoded = s
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode: %w", err)
	}
	return img, nil
}

// rgbToHSV 转换到 OpenCV 刻度的 HSV：h∈[0,180)，s/v∈[0,255]
func rgbToHSV(r8, g8, b8 uint8) (h, s, v float64) {
	r := float64(r8)
	g := float64(g8)
	b := float64(b8)

	maxC := max(r, max(g, b))
	minC := min(r, min(g, b))
	v = maxC
	if maxC > 0 {
		s = (maxC - minC) / maxC * 255
	}
	if maxC == minC {
		return 0, s, v // 灰度像素无色相
	}

	d := maxC - minC
	var deg float64
	switch maxC {
	case r:
		deg = 60 * (g - b) / d
	case g:
		deg = 120 + 60*(b-r)/d
	default:
		deg = 240 + 60*(r-g)/d
	}
	if deg < 0 {
		deg += 360
	}
	return deg / 2, s, v
}
