package chart

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bfx-lending-bot/internal/state"
)

func ratePoints(n int) []state.RatePoint {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	points := make([]state.RatePoint, n)
	for i := range points {
		points[i] = state.RatePoint{
			Time: base.Add(time.Duration(i) * time.Minute),
			Rate: decimal.NewFromFloat(0.0002).Add(decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(1000000))),
		}
	}
	return points
}

func TestDownsampleKeepsEndpoints(t *testing.T) {
	points := ratePoints(100)
	out := Downsample(points, 10)

	if len(out) != 10 {
		t.Fatalf("降采样后应为 10 个点, 实际 %d", len(out))
	}
	if !out[0].Time.Equal(points[0].Time) {
		t.Fatalf("首点应保留")
	}
	if !out[len(out)-1].Time.Equal(points[len(points)-1].Time) {
		t.Fatalf("末点应保留")
	}
}

func TestDownsampleNoopWhenSmall(t *testing.T) {
	points := ratePoints(5)
	out := Downsample(points, 10)
	if len(out) != 5 {
		t.Fatalf("点数未超限时不应降采样, 实际 %d", len(out))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ratePoints(3)); err != nil {
		t.Fatalf("写 CSV 失败: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("应有表头加 3 行数据, 实际 %d 行", len(lines))
	}
	if lines[0] != "ts,best_ask_rate,apr_pct" {
		t.Fatalf("表头不符: %s", lines[0])
	}
	if !strings.Contains(lines[1], "2024-05-01T00:00:00Z") {
		t.Fatalf("首行时间戳不符: %s", lines[1])
	}
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, ratePoints(20)); err != nil {
		t.Fatalf("渲染 PNG 失败: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("PNG 输出为空")
	}
	// PNG magic bytes
	if !bytes.HasPrefix(buf.Bytes(), []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("输出不是 PNG 格式")
	}
}

func TestRenderPNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, nil); err != ErrNoData {
		t.Fatalf("空历史应返回 ErrNoData, 实际 %v", err)
	}
}
