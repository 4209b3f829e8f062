package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/font"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

const (
	chartWidth  = 1024
	chartHeight = 640
	chartMargin = 72.0
)

// seriesPalette cycles per series / slice.
var seriesPalette = []color.NRGBA{
	{R: 0x2E, G: 0x6F, B: 0xDB, A: 0xFF},
	{R: 0xE0, G: 0x5E, B: 0x4B, A: 0xFF},
	{R: 0x3C, G: 0xA8, B: 0x6B, A: 0xFF},
	{R: 0xE8, G: 0xA8, B: 0x2E, A: 0xFF},
	{R: 0x8A, G: 0x5C, B: 0xC9, A: 0xFF},
	{R: 0x46, G: 0xB5, B: 0xB0, A: 0xFF},
}

// LineSeries is one named line on a line chart.
type LineSeries struct {
	Name   string
	Values []float64
}

type LineChartData struct {
	Title   string
	XLabels []string
	Series  []LineSeries
}

type BarChartData struct {
	Title  string
	Labels []string
	Values []float64
}

type PieChartData struct {
	Title  string
	Labels []string
	Values []float64
}

// Candle is one OHLC entry on a stock chart.
type Candle struct {
	Label string
	Open  float64
	High  float64
	Low   float64
	Close float64
}

type StockChartData struct {
	Title   string
	Candles []Candle
}

// ChartRenderer draws chart images into the persistence directory and
// returns their on-disk records.
type ChartRenderer struct {
	log  *logger.Logger
	dir  string
	face font.Face
}

// NewChartRenderer loads the optional chart font. With fontPath empty the
// renderer falls back to gg's built-in face.
func NewChartRenderer(baseLog *logger.Logger, dir, fontPath string) (*ChartRenderer, error) {
	serviceLog := baseLog.With("service", "ChartRenderer")

	var face font.Face
	if strings.TrimSpace(fontPath) != "" {
		serviceLog.Info("Loading chart font", "font", fontPath)
		loaded, err := loadFontFace(fontPath, 18)
		if err != nil {
			return nil, fmt.Errorf("could not load chart font: %w", err)
		}
		face = loaded
	}

	return &ChartRenderer{log: serviceLog, dir: dir, face: face}, nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font file: %w", err)
	}
	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size: size,
	})
	return face, nil
}

func (cr *ChartRenderer) Line(data LineChartData) (types.Chart, error) {
	if len(data.Series) == 0 {
		return types.Chart{}, faults.Invariant("render_line_chart", "no series to draw")
	}
	dc := cr.newCanvas(data.Title)

	lo, hi := seriesBounds(data.Series)
	x0, y0, x1, y1 := cr.plotArea()
	cr.drawAxes(dc, x0, y0, x1, y1, lo, hi)

	points := 0
	for _, s := range data.Series {
		if len(s.Values) > points {
			points = len(s.Values)
		}
	}
	if points < 2 {
		return types.Chart{}, faults.Invariant("render_line_chart", "need at least two points per series")
	}
	step := (x1 - x0) / float64(points-1)

	for i, s := range data.Series {
		dc.SetColor(seriesPalette[i%len(seriesPalette)])
		dc.SetLineWidth(2.5)
		for j := 1; j < len(s.Values); j++ {
			ax := x0 + float64(j-1)*step
			bx := x0 + float64(j)*step
			ay := scaleY(s.Values[j-1], lo, hi, y0, y1)
			by := scaleY(s.Values[j], lo, hi, y0, y1)
			dc.DrawLine(ax, ay, bx, by)
			dc.Stroke()
		}
	}
	cr.drawXLabels(dc, data.XLabels, x0, y0, step)
	cr.drawLegend(dc, seriesNames(data.Series), x1, chartMargin)

	return cr.save(dc, data.Title)
}

func (cr *ChartRenderer) Bar(data BarChartData) (types.Chart, error) {
	if len(data.Values) == 0 {
		return types.Chart{}, faults.Invariant("render_bar_chart", "no values to draw")
	}
	dc := cr.newCanvas(data.Title)

	lo, hi := valueBounds(data.Values)
	if lo > 0 {
		lo = 0
	}
	x0, y0, x1, y1 := cr.plotArea()
	cr.drawAxes(dc, x0, y0, x1, y1, lo, hi)

	slot := (x1 - x0) / float64(len(data.Values))
	barW := slot * 0.6
	zeroY := scaleY(0, lo, hi, y0, y1)

	for i, v := range data.Values {
		dc.SetColor(seriesPalette[i%len(seriesPalette)])
		vy := scaleY(v, lo, hi, y0, y1)
		bx := x0 + float64(i)*slot + (slot-barW)/2
		if vy < zeroY {
			dc.DrawRectangle(bx, vy, barW, zeroY-vy)
		} else {
			dc.DrawRectangle(bx, zeroY, barW, vy-zeroY)
		}
		dc.Fill()
	}

	dc.SetColor(color.Black)
	for i, label := range data.Labels {
		if i >= len(data.Values) {
			break
		}
		cx := x0 + float64(i)*slot + slot/2
		dc.DrawStringAnchored(truncateLabel(label), cx, y0+20, 0.5, 0.5)
	}

	return cr.save(dc, data.Title)
}

func (cr *ChartRenderer) Pie(data PieChartData) (types.Chart, error) {
	total := 0.0
	for _, v := range data.Values {
		if v < 0 {
			return types.Chart{}, faults.Invariant("render_pie_chart", "negative slice value")
		}
		total += v
	}
	if total == 0 {
		return types.Chart{}, faults.Invariant("render_pie_chart", "no mass to draw")
	}
	dc := cr.newCanvas(data.Title)

	cx := float64(chartWidth) * 0.4
	cy := float64(chartHeight)/2 + 20
	radius := math.Min(cx, cy) - chartMargin

	angle := -math.Pi / 2
	for i, v := range data.Values {
		sweep := v / total * 2 * math.Pi
		dc.SetColor(seriesPalette[i%len(seriesPalette)])
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, radius, angle, angle+sweep)
		dc.LineTo(cx, cy)
		dc.Fill()
		angle += sweep
	}

	legend := make([]string, 0, len(data.Labels))
	for i, label := range data.Labels {
		if i >= len(data.Values) {
			break
		}
		legend = append(legend, fmt.Sprintf("%s (%.1f%%)", label, data.Values[i]/total*100))
	}
	cr.drawLegend(dc, legend, float64(chartWidth)-chartMargin, chartMargin)

	return cr.save(dc, data.Title)
}

func (cr *ChartRenderer) Stock(data StockChartData) (types.Chart, error) {
	if len(data.Candles) == 0 {
		return types.Chart{}, faults.Invariant("render_stock_chart", "no candles to draw")
	}
	dc := cr.newCanvas(data.Title)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range data.Candles {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	lo, hi = spread(lo, hi)
	x0, y0, x1, y1 := cr.plotArea()
	cr.drawAxes(dc, x0, y0, x1, y1, lo, hi)

	up := color.NRGBA{R: 0x3C, G: 0xA8, B: 0x6B, A: 0xFF}
	down := color.NRGBA{R: 0xE0, G: 0x5E, B: 0x4B, A: 0xFF}

	slot := (x1 - x0) / float64(len(data.Candles))
	bodyW := slot * 0.5
	labels := make([]string, 0, len(data.Candles))
	for i, c := range data.Candles {
		cx := x0 + float64(i)*slot + slot/2
		highY := scaleY(c.High, lo, hi, y0, y1)
		lowY := scaleY(c.Low, lo, hi, y0, y1)
		openY := scaleY(c.Open, lo, hi, y0, y1)
		closeY := scaleY(c.Close, lo, hi, y0, y1)

		if c.Close >= c.Open {
			dc.SetColor(up)
		} else {
			dc.SetColor(down)
		}
		dc.SetLineWidth(1.5)
		dc.DrawLine(cx, highY, cx, lowY)
		dc.Stroke()

		top := math.Min(openY, closeY)
		height := math.Abs(openY - closeY)
		if height < 1 {
			height = 1
		}
		dc.DrawRectangle(cx-bodyW/2, top, bodyW, height)
		dc.Fill()
		labels = append(labels, c.Label)
	}
	cr.drawXLabels(dc, labels, x0+slot/2, y0, slot)

	return cr.save(dc, data.Title)
}

func (cr *ChartRenderer) newCanvas(title string) *gg.Context {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()
	if cr.face != nil {
		dc.SetFontFace(cr.face)
	}
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, float64(chartWidth)/2, chartMargin/2, 0.5, 0.5)
	return dc
}

// plotArea returns left x, bottom y, right x, top y of the plot rectangle.
func (cr *ChartRenderer) plotArea() (float64, float64, float64, float64) {
	return chartMargin, float64(chartHeight) - chartMargin, float64(chartWidth) - chartMargin, chartMargin
}

func (cr *ChartRenderer) drawAxes(dc *gg.Context, x0, y0, x1, y1, lo, hi float64) {
	dc.SetColor(color.NRGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xFF})
	dc.SetLineWidth(1.5)
	dc.DrawLine(x0, y0, x1, y0)
	dc.DrawLine(x0, y0, x0, y1)
	dc.Stroke()

	const ticks = 5
	dc.SetColor(color.Black)
	for i := 0; i <= ticks; i++ {
		v := lo + (hi-lo)*float64(i)/ticks
		ty := scaleY(v, lo, hi, y0, y1)
		dc.DrawStringAnchored(formatTick(v), x0-10, ty, 1, 0.5)
	}
}

func (cr *ChartRenderer) drawXLabels(dc *gg.Context, labels []string, x0, y0, step float64) {
	dc.SetColor(color.Black)
	stride := 1
	if len(labels) > 12 {
		stride = len(labels)/12 + 1
	}
	for i := 0; i < len(labels); i += stride {
		dc.DrawStringAnchored(truncateLabel(labels[i]), x0+float64(i)*step, y0+20, 0.5, 0.5)
	}
}

func (cr *ChartRenderer) drawLegend(dc *gg.Context, entries []string, rightX, topY float64) {
	const swatch = 14.0
	y := topY + 10
	for i, entry := range entries {
		dc.SetColor(seriesPalette[i%len(seriesPalette)])
		dc.DrawRectangle(rightX-220, y, swatch, swatch)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(truncateLabel(entry), rightX-220+swatch+8, y+swatch/2, 0, 0.5)
		y += swatch + 10
	}
}

func (cr *ChartRenderer) save(dc *gg.Context, title string) (types.Chart, error) {
	if err := os.MkdirAll(cr.dir, 0o755); err != nil {
		return types.Chart{}, err
	}
	path := filepath.Join(cr.dir, uuid.NewString()+".png")
	if err := dc.SavePNG(path); err != nil {
		return types.Chart{}, fmt.Errorf("save chart png: %w", err)
	}
	cr.log.Debug("Chart written", "title", title, "path", path)
	return types.Chart{Title: title, Path: path}, nil
}

func seriesBounds(series []LineSeries) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return spread(lo, hi)
}

func valueBounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return spread(lo, hi)
}

// spread keeps a flat series drawable.
func spread(lo, hi float64) (float64, float64) {
	if lo == hi {
		return lo - 1, hi + 1
	}
	return lo, hi
}

func scaleY(v, lo, hi, bottomY, topY float64) float64 {
	return bottomY - (v-lo)/(hi-lo)*(bottomY-topY)
}

func seriesNames(series []LineSeries) []string {
	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Name
	}
	return names
}

func truncateLabel(s string) string {
	const max = 24
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func formatTick(v float64) string {
	switch {
	case math.Abs(v) >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case math.Abs(v) >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
