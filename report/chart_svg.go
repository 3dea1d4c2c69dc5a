package report

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
)

type SVGOptions struct {
	Width  int
	Height int
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Width <= 0 {
		o.Width = 1200
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	return o
}

const (
	bg      = "#0b1220"
	gridCol = "rgba(255,255,255,0.08)"
	txt     = "rgba(255,255,255,0.85)"
	up      = "#22c55e"
	down    = "#ef4444"
	monoFnt = "ui-monospace, Menlo, Monaco, Consolas, monospace"
)

var palette = []string{"#38bdf8", "#f59e0b", "#a78bfa", "#f472b6", "#34d399"}

// frame maps data coordinates into one rectangular plot area.
type frame struct {
	left, top, width, height float64
	n                        int
	min, max                 float64
}

func newFrame(left, top, width, height float64, n int, series ...[]float64) (frame, error) {
	f := frame{left: left, top: top, width: width, height: height, n: n}
	f.min, f.max = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			f.min = math.Min(f.min, v)
			f.max = math.Max(f.max, v)
		}
	}
	if math.IsInf(f.min, 0) || math.IsInf(f.max, 0) {
		return f, fmt.Errorf("chart: no finite values")
	}
	pad := (f.max - f.min) * 0.05
	if pad <= 0 {
		pad = math.Max(math.Abs(f.min)*0.02, 1)
	}
	f.min -= pad
	f.max += pad
	return f, nil
}

func (f frame) x(i int) float64 {
	if f.n <= 1 {
		return f.left
	}
	return f.left + float64(i)/float64(f.n-1)*f.width
}

func (f frame) y(v float64) float64 {
	r := (v - f.min) / (f.max - f.min)
	r = math.Max(0, math.Min(1, r))
	return f.top + (1-r)*f.height
}

// path draws a polyline through the defined values, lifting the pen over
// NaN gaps such as indicator warm-up.
func (f frame) path(values []float64) string {
	var sb strings.Builder
	pen := false
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			pen = false
			continue
		}
		if pen {
			sb.WriteString(" L")
		} else {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("M")
			pen = true
		}
		sb.WriteString(fmtFloat(f.x(i)))
		sb.WriteString(" ")
		sb.WriteString(fmtFloat(f.y(v)))
	}
	return sb.String()
}

func (f frame) grid(buf *bytes.Buffer, label func(float64) string) {
	for k := 0; k <= 5; k++ {
		y := f.top + float64(k)/5*f.height
		buf.WriteString(`<line x1="` + fmtFloat(f.left) + `" y1="` + fmtFloat(y) + `" x2="` + fmtFloat(f.left+f.width) + `" y2="` + fmtFloat(y) + `" stroke="` + gridCol + `" stroke-width="1"/>` + "\n")
		v := f.max - float64(k)/5*(f.max-f.min)
		text(buf, 6, y+4, 12, txt, label(v))
	}
}

func header(buf *bytes.Buffer, w, h int) {
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + strconv.Itoa(w) + `" height="` + strconv.Itoa(h) + `" viewBox="0 0 ` + strconv.Itoa(w) + ` ` + strconv.Itoa(h) + `">` + "\n")
	buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + bg + `"/>` + "\n")
}

func text(buf *bytes.Buffer, x, y float64, size int, color, s string) {
	buf.WriteString(`<text x="` + fmtFloat(x) + `" y="` + fmtFloat(y) + `" fill="` + color + `" font-size="` + strconv.Itoa(size) + `" font-family="` + monoFnt + `">` +
		html.EscapeString(s) + `</text>` + "\n")
}

func polyline(buf *bytes.Buffer, d, color string, width float64) {
	if d == "" {
		return
	}
	buf.WriteString(`<path d="` + d + `" fill="none" stroke="` + color + `" stroke-width="` + fmtFloat(width) + `"/>` + "\n")
}

func legend(buf *bytes.Buffer, x, y float64, names, colors []string) {
	for i, name := range names {
		yy := y + float64(i)*16
		buf.WriteString(`<rect x="` + fmtFloat(x) + `" y="` + fmtFloat(yy-9) + `" width="12" height="3" fill="` + colors[i] + `"/>` + "\n")
		text(buf, x+18, yy, 12, txt, name)
	}
}

func dateFooter(buf *bytes.Buffer, f frame, y float64, first, last time.Time) {
	text(buf, f.left, y, 12, txt, first.Format("2006-01-02"))
	text(buf, f.left+f.width-80, y, 12, txt, last.Format("2006-01-02"))
}

// RenderComparisonSVG draws every column of the combined equity table on
// one chart.
func RenderComparisonSVG(symbol string, t backtest.Table, opt SVGOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if t.Len() < 2 {
		return nil, fmt.Errorf("chart: not enough rows: %d", t.Len())
	}

	cols := make([][]float64, len(t.Columns))
	for i, name := range t.Columns {
		cols[i] = t.Column(name)
	}

	w, h := float64(opt.Width), float64(opt.Height)
	mLeft, mRight, mTop, mBottom := 90.0, 20.0, 40.0, 40.0
	f, err := newFrame(mLeft, mTop, w-mLeft-mRight, h-mTop-mBottom, t.Len(), cols...)
	if err != nil {
		return nil, err
	}
	if f.width <= 10 || f.height <= 10 {
		return nil, fmt.Errorf("chart: invalid size")
	}

	var buf bytes.Buffer
	header(&buf, opt.Width, opt.Height)
	text(&buf, mLeft, 20, 16, txt, strings.TrimSpace(symbol)+" Strategy Comparison")
	text(&buf, 6, mTop-10, 12, txt, "Portfolio Value ($)")
	f.grid(&buf, fmtPrice)

	colors := make([]string, len(cols))
	for i, c := range cols {
		colors[i] = palette[i%len(palette)]
		polyline(&buf, f.path(c), colors[i], 1.5)
	}
	legend(&buf, mLeft+10, mTop+16, t.Columns, colors)
	dateFooter(&buf, f, h-12, t.Dates[0], t.Dates[t.Len()-1])

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

// RenderRunSVG draws the detailed view of one run: close price with the
// strategy lines and trade markers on top, equity below.
func RenderRunSVG(r *backtest.Result, closes []float64, opt SVGOptions) ([]byte, error) {
	opt = opt.withDefaults()
	n := len(r.Equity)
	if n < 2 || len(closes) != n {
		return nil, fmt.Errorf("chart: %s: need matching closes and equity, got %d and %d", r.Name(), len(closes), n)
	}

	w, h := float64(opt.Width), float64(opt.Height)
	mLeft, mRight, mTop, mBottom, gap := 90.0, 20.0, 40.0, 40.0, 30.0
	plotW := w - mLeft - mRight
	avail := h - mTop - mBottom - gap
	priceH, eqH := avail*0.65, avail*0.35
	if plotW <= 10 || eqH <= 10 {
		return nil, fmt.Errorf("chart: invalid size")
	}

	var overlay []indicators.Series
	var names, colors []string
	names = append(names, "Close")
	colors = append(colors, "rgba(255,255,255,0.7)")
	for _, ln := range []struct {
		s    indicators.Series
		name string
	}{{r.Lines.A, r.Lines.NameA}, {r.Lines.B, r.Lines.NameB}} {
		if ln.name == "Close" || len(ln.s) != n {
			continue
		}
		overlay = append(overlay, ln.s)
		names = append(names, ln.name)
		colors = append(colors, palette[(len(names)-2)%len(palette)])
	}

	priceSeries := [][]float64{closes}
	for _, s := range overlay {
		priceSeries = append(priceSeries, s)
	}
	pf, err := newFrame(mLeft, mTop, plotW, priceH, n, priceSeries...)
	if err != nil {
		return nil, err
	}
	eq := r.EquityValues()
	ef, err := newFrame(mLeft, mTop+priceH+gap, plotW, eqH, n, eq)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	header(&buf, opt.Width, opt.Height)
	text(&buf, mLeft, 20, 16, txt, r.Symbol+"  "+r.Name())

	pf.grid(&buf, fmtPrice)
	polyline(&buf, pf.path(closes), colors[0], 1)
	for i, s := range overlay {
		polyline(&buf, pf.path(s), colors[i+1], 1.3)
	}

	for _, t := range r.Trades {
		marker(&buf, pf.x(t.EntryIdx), pf.y(t.EntryPrice), true)
		if !t.Open {
			marker(&buf, pf.x(t.ExitIdx), pf.y(t.ExitPrice), false)
		}
	}
	legend(&buf, mLeft+10, mTop+16, names, colors)

	ef.grid(&buf, fmtPrice)
	polyline(&buf, ef.path(eq), palette[0], 1.5)
	text(&buf, mLeft+10, ef.top+14, 12, txt, "Equity")

	dateFooter(&buf, pf, h-12, r.Equity[0].Time, r.Equity[n-1].Time)
	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

// marker is an up triangle for entries and a down triangle for exits.
func marker(buf *bytes.Buffer, x, y float64, entry bool) {
	col, dy := up, 8.0
	if !entry {
		col, dy = down, -8.0
	}
	pts := fmtFloat(x) + "," + fmtFloat(y) + " " +
		fmtFloat(x-5) + "," + fmtFloat(y+dy) + " " +
		fmtFloat(x+5) + "," + fmtFloat(y+dy)
	buf.WriteString(`<polygon points="` + pts + `" fill="` + col + `"/>` + "\n")
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtPrice(p float64) string {
	if math.Abs(p) >= 1000 {
		return money.Sprintf("%.0f", p)
	}
	if math.Abs(p) >= 100 {
		return strconv.FormatFloat(p, 'f', 1, 64)
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}
