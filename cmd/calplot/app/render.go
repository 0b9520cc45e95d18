package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/rc-transmitter/internal/control"
	"github.com/roman-kulish/rc-transmitter/internal/input"
	"github.com/roman-kulish/rc-transmitter/internal/storage"
)

const (
	dpi      float64 = 72
	fontSize float64 = 14

	defaultWidth = 800
	minWidth     = 300

	margin       = 20
	headerHeight = 40
	rowHeight    = 70
	barHeight    = 18
)

var (
	backgroundColor = color.RGBA{R: 0x1e, G: 0x1e, B: 0x24, A: 0xff}
	scaleColor      = color.RGBA{R: 0x44, G: 0x44, B: 0x50, A: 0xff}
	rangeColor      = color.RGBA{R: 0x2e, G: 0x8b, B: 0x57, A: 0xff}
	centerColor     = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}
)

// AxisSummary is the latest known calibration of one axis. Zero values mean
// the session never reported that part.
type AxisSummary struct {
	Axis      string
	Min       int
	Max       int
	Center    int
	HasRange  bool
	HasCenter bool
}

// Travel is the observed span of raw samples.
func (a AxisSummary) Travel() int {
	if !a.HasRange {
		return 0
	}
	return a.Max - a.Min
}

// Summarize folds calibration rows into one summary per axis, in axis order.
// Rows are expected oldest first, so later reports win.
func Summarize(records []*storage.CalibrationRecord) []AxisSummary {
	axes := make([]AxisSummary, control.NumAxes)
	index := make(map[string]int, control.NumAxes)
	for i := range axes {
		axes[i].Axis = control.Axis(i).String()
		index[axes[i].Axis] = i
	}

	for _, r := range records {
		i, ok := index[r.Axis]
		if !ok {
			continue
		}
		if r.RawMin.Valid && r.RawMax.Valid {
			axes[i].Min, axes[i].Max = int(r.RawMin.Int64), int(r.RawMax.Int64)
			axes[i].HasRange = true
		}
		if r.RawCenter.Valid {
			axes[i].Center = int(r.RawCenter.Int64)
			axes[i].HasCenter = true
		}
	}
	return axes
}

// Renderer draws one bar per axis over the full ADC scale: the observed range
// filled, the resting center as a marker.
type Renderer struct {
	width   int
	context *freetype.Context
}

func NewRenderer(width int) (*Renderer, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Renderer{width: width, context: context}, nil
}

// scaleX maps a raw sample onto the bar area.
func (r *Renderer) scaleX(raw int) int {
	raw = max(0, min(raw, input.FullScale))
	return margin + raw*(r.width-2*margin)/input.FullScale
}

func (r *Renderer) Render(title string, axes []AxisSummary) (*image.RGBA, error) {
	height := headerHeight + len(axes)*rowHeight + margin
	img := image.NewRGBA(image.Rect(0, 0, r.width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	if _, err := r.context.DrawString(title, freetype.Pt(margin, margin+int(fontSize)/2)); err != nil {
		return nil, fmt.Errorf("drawing title: %w", err)
	}

	for i, a := range axes {
		top := headerHeight + i*rowHeight
		if err := r.drawAxis(img, top, a); err != nil {
			return nil, fmt.Errorf("drawing %s: %w", a.Axis, err)
		}
	}

	return img, nil
}

func (r *Renderer) drawAxis(img *image.RGBA, top int, a AxisSummary) error {
	label := a.Axis
	if a.HasRange {
		label += fmt.Sprintf("  min %s  max %s  travel %s",
			humanize.Comma(int64(a.Min)), humanize.Comma(int64(a.Max)), humanize.Comma(int64(a.Travel())))
	}
	if a.HasCenter {
		label += fmt.Sprintf("  center %s", humanize.Comma(int64(a.Center)))
	}
	if _, err := r.context.DrawString(label, freetype.Pt(margin, top+int(fontSize))); err != nil {
		return err
	}

	barTop := top + int(fontSize) + 10
	bar := image.Rect(r.scaleX(0), barTop, r.scaleX(input.FullScale)+1, barTop+barHeight)
	draw.Draw(img, bar, image.NewUniform(scaleColor), image.Point{}, draw.Src)

	if a.HasRange {
		span := image.Rect(r.scaleX(a.Min), barTop, r.scaleX(a.Max)+1, barTop+barHeight)
		draw.Draw(img, span, image.NewUniform(rangeColor), image.Point{}, draw.Src)
	}
	if a.HasCenter {
		x := r.scaleX(a.Center)
		marker := image.Rect(x-1, barTop-4, x+2, barTop+barHeight+4)
		draw.Draw(img, marker, image.NewUniform(centerColor), image.Point{}, draw.Src)
	}
	return nil
}
