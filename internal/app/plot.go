// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/gait_computer/internal/record"
)

const (
	plotWidth  = 1000
	plotHeight = 420
	plotMargin = 40
)

var (
	colBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colAxis       = color.RGBA{0x60, 0x60, 0x60, 0xff}
	colForce      = color.RGBA{0x1f, 0x77, 0xb4, 0xff}
	colThreshold  = color.RGBA{0xaa, 0xaa, 0xaa, 0xff}
	colHS         = color.RGBA{0x2c, 0xa0, 0x2c, 0xff}
	colTO         = color.RGBA{0xd6, 0x27, 0x28, 0xff}
	colCOP        = color.RGBA{0x94, 0x67, 0xbd, 0xff}
	colText       = color.RGBA{0x20, 0x20, 0x20, 0xff}
)

// PlotData is what a recording contributes to the plot.
type PlotData struct {
	Times  []float64
	Total  []float64
	Gait   *record.GaitEvents
	COP    *record.COPPath
	Ball   *record.BallSummary
	Source string
}

// CollectPlotData extracts the force series and summaries of the first
// insole foot seen.
func CollectPlotData(recs []record.Record) PlotData {
	var d PlotData
	foot := ""
	for _, r := range recs {
		switch rec := r.(type) {
		case *record.InsoleSample:
			if foot == "" {
				foot = rec.Foot
			}
			if rec.Foot != foot {
				continue
			}
			var total float64
			for _, s := range rec.Sensors {
				total += s.Force
			}
			d.Times = append(d.Times, rec.T)
			d.Total = append(d.Total, total)
		case *record.GaitEvents:
			if d.Gait == nil {
				d.Gait = rec
			}
		case *record.COPPath:
			if d.COP == nil {
				d.COP = rec
			}
		case *record.BallSummary:
			d.Ball = rec
		}
	}
	return d
}

// RenderPlot draws total force with HS/TO markers on the left and the COP
// path on the right.
func RenderPlot(d PlotData) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, plotWidth, plotHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{colBackground}, image.Point{}, draw.Src)

	forceArea := image.Rect(plotMargin, plotMargin, plotWidth*2/3-plotMargin/2, plotHeight-plotMargin)
	copArea := image.Rect(plotWidth*2/3+plotMargin/2, plotMargin, plotWidth-plotMargin, plotHeight-plotMargin)
	frame(img, forceArea)
	frame(img, copArea)

	label(img, forceArea.Min.X, forceArea.Min.Y-8, "total force (N) vs device time (s)")
	label(img, copArea.Min.X, copArea.Min.Y-8, "center of pressure (m)")

	if len(d.Times) > 1 {
		t0, t1 := d.Times[0], d.Times[len(d.Times)-1]
		fmax := 0.0
		for _, f := range d.Total {
			fmax = math.Max(fmax, f)
		}
		if fmax == 0 {
			fmax = 1
		}
		px := func(t float64) int {
			if t1 == t0 {
				return forceArea.Min.X
			}
			return forceArea.Min.X + int((t-t0)/(t1-t0)*float64(forceArea.Dx()-1))
		}
		py := func(f float64) int {
			return forceArea.Max.Y - 1 - int(f/fmax*float64(forceArea.Dy()-1))
		}

		if d.Gait != nil {
			y := py(d.Gait.Events.ThresholdN)
			line(img, forceArea.Min.X, y, forceArea.Max.X-1, y, colThreshold)
			for _, i := range d.Gait.Events.HS {
				if i < len(d.Times) {
					line(img, px(d.Times[i]), forceArea.Min.Y, px(d.Times[i]), forceArea.Max.Y-1, colHS)
				}
			}
			for _, i := range d.Gait.Events.TO {
				if i < len(d.Times) {
					line(img, px(d.Times[i]), forceArea.Min.Y, px(d.Times[i]), forceArea.Max.Y-1, colTO)
				}
			}
		}
		for i := 1; i < len(d.Times); i++ {
			line(img, px(d.Times[i-1]), py(d.Total[i-1]), px(d.Times[i]), py(d.Total[i]), colForce)
		}
		label(img, forceArea.Min.X+4, forceArea.Max.Y+16, fmt.Sprintf("%.2fs .. %.2fs  peak %.1f N", t0, t1, fmax))
	}

	if d.COP != nil && len(d.COP.Path) > 0 {
		minX, maxX := math.Inf(1), math.Inf(-1)
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, c := range d.COP.Path {
			if c.X == 0 && c.Y == 0 {
				continue
			}
			minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
			minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
		}
		if !math.IsInf(minX, 1) {
			span := math.Max(math.Max(maxX-minX, maxY-minY), 1e-3)
			size := float64(min(copArea.Dx(), copArea.Dy()) - 1)
			for _, c := range d.COP.Path {
				if c.X == 0 && c.Y == 0 {
					continue
				}
				x := copArea.Min.X + int((c.X-minX)/span*size)
				y := copArea.Max.Y - 1 - int((c.Y-minY)/span*size)
				img.Set(x, y, colCOP)
				img.Set(x+1, y, colCOP)
				img.Set(x, y+1, colCOP)
			}
		}
	}

	var summary string
	if d.Gait != nil {
		summary = fmt.Sprintf("%s foot: HS=%d TO=%d stride freq %.2f Hz",
			d.Gait.Foot, len(d.Gait.Events.HS), len(d.Gait.Events.TO), d.Gait.Temporal.StrideFrequency)
	}
	if d.Ball != nil {
		summary += fmt.Sprintf("   ball: %.1f rev, peak %.0f rpm", d.Ball.Summary.TotalRevolutions, d.Ball.Summary.PeakSpinRPM)
	}
	if summary != "" {
		label(img, plotMargin, plotHeight-8, summary)
	}
	if d.Source != "" {
		label(img, plotWidth-plotMargin-7*len(d.Source), 16, d.Source)
	}
	return img
}

func frame(img *image.RGBA, r image.Rectangle) {
	line(img, r.Min.X, r.Min.Y, r.Max.X-1, r.Min.Y, colAxis)
	line(img, r.Min.X, r.Max.Y-1, r.Max.X-1, r.Max.Y-1, colAxis)
	line(img, r.Min.X, r.Min.Y, r.Min.X, r.Max.Y-1, colAxis)
	line(img, r.Max.X-1, r.Min.Y, r.Max.X-1, r.Max.Y-1, colAxis)
}

// line draws with Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func label(img *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// RunPlot renders the recording at in (json or msgpack) into a PNG at out.
func RunPlot(in string, format record.Format, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := record.ReadAll(f, format)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	d := CollectPlotData(recs)
	d.Source = in
	log.Printf("plot: %d records, %d insole samples", len(recs), len(d.Times))

	o, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(o, RenderPlot(d)); err != nil {
		o.Close()
		return err
	}
	log.Printf("plot: wrote %s", out)
	return o.Close()
}
