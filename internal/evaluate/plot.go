package evaluate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PlotScores renders one bar pair per row, PSNR on the top panel and SSIM on
// the bottom, and saves it to path. The extension selects the format.
func PlotScores(rows []Row, path string) error {
	if len(rows) == 0 {
		return errors.New("no scores to plot")
	}

	names := make([]string, len(rows))
	psnr := make(plotter.Values, len(rows))
	ssim := make(plotter.Values, len(rows))
	for i, r := range rows {
		names[i] = r.Filename
		psnr[i] = r.PSNR
		ssim[i] = r.SSIM
	}

	pPSNR, err := barPlot("PSNR", "dB", names, psnr)
	if err != nil {
		return err
	}
	pSSIM, err := barPlot("SSIM", "mean SSIM", names, ssim)
	if err != nil {
		return err
	}
	pSSIM.Y.Min, pSSIM.Y.Max = 0, 1

	width := vg.Length(max(6, len(rows))) * vg.Inch / 2
	img := vgimg.New(width, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter * 4}
	canvases := plot.Align([][]*plot.Plot{{pPSNR}, {pSSIM}}, tiles, dc)
	pPSNR.Draw(canvases[0][0])
	pSSIM.Draw(canvases[1][0])

	if err := savePlot(img, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

func barPlot(title, unit string, names []string, vals plotter.Values) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = unit

	bars, err := plotter.NewBarChart(vals, vg.Points(14))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s bars: %w", title, err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func savePlot(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		_, err = vgimg.JpegCanvas{Canvas: img}.WriteTo(f)
	default:
		_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(f)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
