package evaluate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/shadow-tools-mcp/internal/imaging"
	"github.com/rs/zerolog"
)

// ErrListMismatch is returned when the result, truth and region lists do not
// line up.
var ErrListMismatch = errors.New("file lists differ in length")

// Job pairs corrected results with their ground truth.
type Job struct {
	Results []string
	Truths  []string
	// Regions optionally holds one region file per pair. The region is cut out
	// of the ground truth only, since results are already cropped. Nil scores
	// the whole ground truth.
	Regions []string
}

// LoadJob reads the three .lst files of a batch. regionList may be empty.
func LoadJob(resultList, truthList, regionList string) (*Job, error) {
	job := &Job{}
	var err error
	if job.Results, err = ReadList(resultList); err != nil {
		return nil, err
	}
	if job.Truths, err = ReadList(truthList); err != nil {
		return nil, err
	}
	if regionList != "" {
		if job.Regions, err = ReadList(regionList); err != nil {
			return nil, err
		}
	}
	return job, job.validate()
}

func (j *Job) validate() error {
	if len(j.Results) != len(j.Truths) {
		return fmt.Errorf("%w: %d results, %d ground truths", ErrListMismatch, len(j.Results), len(j.Truths))
	}
	if j.Regions != nil && len(j.Regions) != len(j.Results) {
		return fmt.Errorf("%w: %d results, %d regions", ErrListMismatch, len(j.Results), len(j.Regions))
	}
	return nil
}

// Row is one scored pair.
type Row struct {
	Filename string  `json:"filename"`
	PSNR     float64 `json:"psnr"`
	SSIM     float64 `json:"ssim"`
}

// Evaluator scores batches of results.
type Evaluator struct {
	Cache  *imaging.ImageCache
	Logger zerolog.Logger
}

// Run scores every pair of job in order. It stops at the first pair that
// cannot be loaded or scored, or when ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context, job *Job) ([]Row, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	cache := e.Cache
	if cache == nil {
		cache = imaging.NewImageCache()
	}

	rows := make([]Row, 0, len(job.Results))
	for i := range job.Results {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		region := ""
		if job.Regions != nil {
			region = job.Regions[i]
		}
		q, err := scorePair(cache, job.Results[i], job.Truths[i], region)
		if err != nil {
			return rows, fmt.Errorf("pair %d (%s): %w", i, job.Results[i], err)
		}
		row := Row{Filename: filepath.Base(job.Results[i]), PSNR: q.PSNR, SSIM: q.SSIM}
		e.Logger.Debug().
			Str("file", row.Filename).
			Float64("psnr", row.PSNR).
			Float64("ssim", row.SSIM).
			Bool("resized", q.TruthResized).
			Msg("scored")
		rows = append(rows, row)
	}
	return rows, nil
}

func scorePair(cache *imaging.ImageCache, resultPath, truthPath, regionPath string) (*imaging.QualityResult, error) {
	result, err := cache.Load(resultPath)
	if err != nil {
		return nil, err
	}
	truth, err := cache.Load(truthPath)
	if err != nil {
		return nil, err
	}
	if regionPath != "" {
		region, err := imaging.LoadRegion(regionPath)
		if err != nil {
			return nil, err
		}
		if truth, err = region.Extract(truth); err != nil {
			return nil, err
		}
	}
	return imaging.Compare(result, truth)
}

// WriteCSV writes rows under a filename,psnr,ssim header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"filename", "psnr", "ssim"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.Filename, formatScore(r.PSNR), formatScore(r.SSIM)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes rows to a new file at path. A failed close is reported.
func SaveCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	return writeAndClose(f, rows)
}

func writeAndClose(wc io.WriteCloser, rows []Row) error {
	if err := WriteCSV(wc, rows); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close csv: %w", err)
	}
	return nil
}

// formatScore prints six significant digits.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
