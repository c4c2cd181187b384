package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/shadow-tools-mcp/internal/detection"
	"github.com/ironsheep/shadow-tools-mcp/internal/evaluate"
	"github.com/ironsheep/shadow-tools-mcp/internal/imaging"
	"github.com/ironsheep/shadow-tools-mcp/internal/ocr"
	"github.com/ironsheep/shadow-tools-mcp/internal/waterfill"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "shadow_remove").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Shadow Removal
	case "shadow_remove":
		return s.handleShadowRemove(args)
	case "shadow_estimate":
		return s.handleShadowEstimate(args)
	case "page_detect":
		return s.handlePageDetect(args)

	// Evaluation
	case "image_quality_metrics":
		return s.handleQualityMetrics(args)
	case "image_quality_batch":
		return s.handleQualityBatch(args)
	case "shadow_ocr_compare":
		return s.handleOCRCompare(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: "2.0", ID: id, Error: e}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Shadow Removal Handlers ===

// regionArgs selects the part of an image to work on. At most one of Region,
// Points and DetectPage may be set.
type regionArgs struct {
	Region     *imaging.Rect    `json:"region"`
	Points     []imaging.PointF `json:"points"`
	DetectPage bool             `json:"detect_page"`
}

func (a regionArgs) isSet() bool {
	return a.Region != nil || a.Points != nil || a.DetectPage
}

// region resolves the explicit region. img is only consulted for DetectPage.
func (a regionArgs) region(img image.Image) (imaging.Region, error) {
	n := 0
	for _, set := range []bool{a.Region != nil, a.Points != nil, a.DetectPage} {
		if set {
			n++
		}
	}
	switch {
	case n > 1:
		return nil, errors.New("region, points and detect_page are mutually exclusive")
	case a.DetectPage:
		page, err := detection.DetectPage(img, detection.PageOptions{})
		if err != nil {
			return nil, err
		}
		return page.Quad, nil
	case a.Region != nil:
		if a.Region.Width <= 0 || a.Region.Height <= 0 {
			return nil, fmt.Errorf("%w: size %dx%d", imaging.ErrInvalidRegion, a.Region.Width, a.Region.Height)
		}
		return *a.Region, nil
	case a.Points != nil:
		return imaging.NewQuad(a.Points)
	}
	return nil, nil
}

// solverArgs overrides the configured solver settings for one call.
type solverArgs struct {
	Rate              *float64 `json:"rate"`
	FloodIterations   *int     `json:"flood_iterations"`
	RefineIterations  *int     `json:"refine_iterations"`
	Workers           *int     `json:"workers"`
	DiagnosticsPrefix string   `json:"diagnostics_prefix"`
	Heatmap           bool     `json:"heatmap"`
}

func (s *Server) options(a solverArgs) waterfill.Options {
	opts := s.cfg.Options(s.logger)
	if a.Rate != nil {
		opts.Rate = *a.Rate
	}
	if a.FloodIterations != nil {
		opts.FloodIterations = *a.FloodIterations
	}
	if a.RefineIterations != nil {
		opts.RefineIterations = *a.RefineIterations
	}
	if a.Workers != nil {
		opts.Workers = *a.Workers
	}
	if a.DiagnosticsPrefix != "" {
		opts.Sink = waterfill.FileSink{Prefix: a.DiagnosticsPrefix, Heatmap: a.Heatmap}
	}
	return opts
}

// loadRegion loads path through the cache and cuts out the requested region.
func (s *Server) loadRegion(path string, ra regionArgs) (image.Image, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	region, err := ra.region(img)
	if err != nil {
		return nil, err
	}
	if region == nil {
		return img, nil
	}
	return region.Extract(img)
}

// outputPath returns want, or a fresh file in the temp directory.
func outputPath(want, stem string) string {
	if want != "" {
		return want
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.png", stem, uuid.NewString()))
}

type shadowRemoveArgs struct {
	Path string `json:"path"`
	regionArgs
	solverArgs
	OutputPath  string `json:"output_path"`
	ReturnImage bool   `json:"return_image"`
}

// ShadowRemoveResult describes a saved shadow-removal result.
type ShadowRemoveResult struct {
	OutputPath string `json:"output_path"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`

	// Downsampled is the grid size the flood stage ran at.
	Downsampled imaging.DimensionsResult `json:"downsampled"`

	// FlooredPixels counts shading values clamped before division.
	FlooredPixels int `json:"floored_pixels"`

	// Degenerate is set when the region was too small to estimate shading.
	Degenerate bool `json:"degenerate"`

	DurationMs int64 `json:"duration_ms"`

	// Image is the result as base64 PNG when return_image was requested.
	Image *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handleShadowRemove(args json.RawMessage) (interface{}, error) {
	var a shadowRemoveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadRegion(a.Path, a.regionArgs)
	if err != nil {
		return nil, err
	}
	res, err := waterfill.RemoveShadow(img, s.options(a.solverArgs))
	if err != nil {
		return nil, err
	}

	out := outputPath(a.OutputPath, "shadow-removed")
	if err := imaging.Save(out, res.Image); err != nil {
		return nil, err
	}
	b := res.Image.Bounds()
	result := &ShadowRemoveResult{
		OutputPath:    out,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Downsampled:   imaging.DimensionsResult{Width: res.Downsampled.X, Height: res.Downsampled.Y},
		FlooredPixels: res.FlooredPixels,
		Degenerate:    res.Degenerate,
		DurationMs:    res.Duration.Milliseconds(),
	}
	if a.ReturnImage {
		if result.Image, err = imaging.EncodePNG(res.Image); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type shadowEstimateArgs struct {
	Path string `json:"path"`
	regionArgs
	solverArgs
	OutputPath string `json:"output_path"`
}

// ShadingResult summarizes an estimated shading surface.
type ShadingResult struct {
	OutputPath string  `json:"output_path"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Min        float64 `json:"min"`
	Peak       float64 `json:"peak"`
	Mean       float64 `json:"mean"`
}

func (s *Server) handleShadowEstimate(args json.RawMessage) (interface{}, error) {
	var a shadowEstimateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadRegion(a.Path, a.regionArgs)
	if err != nil {
		return nil, err
	}
	shading, err := waterfill.EstimateShading(img, s.options(a.solverArgs))
	if err != nil {
		return nil, err
	}

	out := outputPath(a.OutputPath, "shading")
	if err := imaging.Save(out, shading.Gray()); err != nil {
		return nil, err
	}
	lo, hi := shading.Extrema()
	return &ShadingResult{
		OutputPath: out,
		Width:      shading.Width(),
		Height:     shading.Height(),
		Min:        lo,
		Peak:       hi,
		Mean:       stat.Mean(shading.Values(), nil),
	}, nil
}

func (s *Server) handlePageDetect(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.DetectPage(img, detection.PageOptions{})
}

// === Evaluation Handlers ===

type qualityArgs struct {
	ResultPath string `json:"result_path"`
	TruthPath  string `json:"truth_path"`
	// The region applies to the ground truth only.
	regionArgs
	RegionPath string `json:"region_path"`
}

func (s *Server) handleQualityMetrics(args json.RawMessage) (interface{}, error) {
	var a qualityArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	result, err := s.cache.Load(a.ResultPath)
	if err != nil {
		return nil, err
	}
	if a.RegionPath != "" {
		if a.isSet() {
			return nil, errors.New("region_path cannot be combined with region, points or detect_page")
		}
		region, err := imaging.LoadRegion(a.RegionPath)
		if err != nil {
			return nil, err
		}
		truth, err := s.cache.Load(a.TruthPath)
		if err != nil {
			return nil, err
		}
		cut, err := region.Extract(truth)
		if err != nil {
			return nil, err
		}
		return imaging.Compare(result, cut)
	}
	truth, err := s.loadRegion(a.TruthPath, a.regionArgs)
	if err != nil {
		return nil, err
	}
	return imaging.Compare(result, truth)
}

type qualityBatchArgs struct {
	ResultsList string `json:"results_list"`
	TruthsList  string `json:"truths_list"`
	RegionsList string `json:"regions_list"`
	CSVPath     string `json:"csv_path"`
	PlotPath    string `json:"plot_path"`
}

// QualityBatchResult lists the scores of a batch.
type QualityBatchResult struct {
	Rows     []evaluate.Row `json:"rows"`
	MeanPSNR float64        `json:"mean_psnr"`
	MeanSSIM float64        `json:"mean_ssim"`
	CSVPath  string         `json:"csv_path,omitempty"`
	PlotPath string         `json:"plot_path,omitempty"`
}

func (s *Server) handleQualityBatch(args json.RawMessage) (interface{}, error) {
	var a qualityBatchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	job, err := evaluate.LoadJob(a.ResultsList, a.TruthsList, a.RegionsList)
	if err != nil {
		return nil, err
	}
	ev := &evaluate.Evaluator{Cache: s.cache, Logger: s.logger}
	rows, err := ev.Run(context.Background(), job)
	if err != nil {
		return nil, err
	}

	res := &QualityBatchResult{Rows: rows}
	psnr := make([]float64, len(rows))
	ssim := make([]float64, len(rows))
	for i, r := range rows {
		psnr[i], ssim[i] = r.PSNR, r.SSIM
	}
	if len(rows) > 0 {
		res.MeanPSNR = stat.Mean(psnr, nil)
		res.MeanSSIM = stat.Mean(ssim, nil)
	}

	if a.CSVPath != "" {
		if err := evaluate.SaveCSV(a.CSVPath, rows); err != nil {
			return nil, err
		}
		res.CSVPath = a.CSVPath
	}
	if a.PlotPath != "" && len(rows) > 0 {
		if err := evaluate.PlotScores(rows, a.PlotPath); err != nil {
			return nil, err
		}
		res.PlotPath = a.PlotPath
	}
	return res, nil
}

type ocrCompareArgs struct {
	Path string `json:"path"`
	regionArgs
	solverArgs
	Language string `json:"language"`
}

// OCRCompareResult reports readability before and after shadow removal.
type OCRCompareResult struct {
	Comparison *ocr.Comparison `json:"comparison"`
	Improved   bool            `json:"improved"`
}

func (s *Server) handleOCRCompare(args json.RawMessage) (interface{}, error) {
	var a ocrCompareArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadRegion(a.Path, a.regionArgs)
	if err != nil {
		return nil, err
	}
	res, err := waterfill.RemoveShadow(img, s.options(a.solverArgs))
	if err != nil {
		return nil, err
	}

	opts := ocr.Options{Language: s.cfg.OCR.Language, TessdataPrefix: s.cfg.OCR.TessdataPrefix}
	if a.Language != "" {
		opts.Language = a.Language
	}
	cmp, err := ocr.Compare(img, res.Image, opts)
	if err != nil {
		return nil, err
	}
	return &OCRCompareResult{Comparison: cmp, Improved: cmp.Improved()}, nil
}
