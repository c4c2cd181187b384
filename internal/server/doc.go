// Package server implements the MCP (Model Context Protocol) server for
// document shadow removal.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Shadow Removal:
//   - shadow_remove: Water-filling shadow removal, optionally on a crop or
//     an unwarped page quadrilateral
//   - shadow_estimate: Save the estimated shading surface
//
// Evaluation:
//   - image_quality_metrics: PSNR and SSIM against a ground truth
//   - image_quality_batch: Score list files and write CSV or a chart
//   - shadow_ocr_compare: Tesseract readability before and after removal
//
// Solver defaults come from the config.Config passed to New. Each shadow tool
// may override rate, iteration counts, workers and diagnostics per call.
//
// # Image Caching
//
// Loaded images are cached by path for the lifetime of the process.
//
// # Error Handling
//
// Malformed lines get -32700, unknown methods -32601, bad tools/call params
// -32602. A failing tool returns -32000 with the Go error string as data.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg, cfg.Logger(os.Stderr))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
