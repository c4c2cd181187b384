// Package ocr measures how readable a page is to Tesseract, so a shadow
// removal result can be judged by the text it recovers.
//
// This package wraps the Tesseract OCR engine via gosseract/v2. Measure reads
// one image and reports its word count and mean word confidence; Compare runs
// Measure on an original and its corrected counterpart.
//
// # Prerequisites
//
// Tesseract and its language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Options.TessdataPrefix points at a non-standard model directory.
//
// # Error Handling
//
// Functions return errors for images that cannot be encoded, unknown language
// codes and Tesseract initialization failures.
package ocr
