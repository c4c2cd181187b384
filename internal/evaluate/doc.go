// Package evaluate scores batches of shadow-removal results against ground
// truth and writes the scores as CSV.
//
// A batch is described by up to three .lst files listing result images,
// ground-truth images and, optionally, region files for the ground truth.
// Rows are written as filename,psnr,ssim.
package evaluate
