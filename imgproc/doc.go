// Package imgproc provides the default numeric operators used by a
// scalecache.Cache: format conversion, separable Gaussian blur, integer
// decimation with pre-blur, bilinear resampling and the pointwise
// combinations used by derived entries.
//
// Every operator returns a new raster and never mutates its input.
package imgproc
