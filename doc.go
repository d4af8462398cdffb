// Package scalecache memoizes derived rasters of one source image: the same
// logical image at other blur levels and resolutions, plus composites such
// as differences of blurs and directional derivatives.
//
// Components:
//   - Entry: a cached artifact plus the key used to order and approximately
//     match it (PyramidEntry, DoGEntry, DerivativeEntry).
//   - Cache: an ordered, deduplicating set of entries rooted at an
//     "original" entry, with lazy generation on miss.
//   - Ops: the numeric operators a PyramidEntry delegates pixel work to
//     (imgproc.Ops by default).
//
// Keys:
//
//	pyramid     <format> scale width     (width ordered descending)
//	dog         <format> sqrt(s1*s2) s1 width
//	derivative  <format> direction hypot(scale, spacing/2) width
//
// Scales compare equal when they differ by less than ScaleTolerance.
//
// Usage:
//
//	c, _ := scalecache.New(scalecache.Options{})
//	_, _ = c.SetOriginalRaster(img, 0.5)
//	e, err := c.Get(ctx, scalecache.NewPyramidEntry(raster.Gray8, 2.0, 0))
//	// e.Payload() is shared; do not mutate it.
package scalecache
