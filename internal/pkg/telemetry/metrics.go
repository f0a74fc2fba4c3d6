package telemetry

// Span and attribute names used for instrumentation.
const (
	SpanHeatmapBuild  = "heatmap.build"
	SpanHeatmapRender = "heatmap.render"
	SpanRecordsFetch  = "measurements.list"
	SpanSnapshot      = "heatmap.snapshot"

	AttrExtentWidth  = "raster.width"
	AttrExtentHeight = "raster.height"
	AttrMethod       = "heatmap.method"
	AttrPoints       = "heatmap.points"
	AttrCacheHit     = "cache.hit"
	AttrFormat       = "render.format"
)
