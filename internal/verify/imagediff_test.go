package verify

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func paintRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func TestCompareAdvanced_IdenticalImages(t *testing.T) {
	img := uniformImage(200, 200, color.RGBA{R: 120, G: 130, B: 140, A: 255})

	report := CompareAdvanced(img, img, 0)

	assert.Equal(t, 1.0, report.Similarity)
	assert.Equal(t, 0, report.DiffPixels)
	assert.Equal(t, 0.0, report.DiffPercentage)
	assert.Empty(t, report.Regions)
	assert.InDelta(t, 1.0, report.StructuralSimilarity, 0.01)
	assert.Equal(t, defaultThreshold, report.Threshold)
}

func TestCompareAdvanced_SingleChangedBlock(t *testing.T) {
	before := uniformImage(200, 200, color.Black)
	after := uniformImage(200, 200, color.Black)
	paintRect(after, image.Rect(50, 50, 70, 70), color.White)

	report := CompareAdvanced(before, after, 30)

	assert.Equal(t, 400, report.DiffPixels)
	assert.InDelta(t, 1.0-400.0/40000.0, report.Similarity, 1e-9)
	assert.InDelta(t, 1.0, report.DiffPercentage, 1e-9)
	assert.Equal(t, 255.0, report.MaxDiff)

	require.Len(t, report.Regions, 1)
	region := report.Regions[0]
	assert.Equal(t, 50, region.Left)
	assert.Equal(t, 50, region.Top)
	assert.Equal(t, 69, region.Right)
	assert.Equal(t, 69, region.Bottom)
	assert.Equal(t, 400, region.Area)
	assert.Equal(t, 20, region.Width)
	assert.Equal(t, 20, region.Height)
	assert.True(t, region.Contains(60, 60))
	assert.False(t, region.Contains(0, 0))
}

func TestCompareAdvanced_SmallRegionsDiscarded(t *testing.T) {
	before := uniformImage(100, 100, color.Black)
	after := uniformImage(100, 100, color.Black)
	// 9x9 = 81 pixels, below the 100 pixel minimum.
	paintRect(after, image.Rect(10, 10, 19, 19), color.White)

	report := CompareAdvanced(before, after, 30)

	assert.Equal(t, 81, report.DiffPixels)
	assert.Empty(t, report.Regions)
}

func TestCompareAdvanced_ResizesSecondImage(t *testing.T) {
	a := uniformImage(100, 100, color.White)
	b := uniformImage(50, 50, color.White)

	report := CompareAdvanced(a, b, 30)

	// Same color at different sizes compares clean after resize.
	assert.Equal(t, 1.0, report.Similarity)
	assert.Equal(t, 0, report.DiffPixels)
}

func TestCompareAdvanced_ThresholdGatesSmallDeltas(t *testing.T) {
	before := uniformImage(50, 50, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	after := uniformImage(50, 50, color.RGBA{R: 110, G: 100, B: 100, A: 255})

	// Delta of 10 stays under the default threshold of 30.
	report := CompareAdvanced(before, after, 0)
	assert.Equal(t, 0, report.DiffPixels)
	assert.Equal(t, 10.0, report.MaxDiff)

	report = CompareAdvanced(before, after, 5)
	assert.Equal(t, 50*50, report.DiffPixels)
}

func TestCompareRegion_Clamping(t *testing.T) {
	before := uniformImage(100, 100, color.Black)
	after := uniformImage(100, 100, color.Black)

	report, clamped := CompareRegion(before, after, image.Rect(-50, -50, 50, 50), 30)
	assert.Equal(t, image.Rect(0, 0, 50, 50), clamped)
	assert.Equal(t, 1.0, report.Similarity)

	_, clamped = CompareRegion(before, after, image.Rect(80, 80, 300, 300), 30)
	assert.Equal(t, image.Rect(80, 80, 100, 100), clamped)

	// A region fully off-screen degenerates to a 1x1 sliver at the border.
	_, clamped = CompareRegion(before, after, image.Rect(500, 500, 600, 600), 30)
	assert.Equal(t, image.Rect(99, 99, 100, 100), clamped)
}

func TestCompareRegion_DetectsChangeInsideWindow(t *testing.T) {
	before := uniformImage(200, 200, color.Black)
	after := uniformImage(200, 200, color.Black)
	paintRect(after, image.Rect(20, 20, 40, 40), color.White)

	report, _ := CompareRegion(before, after, image.Rect(0, 0, 100, 100), 30)
	assert.Equal(t, 400, report.DiffPixels)
	assert.InDelta(t, 1.0-400.0/10000.0, report.Similarity, 1e-9)

	// The same change is invisible from a window elsewhere.
	report, _ = CompareRegion(before, after, image.Rect(100, 100, 200, 200), 30)
	assert.Equal(t, 0, report.DiffPixels)
}

func TestStructuralSimilarity_Bounds(t *testing.T) {
	black := uniformImage(50, 50, color.Black)
	white := uniformImage(50, 50, color.White)

	s := structuralSimilarity(black, white)
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)

	s = structuralSimilarity(white, white)
	assert.InDelta(t, 1.0, s, 0.01)
}

func TestMeanBrightness(t *testing.T) {
	assert.InDelta(t, 0.0, meanBrightness(uniformImage(10, 10, color.Black)), 0.5)
	assert.InDelta(t, 255.0, meanBrightness(uniformImage(10, 10, color.White)), 0.5)

	gray := uniformImage(10, 10, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	assert.InDelta(t, 128.0, meanBrightness(gray), 0.5)
}
