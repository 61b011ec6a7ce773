package verify

import (
	"image"
	"image/color"
	"testing"

	"pgregory.net/rapid"
)

// An image compared with itself is always a perfect match.
func TestCompareAdvanced_SelfComparisonProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 64).Draw(t, "w")
		h := rapid.IntRange(1, 64).Draw(t, "h")

		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := range img.Pix {
			img.Pix[i] = byte(rapid.IntRange(0, 255).Draw(t, "px"))
		}
		// Alpha fixed: comparisons look at color channels only.
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 255
		}

		report := CompareAdvanced(img, img, 30)
		if report.Similarity != 1.0 || report.DiffPixels != 0 || len(report.Regions) != 0 {
			t.Fatalf("self comparison not clean: %+v", report)
		}
		if report.StructuralSimilarity < 0.99 {
			t.Fatalf("structural similarity %f for identical images", report.StructuralSimilarity)
		}
	})
}

// The clamped click window always lies inside the image and is non-empty.
func TestCompareRegion_ClampProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(2, 256).Draw(t, "w")
		h := rapid.IntRange(2, 256).Draw(t, "h")
		img := uniformImage(w, h, color.Black)

		x := rapid.IntRange(-500, 500).Draw(t, "x")
		y := rapid.IntRange(-500, 500).Draw(t, "y")
		window := image.Rect(x-50, y-50, x+50, y+50)

		report, clamped := CompareRegion(img, img, window, 30)
		if clamped.Min.X < 0 || clamped.Min.Y < 0 || clamped.Max.X > w || clamped.Max.Y > h {
			t.Fatalf("clamped window %v escapes %dx%d image", clamped, w, h)
		}
		if clamped.Dx() < 1 || clamped.Dy() < 1 {
			t.Fatalf("clamped window %v is empty", clamped)
		}
		if report.Similarity != 1.0 {
			t.Fatalf("self comparison in window %v not clean", clamped)
		}
	})
}

// Similarity and diff percentage always stay consistent and in range.
func TestCompareAdvanced_MetricConsistencyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 48).Draw(t, "w")
		h := rapid.IntRange(1, 48).Draw(t, "h")

		a := image.NewRGBA(image.Rect(0, 0, w, h))
		b := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < len(a.Pix); i += 4 {
			for c := 0; c < 3; c++ {
				a.Pix[i+c] = byte(rapid.IntRange(0, 255).Draw(t, "a"))
				b.Pix[i+c] = byte(rapid.IntRange(0, 255).Draw(t, "b"))
			}
			a.Pix[i+3] = 255
			b.Pix[i+3] = 255
		}

		report := CompareAdvanced(a, b, 30)
		total := w * h
		if report.DiffPixels < 0 || report.DiffPixels > total {
			t.Fatalf("diff pixels %d out of range for %d total", report.DiffPixels, total)
		}
		wantSim := 1.0 - float64(report.DiffPixels)/float64(total)
		if diff := report.Similarity - wantSim; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("similarity %f inconsistent with diff pixels %d", report.Similarity, report.DiffPixels)
		}
		if report.StructuralSimilarity < 0 || report.StructuralSimilarity > 1 {
			t.Fatalf("structural similarity %f out of [0,1]", report.StructuralSimilarity)
		}
	})
}
