package verify

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	// defaultThreshold is the per-pixel difference threshold (0-255) above
	// which a pixel counts as changed.
	defaultThreshold = 30

	// minRegionSize is the minimum pixel count for a difference region.
	minRegionSize = 100

	// maxRegions caps the number of difference regions returned.
	maxRegions = 50

	// maxRegionArea caps flood-fill work per region.
	maxRegionArea = 10000
)

// Region is the bounding box of one connected changed-pixel region.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Area   int `json:"area"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether the point lies inside the region bounds.
func (r Region) Contains(x, y int) bool {
	return r.Left <= x && x <= r.Right && r.Top <= y && y <= r.Bottom
}

// DiffReport holds the metrics produced by an advanced image comparison.
type DiffReport struct {
	Similarity           float64  `json:"similarity"`
	DiffPixels           int      `json:"diff_pixels"`
	DiffPercentage       float64  `json:"diff_percentage"`
	MeanDiff             float64  `json:"mean_diff"`
	MaxDiff              float64  `json:"max_diff"`
	Regions              []Region `json:"diff_regions"`
	StructuralSimilarity float64  `json:"structural_similarity"`
	Threshold            int      `json:"threshold_used"`
}

// CompareAdvanced compares two images and returns detailed difference
// metrics: per-pixel change mask statistics, connected difference regions
// and a global structural similarity estimate. The second image is resized
// to the first's dimensions when they differ.
func CompareAdvanced(img1, img2 image.Image, threshold int) *DiffReport {
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	a := toRGBA(img1)
	b := toRGBA(img2)
	if !a.Bounds().Size().Eq(b.Bounds().Size()) {
		b = resize(b, a.Bounds().Size())
	}

	w := a.Bounds().Dx()
	h := a.Bounds().Dy()
	total := w * h
	if total == 0 {
		return &DiffReport{Similarity: 1.0, StructuralSimilarity: 1.0, Threshold: threshold}
	}

	mask := make([]bool, total)
	diffPixels := 0
	sumDiff := 0.0
	maxDiff := 0

	for y := 0; y < h; y++ {
		aRow := a.Pix[y*a.Stride : y*a.Stride+w*4]
		bRow := b.Pix[y*b.Stride : y*b.Stride+w*4]
		for x := 0; x < w; x++ {
			// Max absolute difference across the color channels.
			d := absDiff(aRow[x*4], bRow[x*4])
			if g := absDiff(aRow[x*4+1], bRow[x*4+1]); g > d {
				d = g
			}
			if bl := absDiff(aRow[x*4+2], bRow[x*4+2]); bl > d {
				d = bl
			}
			if d > maxDiff {
				maxDiff = d
			}
			if d > threshold {
				mask[y*w+x] = true
				diffPixels++
				sumDiff += float64(d)
			}
		}
	}

	meanDiff := 0.0
	if diffPixels > 0 {
		meanDiff = sumDiff / float64(diffPixels)
	}

	return &DiffReport{
		Similarity:           1.0 - float64(diffPixels)/float64(total),
		DiffPixels:           diffPixels,
		DiffPercentage:       float64(diffPixels) / float64(total) * 100,
		MeanDiff:             meanDiff,
		MaxDiff:              float64(maxDiff),
		Regions:              findRegions(mask, w, h),
		StructuralSimilarity: structuralSimilarity(a, b),
		Threshold:            threshold,
	}
}

// CompareRegion crops the given region from both images and compares the
// crops. The region is clamped to the first image's bounds; the clamped
// rectangle is returned alongside the report.
func CompareRegion(img1, img2 image.Image, region image.Rectangle, threshold int) (*DiffReport, image.Rectangle) {
	a := toRGBA(img1)
	b := toRGBA(img2)
	if !a.Bounds().Size().Eq(b.Bounds().Size()) {
		b = resize(b, a.Bounds().Size())
	}

	w := a.Bounds().Dx()
	h := a.Bounds().Dy()
	left := clampInt(region.Min.X, 0, w-1)
	top := clampInt(region.Min.Y, 0, h-1)
	right := clampInt(region.Max.X, left+1, w)
	bottom := clampInt(region.Max.Y, top+1, h)
	clamped := image.Rect(left, top, right, bottom)

	cropA := a.SubImage(clamped.Add(a.Bounds().Min)).(*image.RGBA)
	cropB := b.SubImage(clamped.Add(b.Bounds().Min)).(*image.RGBA)
	return CompareAdvanced(cropA, cropB, threshold), clamped
}

// findRegions extracts connected changed-pixel regions from the mask via
// flood fill. Regions below minRegionSize are discarded; at most maxRegions
// are returned and each fill is bounded by maxRegionArea.
func findRegions(mask []bool, w, h int) []Region {
	visited := make([]bool, len(mask))
	var regions []Region
	stack := make([][2]int, 0, 256)

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			if !mask[sy*w+sx] || visited[sy*w+sx] {
				continue
			}

			minX, minY := sx, sy
			maxX, maxY := sx, sy
			area := 0
			stack = stack[:0]
			stack = append(stack, [2]int{sx, sy})

			for len(stack) > 0 && area < maxRegionArea {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				x, y := p[0], p[1]
				if x < 0 || x >= w || y < 0 || y >= h {
					continue
				}
				idx := y*w + x
				if visited[idx] || !mask[idx] {
					continue
				}
				visited[idx] = true
				area++
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
				stack = append(stack,
					[2]int{x, y - 1}, [2]int{x, y + 1},
					[2]int{x - 1, y}, [2]int{x + 1, y})
			}

			if area >= minRegionSize {
				regions = append(regions, Region{
					Left:   minX,
					Top:    minY,
					Right:  maxX,
					Bottom: maxY,
					Area:   area,
					Width:  maxX - minX + 1,
					Height: maxY - minY + 1,
				})
				if len(regions) >= maxRegions {
					return regions
				}
			}
		}
	}
	return regions
}

// structuralSimilarity computes a whole-image structural similarity scalar
// from grayscale means, variances and covariance, normalized to [0,1]. It is
// a global approximation of SSIM, not the windowed variant.
func structuralSimilarity(a, b *image.RGBA) float64 {
	w := a.Bounds().Dx()
	h := a.Bounds().Dy()
	n := float64(w * h)
	if n == 0 {
		return 1.0
	}

	var sumA, sumB float64
	grayA := make([]float64, w*h)
	grayB := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ga := grayAt(a, x, y)
			gb := grayAt(b, x, y)
			grayA[y*w+x] = ga
			grayB[y*w+x] = gb
			sumA += ga
			sumB += gb
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for i := range grayA {
		da := grayA[i] - muA
		db := grayB[i] - muB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	varA /= n
	varB /= n
	cov /= n

	const (
		c1 = (0.01 * 255) * (0.01 * 255)
		c2 = (0.03 * 255) * (0.03 * 255)
	)
	numerator := (2*muA*muB + c1) * (2*cov + c2)
	denominator := (muA*muA + muB*muB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 0.0
	}
	ssim := numerator / denominator

	// SSIM can be negative; map to [0,1].
	return clamp01((ssim + 1) / 2)
}

// meanBrightness returns the mean grayscale value of the image.
func meanBrightness(img image.Image) float64 {
	a := toRGBA(img)
	w := a.Bounds().Dx()
	h := a.Bounds().Dy()
	if w*h == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += grayAt(a, x, y)
		}
	}
	return sum / float64(w*h)
}

func grayAt(img *image.RGBA, x, y int) float64 {
	i := y*img.Stride + x*4
	return (float64(img.Pix[i]) + float64(img.Pix[i+1]) + float64(img.Pix[i+2])) / 3
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

func resize(img *image.RGBA, size image.Point) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	xdraw.BiLinear.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return out
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
