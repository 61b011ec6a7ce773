// Package verify provides action result verification by comparing screen
// state captured before and after an action.
package verify

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

// clickRegionSize is the side of the square window cropped around a click
// point for region comparison.
const clickRegionSize = 100

// Capturer provides full-screen raster captures.
type Capturer interface {
	Capture() (image.Image, error)
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func() (image.Image, error)

// Capture implements Capturer.
func (f CapturerFunc) Capture() (image.Image, error) { return f() }

// Verifier captures before/after snapshots around actions and verifies the
// action's visible effect through image comparison.
type Verifier struct {
	capturer Capturer
	dir      string

	mu        sync.Mutex
	snapshots map[string]string // snapshot key -> file path
	results   []*types.VerificationResult
}

// NewVerifier creates a Verifier persisting snapshots under dir.
func NewVerifier(capturer Capturer, dir string) (*Verifier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create verification directory: %w", err)
	}
	return &Verifier{
		capturer:  capturer,
		dir:       dir,
		snapshots: make(map[string]string),
	}, nil
}

// CaptureBefore captures and persists the pre-action screen state, returning
// an opaque snapshot key.
func (v *Verifier) CaptureBefore(action types.ActionSpec) (string, error) {
	return v.capture("before", action)
}

// CaptureAfter captures and persists the post-action screen state, returning
// an opaque snapshot key.
func (v *Verifier) CaptureAfter(action types.ActionSpec) (string, error) {
	return v.capture("after", action)
}

func (v *Verifier) capture(prefix string, action types.ActionSpec) (string, error) {
	actionID := action.ID
	if actionID == "" {
		actionID = uuid.NewString()
	}

	img, err := v.capturer.Capture()
	if err != nil {
		return "", fmt.Errorf("failed to capture %s state: %w", prefix, err)
	}

	filename := fmt.Sprintf("%s_%s_%s.png", prefix, actionID, time.Now().Format("20060102_150405.000000"))
	path := filepath.Join(v.dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to persist %s snapshot: %w", prefix, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("failed to encode %s snapshot: %w", prefix, err)
	}

	key := fmt.Sprintf("%s_%s", prefix, actionID)
	v.mu.Lock()
	v.snapshots[key] = path
	v.mu.Unlock()

	logger.Debug("Captured %s state: %s", prefix, filename)
	return key, nil
}

// VerifyAction verifies an action's effect by dispatching on its category.
// If either snapshot is missing or unreadable the result reports
// success=false with confidence 0 and method "none" — verification is never
// silently skipped once attempted.
func (v *Verifier) VerifyAction(action types.ActionSpec, beforeKey, afterKey string) *types.VerificationResult {
	actionID := action.ID
	if actionID == "" {
		actionID = uuid.NewString()
	}

	v.mu.Lock()
	beforePath := v.snapshots[beforeKey]
	afterPath := v.snapshots[afterKey]
	v.mu.Unlock()

	if beforePath == "" || afterPath == "" {
		return v.record(&types.VerificationResult{
			ActionID:           actionID,
			ActionType:         action.Type,
			Success:            false,
			Confidence:         0,
			ErrorMessage:       "missing before/after screenshots",
			Timestamp:          time.Now(),
			VerificationMethod: types.VerifyMethodNone,
		})
	}

	before, errBefore := loadImage(beforePath)
	after, errAfter := loadImage(afterPath)
	if errBefore != nil || errAfter != nil {
		err := errBefore
		if err == nil {
			err = errAfter
		}
		return v.record(&types.VerificationResult{
			ActionID:           actionID,
			ActionType:         action.Type,
			Success:            false,
			Confidence:         0,
			BeforeScreenshot:   beforePath,
			AfterScreenshot:    afterPath,
			ErrorMessage:       fmt.Sprintf("unreadable snapshot: %v", err),
			Timestamp:          time.Now(),
			VerificationMethod: types.VerifyMethodNone,
		})
	}

	var result *types.VerificationResult
	switch action.Type {
	case "click", "double_click", "right_click", "browser_click":
		result = v.verifyClick(action.ParamInt("x", 0), action.ParamInt("y", 0), before, after)
	case "type_text", "type", "browser_type", "browser_fill":
		result = v.verifyType(action.ParamString("text", ""), before, after)
	case "navigate", "browser_navigate", "window_focus":
		target := action.ParamString("target", action.ParamString("url", ""))
		result = v.verifyNavigation(target, after)
	default:
		result = v.verifyGeneric(before, after)
	}

	result.ActionID = actionID
	result.ActionType = action.Type
	result.BeforeScreenshot = beforePath
	result.AfterScreenshot = afterPath

	logger.Info("Verification complete for %s: success=%v, confidence=%.2f",
		action.Type, result.Success, result.Confidence)
	return v.record(result)
}

// verifyClick detects UI change at the click location: a fixed square window
// around the click point must show some change, but not a full scene
// replacement.
func (v *Verifier) verifyClick(x, y int, before, after image.Image) *types.VerificationResult {
	window := image.Rect(
		x-clickRegionSize/2, y-clickRegionSize/2,
		x+clickRegionSize/2, y+clickRegionSize/2)
	regionReport, clamped := CompareRegion(before, after, window, defaultThreshold)
	fullReport := CompareAdvanced(before, after, defaultThreshold)

	regionSim := regionReport.Similarity
	success := regionSim > 0.3 && regionSim < 0.95

	// Peak confidence when the region changed by about 30%.
	regionConfidence := 1.0 - (abs64(regionSim-0.7) / 0.7)
	confidence := regionConfidence*0.7 + regionReport.StructuralSimilarity*0.3

	nearby := 0
	for _, r := range fullReport.Regions {
		if r.Contains(x, y) {
			nearby++
		}
	}
	if nearby > 0 {
		confidence = clamp01(confidence * 1.2)
	}

	return &types.VerificationResult{
		ActionType:         "click",
		Success:            success,
		Confidence:         clamp01(confidence),
		Timestamp:          time.Now(),
		VerificationMethod: types.VerifyMethodRegion,
		Differences: []map[string]any{
			{
				"type":                  "click_region",
				"region":                regionOf(clamped),
				"similarity":            regionSim,
				"diff_pixels":           regionReport.DiffPixels,
				"diff_percentage":       regionReport.DiffPercentage,
				"mean_diff":             regionReport.MeanDiff,
				"structural_similarity": regionReport.StructuralSimilarity,
			},
			{
				"type":            "full_image",
				"similarity":      fullReport.Similarity,
				"diff_pixels":     fullReport.DiffPixels,
				"diff_percentage": fullReport.DiffPercentage,
				"diff_regions":    limitRegions(fullReport.Regions, 10),
			},
		},
		Metadata: map[string]any{
			"click_location": map[string]any{"x": x, "y": y},
			"region_size":    clickRegionSize,
			"nearby_changes": nearby,
		},
	}
}

// verifyType checks that typing produced a visual change proportional to the
// typed text length.
func (v *Verifier) verifyType(text string, before, after image.Image) *types.VerificationResult {
	// Lower threshold: text renders with small pixel deltas.
	report := CompareAdvanced(before, after, 20)

	// Roughly 0.1% change per character, capped at 10%.
	expectedChange := minFloat(0.1, float64(len(text))*0.001)
	actualChange := 1.0 - report.Similarity
	success := actualChange >= expectedChange*0.5

	changeRatio := 0.5
	if expectedChange > 0 {
		changeRatio = actualChange / expectedChange
	}
	changeConfidence := minFloat(1.0, changeRatio)
	regionConfidence := regionDensity(len(report.Regions))

	confidence := changeConfidence*0.5 + report.StructuralSimilarity*0.3 + regionConfidence*0.2

	preview := text
	if len(preview) > 50 {
		preview = preview[:50]
	}

	return &types.VerificationResult{
		ActionType:         "type",
		Success:            success,
		Confidence:         clamp01(confidence),
		Timestamp:          time.Now(),
		VerificationMethod: types.VerifyMethodImage,
		Differences: []map[string]any{{
			"similarity":            report.Similarity,
			"diff_pixels":           report.DiffPixels,
			"diff_percentage":       report.DiffPercentage,
			"mean_diff":             report.MeanDiff,
			"max_diff":              report.MaxDiff,
			"expected_change":       expectedChange,
			"actual_change":         actualChange,
			"structural_similarity": report.StructuralSimilarity,
			"diff_regions":          limitRegions(report.Regions, 5),
		}},
		Metadata: map[string]any{
			"text_length":        len(text),
			"text_preview":       preview,
			"num_change_regions": len(report.Regions),
		},
	}
}

// verifyNavigation is a heuristic check only: the after-frame must not be a
// blank, black or white capture.
func (v *Verifier) verifyNavigation(target string, after image.Image) *types.VerificationResult {
	brightness := meanBrightness(after)
	success := brightness > 10 && brightness < 245
	confidence := 0.3
	if success {
		confidence = 0.7
	}

	return &types.VerificationResult{
		ActionType:         "navigation",
		Success:            success,
		Confidence:         confidence,
		Timestamp:          time.Now(),
		VerificationMethod: types.VerifyMethodScreenshot,
		Metadata: map[string]any{
			"target":          target,
			"mean_brightness": brightness,
		},
	}
}

// verifyGeneric is the fallback: any action should cause at least some
// full-frame change.
func (v *Verifier) verifyGeneric(before, after image.Image) *types.VerificationResult {
	report := CompareAdvanced(before, after, defaultThreshold)

	success := report.Similarity < 0.98

	confidence := 0.5
	if success {
		changeAmount := 1.0 - report.Similarity
		changeConfidence := minFloat(1.0, changeAmount*10)
		confidence = changeConfidence*0.5 + report.StructuralSimilarity*0.3 + regionDensity(len(report.Regions))*0.2
	}

	totalArea := 0
	for _, r := range report.Regions {
		totalArea += r.Area
	}

	return &types.VerificationResult{
		ActionType:         "generic",
		Success:            success,
		Confidence:         clamp01(confidence),
		Timestamp:          time.Now(),
		VerificationMethod: types.VerifyMethodFullImage,
		Differences: []map[string]any{{
			"similarity":            report.Similarity,
			"diff_pixels":           report.DiffPixels,
			"diff_percentage":       report.DiffPercentage,
			"mean_diff":             report.MeanDiff,
			"max_diff":              report.MaxDiff,
			"structural_similarity": report.StructuralSimilarity,
			"diff_regions":          limitRegions(report.Regions, 10),
		}},
		Metadata: map[string]any{
			"num_change_regions": len(report.Regions),
			"total_change_area":  totalArea,
		},
	}
}

func (v *Verifier) record(result *types.VerificationResult) *types.VerificationResult {
	v.mu.Lock()
	v.results = append(v.results, result)
	v.mu.Unlock()
	return result
}

// Results returns a copy of all recorded verification results.
func (v *Verifier) Results() []*types.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*types.VerificationResult(nil), v.results...)
}

// SuccessRate returns the fraction of recorded results that verified
// successfully, or 0 when none exist.
func (v *Verifier) SuccessRate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.results) == 0 {
		return 0
	}
	successful := 0
	for _, r := range v.results {
		if r.Success {
			successful++
		}
	}
	return float64(successful) / float64(len(v.results))
}

// Clear drops all recorded results and snapshot references.
func (v *Verifier) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results = nil
	v.snapshots = make(map[string]string)
	logger.Info("Verification results cleared")
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func regionOf(r image.Rectangle) Region {
	return Region{
		Left:   r.Min.X,
		Top:    r.Min.Y,
		Right:  r.Max.X,
		Bottom: r.Max.Y,
		Width:  r.Dx(),
		Height: r.Dy(),
	}
}

func limitRegions(regions []Region, n int) []Region {
	if len(regions) > n {
		return regions[:n]
	}
	return regions
}

// regionDensity maps a region count to a confidence component: more
// localized change regions raise confidence, zero regions floor at 0.3.
func regionDensity(count int) float64 {
	if count == 0 {
		return 0.3
	}
	return minFloat(1.0, float64(count)*0.1)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
