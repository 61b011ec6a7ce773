package types

import "time"

// Verification method tags.
const (
	VerifyMethodNone       = "none"
	VerifyMethodError      = "error"
	VerifyMethodRegion     = "region_comparison_advanced"
	VerifyMethodImage      = "image_comparison_advanced"
	VerifyMethodScreenshot = "screenshot_validity"
	VerifyMethodFullImage  = "full_image_comparison_advanced"
)

// VerificationResult is the outcome of verifying a single action by
// comparing screen state before and after it ran. Immutable after creation.
type VerificationResult struct {
	ActionID           string           `json:"action_id"`
	ActionType         string           `json:"action_type"`
	Success            bool             `json:"success"`
	Confidence         float64          `json:"confidence"`
	BeforeScreenshot   string           `json:"before_screenshot,omitempty"`
	AfterScreenshot    string           `json:"after_screenshot,omitempty"`
	Differences        []map[string]any `json:"differences,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`
	VerificationMethod string           `json:"verification_method"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
}
