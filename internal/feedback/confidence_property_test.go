package feedback

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any sequence of outcomes, confidence stays within [0,1] and moves in
// the right direction on every step.
func TestUpdateConfidence_ClampProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("confidence stays in [0,1] for any outcome sequence", prop.ForAll(
		func(outcomes []bool) bool {
			m := NewManager(nil)
			previous := m.Store().Confidence("wf")
			for _, success := range outcomes {
				confidence := m.UpdateConfidence("wf", success)
				if confidence < 0 || confidence > 1 {
					return false
				}
				if success && confidence < previous {
					return false
				}
				if !success && confidence > previous {
					return false
				}
				previous = confidence
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("success from full confidence stays at 1", prop.ForAll(
		func(n uint8) bool {
			m := NewManager(nil)
			m.Store().SetConfidence("wf", 1.0)
			for i := 0; i < int(n); i++ {
				if m.UpdateConfidence("wf", true) != 1.0 {
					return false
				}
			}
			return true
		},
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
