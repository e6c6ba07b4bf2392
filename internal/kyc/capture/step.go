// Package capture is the verification wizard: a pure reducer over an explicit
// transition table, and an Orchestrator that runs the reducer's effects
// (camera, model calls, cooldown timers, record hand-off) for one session.
package capture

type Step string

const (
	StepSelectDocument   Step = "select_document"
	StepCaptureDocument  Step = "capture_document"
	StepCheckingDocument Step = "checking_document"
	StepDocumentAccepted Step = "document_accepted"
	StepDocumentRejected Step = "document_rejected"
	StepCaptureLiveness  Step = "capture_liveness"
	StepCheckingLiveness Step = "checking_liveness"
	StepLivenessAccepted Step = "liveness_accepted"
	StepLivenessRejected Step = "liveness_rejected"
	StepResult           Step = "result"
	StepCameraDenied     Step = "camera_denied"
	StepRateLimited      Step = "rate_limited"
)

// IsCapture reports whether the camera is in use in this step.
func (s Step) IsCapture() bool {
	return s == StepCaptureDocument || s == StepCaptureLiveness
}

// IsChecking reports whether a recognition call is outstanding in this step.
func (s Step) IsChecking() bool {
	return s == StepCheckingDocument || s == StepCheckingLiveness
}

// IsTerminal reports whether the wizard has nothing left to do.
func (s Step) IsTerminal() bool {
	return s == StepResult || s == StepCameraDenied
}

type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Facing tells the device which camera a capture step wants.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)
