package capture

import (
	"vericore/internal/kyc/recognition"
)

type EventKind string

const (
	KindSelectDocument     EventKind = "select_document"
	KindCapturePhoto       EventKind = "capture_photo"
	KindCameraFailed       EventKind = "camera_failed"
	KindDocumentChecked    EventKind = "document_checked"
	KindLivenessChecked    EventKind = "liveness_checked"
	KindContinue           EventKind = "continue"
	KindRetry              EventKind = "retry"
	KindProceed            EventKind = "proceed"
	KindBack               EventKind = "back"
	KindResumeFromCooldown EventKind = "resume_from_cooldown"
	KindTick               EventKind = "tick"
)

// Event is anything the reducer reacts to: customer actions, device
// failures, model results and timers.
type Event interface {
	Kind() EventKind
}

// SelectDocument picks a document type from the available list.
type SelectDocument struct {
	Type string
}

// CapturePhoto delivers one frame for the current capture step.
type CapturePhoto struct {
	Image recognition.Image
}

// CameraFailed reports that the camera could not be opened or was lost.
type CameraFailed struct {
	Reason string
}

// DocumentChecked is the result of the extraction call issued as Attempt.
type DocumentChecked struct {
	Attempt    uint64
	Extraction *recognition.Extraction
	Err        error
}

// LivenessChecked is the result of the face-match call issued as Attempt.
type LivenessChecked struct {
	Attempt uint64
	Match   *recognition.FaceMatch
	Err     error
}

// Continue leaves an accepted step.
type Continue struct{}

// Retry returns from a rejected step to the matching capture step.
type Retry struct{}

// Proceed skips to liveness once every required bucket is satisfied.
type Proceed struct{}

// Back abandons the current document and returns to the document list.
type Back struct{}

// ResumeFromCooldown is the customer's "try again" once the countdown is over.
type ResumeFromCooldown struct{}

// Tick is the cooldown timer firing.
type Tick struct{}

func (SelectDocument) Kind() EventKind     { return KindSelectDocument }
func (CapturePhoto) Kind() EventKind       { return KindCapturePhoto }
func (CameraFailed) Kind() EventKind       { return KindCameraFailed }
func (DocumentChecked) Kind() EventKind    { return KindDocumentChecked }
func (LivenessChecked) Kind() EventKind    { return KindLivenessChecked }
func (Continue) Kind() EventKind           { return KindContinue }
func (Retry) Kind() EventKind              { return KindRetry }
func (Proceed) Kind() EventKind            { return KindProceed }
func (Back) Kind() EventKind               { return KindBack }
func (ResumeFromCooldown) Kind() EventKind { return KindResumeFromCooldown }
func (Tick) Kind() EventKind               { return KindTick }
