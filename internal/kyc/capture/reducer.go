package capture

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"vericore/internal/kyc/buckets"
	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	dErrors "vericore/pkg/domain-errors"
)

// ErrStaleResult marks a model result for a call the session no longer waits
// for. Callers drop the event.
var ErrStaleResult = errors.New("stale recognition result")

const (
	titleClarification   = "Clarification Needed"
	titleDocumentExpired = "Document expired"
	titleCodeMissing     = "Security code missing"
	titleFaceFailed      = "Facial verification failed"
	titleCameraDenied    = "Camera Access Denied"

	tipExpired      = "Please capture a document that is still valid, or choose another document."
	tipLiveness     = "Ensure the document is held near your face and the code is readable."
	tipCameraDenied = "Please allow camera access in your browser settings to continue."
)

type handler func(s State, ev Event, env Env) (State, []Effect, error)

// transitions is the complete table: a (step, event) pair missing here is an
// invalid transition.
var transitions = map[Step]map[EventKind]handler{
	StepSelectDocument: {
		KindSelectDocument: selectDocument,
		KindProceed:        proceedToLiveness,
	},
	StepCaptureDocument: {
		KindCapturePhoto: captureDocumentPhoto,
		KindCameraFailed: cameraFailed,
		KindBack:         backToDocuments,
	},
	StepCheckingDocument: {
		KindDocumentChecked: documentChecked,
	},
	StepDocumentAccepted: {
		KindContinue: afterDocument,
	},
	StepDocumentRejected: {
		KindRetry: retryDocument,
		KindBack:  backToDocuments,
	},
	StepCaptureLiveness: {
		KindCapturePhoto: captureSelfie,
		KindCameraFailed: cameraFailed,
	},
	StepCheckingLiveness: {
		KindLivenessChecked: livenessChecked,
	},
	StepLivenessAccepted: {
		KindContinue: finish,
	},
	StepLivenessRejected: {
		KindRetry: retryLiveness,
	},
	StepRateLimited: {
		KindTick:               cooldownTick,
		KindResumeFromCooldown: resumeFromCooldown,
	},
	StepResult:       {},
	StepCameraDenied: {},
}

// Transition applies one event. It is pure: the same inputs always give the
// same outputs and the input State is left untouched.
func Transition(s State, ev Event, env Env) (State, []Effect, error) {
	if ev == nil {
		return s, nil, dErrors.New(dErrors.CodeBadRequest, "event is required")
	}
	if stale(s, ev) {
		return s, nil, ErrStaleResult
	}
	h, ok := transitions[s.Step][ev.Kind()]
	if !ok {
		return s, nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("%s is not allowed in step %s", ev.Kind(), s.Step))
	}
	return h(s, ev, env)
}

// Allowed lists the events the current step accepts, in a stable order.
func Allowed(step Step) []EventKind {
	kinds := make([]EventKind, 0, len(transitions[step]))
	for k := range transitions[step] {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func stale(s State, ev Event) bool {
	switch e := ev.(type) {
	case DocumentChecked:
		return s.Step != StepCheckingDocument || s.Attempt == 0 || e.Attempt != s.Attempt
	case LivenessChecked:
		return s.Step != StepCheckingLiveness || s.Attempt == 0 || e.Attempt != s.Attempt
	}
	return false
}

func selectDocument(s State, ev Event, env Env) (State, []Effect, error) {
	e := ev.(SelectDocument)
	doc, ok := env.Catalog.Lookup(e.Type)
	if !ok {
		return s, nil, dErrors.New(dErrors.CodeValidation, "unknown document type: "+e.Type)
	}
	if _, done := s.Session.Documents[doc.Name]; done {
		return s, nil, dErrors.New(dErrors.CodeConflict, doc.Name+" was already accepted")
	}
	s.Step = StepCaptureDocument
	s.Side = SideFront
	s.Document = doc.Name
	s.Front, s.Back = recognition.Image{}, nil
	s.Feedback = nil
	return s, []Effect{AcquireCamera{Facing: FacingEnvironment}}, nil
}

func proceedToLiveness(s State, _ Event, env Env) (State, []Effect, error) {
	f := buckets.Evaluate(env.Settings.RequiredBuckets, s.Session.SatisfiedBuckets)
	if !f.Met || len(s.Session.Documents) == 0 {
		return s, nil, dErrors.New(dErrors.CodeValidation,
			"required documents outstanding: "+strings.Join(f.Outstanding.Strings(), ", "))
	}
	return enterLiveness(s)
}

func enterLiveness(s State) (State, []Effect, error) {
	s.Step = StepCaptureLiveness
	s.Document = ""
	s.Side = SideFront
	s.Selfie = recognition.Image{}
	s.Feedback = nil
	return s, []Effect{AcquireCamera{Facing: FacingUser}}, nil
}

func captureDocumentPhoto(s State, ev Event, env Env) (State, []Effect, error) {
	e := ev.(CapturePhoto)
	if e.Image.IsEmpty() {
		return s, nil, dErrors.New(dErrors.CodeValidation, "image is required")
	}
	doc, ok := env.Catalog.Lookup(s.Document)
	if !ok {
		return s, nil, dErrors.New(dErrors.CodeInvariantViolation, "selected document left the catalog: "+s.Document)
	}

	if s.Side == SideFront {
		s.Front = e.Image
		if doc.NeedsBack {
			s.Side = SideBack
			return s, nil, nil
		}
	} else {
		back := e.Image
		s.Back = &back
	}

	s.Attempts++
	s.Attempt = s.Attempts
	s.Step = StepCheckingDocument
	req := recognition.ExtractionRequest{
		DocumentType:   doc.Name,
		Front:          s.Front,
		Back:           s.Back,
		ExpectedFields: doc.ExpectedFields,
		PromptHint:     doc.PromptHint,
	}
	return s, []Effect{ReleaseCamera{}, ExtractDocument{Attempt: s.Attempt, Request: req}}, nil
}

func cameraFailed(s State, ev Event, _ Env) (State, []Effect, error) {
	e := ev.(CameraFailed)
	tip := tipCameraDenied
	if e.Reason != "" {
		tip = tipCameraDenied + " (" + e.Reason + ")"
	}
	s.Step = StepCameraDenied
	s.Feedback = &recognition.Feedback{Title: titleCameraDenied, Tip: tip, Retryable: false}
	return s, []Effect{ReleaseCamera{}}, nil
}

func backToDocuments(s State, _ Event, _ Env) (State, []Effect, error) {
	var effects []Effect
	if s.Step.IsCapture() {
		effects = append(effects, ReleaseCamera{})
	}
	s.Step = StepSelectDocument
	s.Side = SideFront
	s.Document = ""
	s.Front, s.Back = recognition.Image{}, nil
	s.Feedback = nil
	return s, effects, nil
}

func documentChecked(s State, ev Event, env Env) (State, []Effect, error) {
	e := ev.(DocumentChecked)
	s.Attempt = 0

	if e.Err != nil {
		return recognitionFailed(s, e.Err, env, StepDocumentRejected)
	}
	if e.Extraction == nil {
		return recognitionFailed(s, recognition.NewProviderError(recognition.ErrorBadData, "", "empty extraction result", nil), env, StepDocumentRejected)
	}

	ext := e.Extraction
	if !ext.Succeeded() {
		tip := ext.Reason
		if tip == "" {
			tip = fmt.Sprintf("The AI was unable to reliably extract %s data. Ensure good lighting and clear text.", s.Document)
		}
		if ext.Tip != "" && ext.Tip != tip {
			tip += " " + ext.Tip
		}
		s.Step = StepDocumentRejected
		s.Feedback = &recognition.Feedback{Title: titleClarification, Tip: tip, Retryable: true}
		return s, nil, nil
	}

	doc, _ := env.Catalog.Lookup(s.Document)
	rec := models.DocumentRecord{
		Type:          s.Document,
		Number:        strings.TrimSpace(ext.Fields.DocumentNumber),
		IssueDate:     strings.TrimSpace(ext.Fields.IssueDate),
		ExpiryDate:    strings.TrimSpace(ext.Fields.ExpiryDate),
		Fields:        ext.Fields.Map(),
		Front:         s.Front.Data,
		FrontMIMEType: s.Front.MIMEType,
		CapturedAt:    env.Now,
	}
	if rec.Number == "" {
		rec.Number = models.UnreadableNumber
	}
	if s.Back != nil {
		rec.Back = s.Back.Data
	}

	var extra []string
	if rec.ExpiredAt(env.Now) {
		if env.Settings.AutoRejectExpired {
			s.Step = StepDocumentRejected
			s.Feedback = &recognition.Feedback{
				Title:     titleDocumentExpired,
				Tip:       fmt.Sprintf("This %s expired on %s. %s", s.Document, rec.ExpiryDate, tipExpired),
				Retryable: true,
			}
			return s, nil, nil
		}
		extra = append(extra, "expired document: "+s.Document)
	}

	sess := s.Session.Clone()
	profile, mismatches := env.Settings.Merge()(sess.Profile, ext.Fields.Profile(), s.Document)
	sess.ApplyDocument(rec, buckets.Accept(sess.SatisfiedBuckets, doc), profile, append(mismatches, extra...))

	s.Session = sess
	s.Step = StepDocumentAccepted
	s.Feedback = nil
	s.Front, s.Back = recognition.Image{}, nil
	return s, nil, nil
}

func afterDocument(s State, _ Event, env Env) (State, []Effect, error) {
	if buckets.Evaluate(env.Settings.RequiredBuckets, s.Session.SatisfiedBuckets).Met {
		return enterLiveness(s)
	}
	s.Step = StepSelectDocument
	s.Side = SideFront
	s.Document = ""
	return s, nil, nil
}

func retryDocument(s State, _ Event, _ Env) (State, []Effect, error) {
	s.Step = StepCaptureDocument
	s.Side = SideFront
	s.Front, s.Back = recognition.Image{}, nil
	s.Feedback = nil
	return s, []Effect{AcquireCamera{Facing: FacingEnvironment}}, nil
}

func captureSelfie(s State, ev Event, _ Env) (State, []Effect, error) {
	e := ev.(CapturePhoto)
	if e.Image.IsEmpty() {
		return s, nil, dErrors.New(dErrors.CodeValidation, "image is required")
	}
	first, ok := s.Session.FirstDocument()
	if !ok || len(first.Front) == 0 {
		return s, nil, dErrors.New(dErrors.CodeInvariantViolation, "no accepted document carries a reference face")
	}

	faceMIME := first.FrontMIMEType
	if faceMIME == "" {
		faceMIME = e.Image.MIMEType
	}

	s.Selfie = e.Image
	s.Attempts++
	s.Attempt = s.Attempts
	s.Step = StepCheckingLiveness
	req := recognition.FaceMatchRequest{
		DocumentFace: recognition.Image{MIMEType: faceMIME, Data: first.Front},
		Selfie:       e.Image,
		Challenge:    s.Session.Challenge,
	}
	return s, []Effect{ReleaseCamera{}, MatchFace{Attempt: s.Attempt, Request: req}}, nil
}

func livenessChecked(s State, ev Event, env Env) (State, []Effect, error) {
	e := ev.(LivenessChecked)
	s.Attempt = 0

	if e.Err != nil {
		return recognitionFailed(s, e.Err, env, StepLivenessRejected)
	}
	if e.Match == nil {
		return recognitionFailed(s, recognition.NewProviderError(recognition.ErrorBadData, "", "empty face match result", nil), env, StepLivenessRejected)
	}

	m := e.Match
	sess := s.Session.Clone()
	sess.Selfie = s.Selfie.Data
	sess.FaceMatchScore = m.Score
	sess.LivenessConfirmed = m.ChallengeConfirmed
	sess.Reasoning = m.Reasoning
	s.Session = sess

	confirmed := m.ChallengeConfirmed || !env.Settings.RequireLiveness
	switch decision.Gate(env.Thresholds, m.Score, confirmed, env.Settings.StrictFaceMatch) {
	case decision.VerdictPass:
		s.Step = StepLivenessAccepted
		s.Feedback = nil
		return s, nil, nil
	case decision.VerdictAutoReject:
		return finalize(s, env)
	default:
		title := titleFaceFailed
		if !confirmed {
			title = titleCodeMissing
		}
		s.Step = StepLivenessRejected
		s.Feedback = &recognition.Feedback{Title: title, Tip: tipLiveness, Retryable: true}
		return s, nil, nil
	}
}

func retryLiveness(s State, _ Event, _ Env) (State, []Effect, error) {
	return enterLiveness(s)
}

func finish(s State, _ Event, env Env) (State, []Effect, error) {
	return finalize(s, env)
}

// finalize applies the decision rules exactly once and moves to Result.
func finalize(s State, env Env) (State, []Effect, error) {
	sess := s.Session.Clone()
	for _, f := range sess.MissingFields(env.Settings.RequiredFields) {
		sess.Mismatches = append(sess.Mismatches, "missing required field: "+string(f))
	}

	out := decision.Decide(env.Thresholds, decision.Input{
		Score:             sess.FaceMatchScore,
		LivenessConfirmed: sess.LivenessConfirmed,
		Mismatches:        len(sess.Mismatches),
	})

	var reason string
	if out.Status == models.StatusRejected {
		reason = sess.Reasoning
		if reason == "" {
			reason = string(out.Reason)
		}
	}
	if err := sess.Finalize(out.Status, out.Risk, reason, env.Now); err != nil {
		return s, nil, err
	}

	s.Session = sess
	s.Outcome = &out
	s.Step = StepResult
	s.Feedback = nil
	return s, []Effect{SessionCompleted{Session: sess, Outcome: out}}, nil
}

// recognitionFailed routes a failed call: rate limiting starts the cooldown,
// anything else is a retryable rejection of the current step.
func recognitionFailed(s State, err error, env Env, rejected Step) (State, []Effect, error) {
	fb := recognition.FeedbackFor(err)
	s.Feedback = &fb
	if recognition.IsRateLimited(err) {
		cooldown := env.Cooldown
		if cooldown <= 0 {
			cooldown = DefaultCooldown
		}
		s.Step = StepRateLimited
		s.Document = ""
		s.Side = SideFront
		s.Front, s.Back = recognition.Image{}, nil
		s.CooldownUntil = env.Now.Add(cooldown)
		return s, []Effect{StartCooldown{Until: s.CooldownUntil}}, nil
	}
	s.Step = rejected
	return s, nil, nil
}

func cooldownTick(s State, _ Event, env Env) (State, []Effect, error) {
	if env.Now.Before(s.CooldownUntil) {
		return s, nil, nil
	}
	return leaveCooldown(s), nil, nil
}

// resumeFromCooldown is the customer going back to the document list
// without waiting for the countdown.
func resumeFromCooldown(s State, _ Event, _ Env) (State, []Effect, error) {
	return leaveCooldown(s), nil, nil
}

func leaveCooldown(s State) State {
	s.Step = StepSelectDocument
	s.Side = SideFront
	s.CooldownUntil = time.Time{}
	s.Feedback = nil
	return s
}
