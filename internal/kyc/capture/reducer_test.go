package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
)

type ReducerSuite struct {
	suite.Suite
	env Env
}

func TestReducerSuite(t *testing.T) {
	suite.Run(t, new(ReducerSuite))
}

func (s *ReducerSuite) SetupTest() {
	s.env = Env{
		Catalog:    models.DefaultCatalog(),
		Settings:   models.DefaultSettings(),
		Thresholds: decision.DefaultThresholds(),
		Cooldown:   60 * time.Second,
		Now:        time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func (s *ReducerSuite) newState() State {
	challenge := models.Challenge{Kind: models.ChallengeCode, Code: "4821"}
	return NewState(models.NewSession(id.NewSessionID(), challenge, "test", s.env.Now))
}

func (s *ReducerSuite) step(st State, ev Event) (State, []Effect) {
	s.T().Helper()
	next, effects, err := Transition(st, ev, s.env)
	s.Require().NoError(err, "event %s in step %s", ev.Kind(), st.Step)
	return next, effects
}

var (
	frontImage = recognition.Image{MIMEType: "image/jpeg", Data: []byte("front")}
	backImage  = recognition.Image{MIMEType: "image/jpeg", Data: []byte("back")}
	selfie     = recognition.Image{MIMEType: "image/jpeg", Data: []byte("selfie")}
)

func panExtraction() *recognition.Extraction {
	return &recognition.Extraction{Status: recognition.StatusSuccess, Fields: recognition.Fields{
		Name: "Ravi Kumar", DOB: "01/01/1990", FatherName: "Suresh Kumar", DocumentNumber: "ABCDE1234F",
	}}
}

func passportExtraction() *recognition.Extraction {
	return &recognition.Extraction{Status: recognition.StatusSuccess, Fields: recognition.Fields{
		Name: "RAVI KUMAR", DOB: "01/01/1990", Gender: "Male", Address: "12 MG Road, Pune",
		DocumentNumber: "Z1234567", ExpiryDate: "2034-05-01",
	}}
}

// captureDocument runs select → capture(s) → checking and returns the checking state.
func (s *ReducerSuite) captureDocument(st State, docType string) (State, ExtractDocument) {
	st, effects := s.step(st, SelectDocument{Type: docType})
	s.Equal(StepCaptureDocument, st.Step)
	s.Equal([]Effect{AcquireCamera{Facing: FacingEnvironment}}, effects)

	st, effects = s.step(st, CapturePhoto{Image: frontImage})
	if st.Step == StepCaptureDocument {
		s.Equal(SideBack, st.Side)
		s.Empty(effects, "camera stays held between sides")
		st, effects = s.step(st, CapturePhoto{Image: backImage})
	}
	s.Require().Equal(StepCheckingDocument, st.Step)
	s.Require().Len(effects, 2)
	s.Equal(ReleaseCamera{}, effects[0])
	call, ok := effects[1].(ExtractDocument)
	s.Require().True(ok)
	s.Equal(st.Attempt, call.Attempt)
	return st, call
}

// toLiveness captures PAN then Passport and continues into the liveness step.
func (s *ReducerSuite) toLiveness() State {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: panExtraction()})
	st, _ = s.step(st, Continue{})
	st, call = s.captureDocument(st, "Passport")
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: passportExtraction()})
	st, _ = s.step(st, Continue{})
	s.Require().Equal(StepCaptureLiveness, st.Step)
	return st
}

func (s *ReducerSuite) checkLiveness(st State, match *recognition.FaceMatch) (State, []Effect) {
	st, effects := s.step(st, CapturePhoto{Image: selfie})
	s.Require().Equal(StepCheckingLiveness, st.Step)
	call := effects[1].(MatchFace)
	return s.step(st, LivenessChecked{Attempt: call.Attempt, Match: match})
}

func (s *ReducerSuite) TestPanThenPassport() {
	st := s.newState()

	st, call := s.captureDocument(st, "PAN Card")
	s.Equal("PAN Card", call.Request.DocumentType)
	s.Nil(call.Request.Back)

	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: panExtraction()})
	s.Equal(StepDocumentAccepted, st.Step)
	s.Equal(models.BucketSet{models.BucketTax}, st.Session.SatisfiedBuckets)

	st, effects := s.step(st, Continue{})
	s.Equal(StepSelectDocument, st.Step, "address is still outstanding")
	s.Empty(effects)

	_, _, err := Transition(st, Proceed{}, s.env)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "cannot skip to liveness early")

	view := Render(st, s.env)
	s.NotContains(names(view.Available), "PAN Card")
	for _, opt := range view.Available {
		s.Equal(opt.Name != "PAN Card", opt.Helps, opt.Name)
	}

	st, call = s.captureDocument(st, "Passport")
	s.Require().NotNil(call.Request.Back)
	s.Equal(backImage, *call.Request.Back)

	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: passportExtraction()})
	s.Equal(models.BucketSet{models.BucketTax, models.BucketIdentity, models.BucketAddress}, st.Session.SatisfiedBuckets)
	s.Empty(st.Session.Mismatches, "case differences are not mismatches")
	s.Equal("Ravi Kumar", st.Session.Profile.Name, "first value wins")
	s.Equal([]string{"PAN Card", "Passport"}, st.Session.DocumentOrder)

	st, effects = s.step(st, Continue{})
	s.Equal(StepCaptureLiveness, st.Step)
	s.Equal([]Effect{AcquireCamera{Facing: FacingUser}}, effects)
}

func names(opts []DocumentOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Name)
	}
	return out
}

func (s *ReducerSuite) TestBucketsOnlyGrow() {
	st := s.newState()
	st, call := s.captureDocument(st, "Passport")
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: passportExtraction()})
	before := st.Session.SatisfiedBuckets
	st, _ = s.step(st, Continue{})

	st, call = s.captureDocument(st, "Driving License")
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Err: recognition.NewProviderError(recognition.ErrorTimeout, "m", "deadline", nil)})
	s.Equal(StepDocumentRejected, st.Step)
	s.Equal(before, st.Session.SatisfiedBuckets)

	st, _ = s.step(st, Back{})
	st, call = s.captureDocument(st, "Driving License")
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: &recognition.Extraction{Status: recognition.StatusSuccess}})
	for _, b := range before {
		s.True(st.Session.SatisfiedBuckets.Contains(b))
	}
}

func (s *ReducerSuite) TestTransitionDoesNotMutateInput() {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")
	snapshot := st.Session.Clone()

	_, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: panExtraction()})
	s.Equal(snapshot, st.Session)
	s.Equal(StepCheckingDocument, st.Step)
}

func (s *ReducerSuite) TestInvalidTransitions() {
	st := s.newState()

	_, _, err := Transition(st, Continue{}, s.env)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, _, err = Transition(st, SelectDocument{Type: "Library Card"}, s.env)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	st, _ = s.step(st, SelectDocument{Type: "pan card"})
	s.Equal("PAN Card", st.Document, "lookup is case-insensitive")
	_, _, err = Transition(st, CapturePhoto{}, s.env)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "empty image")

	_, _, err = Transition(st, nil, s.env)
	s.Error(err)
}

func (s *ReducerSuite) TestAlreadyCapturedDocumentIsNotSelectable() {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: panExtraction()})
	st, _ = s.step(st, Continue{})

	_, _, err := Transition(st, SelectDocument{Type: "PAN Card"}, s.env)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ReducerSuite) TestStaleResults() {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")

	s.Run("wrong attempt", func() {
		_, _, err := Transition(st, DocumentChecked{Attempt: call.Attempt + 1, Extraction: panExtraction()}, s.env)
		s.ErrorIs(err, ErrStaleResult)
	})

	s.Run("result after the session moved on", func() {
		done, _ := s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: panExtraction()})
		s.Zero(done.Attempt)
		_, _, err := Transition(done, DocumentChecked{Attempt: call.Attempt, Extraction: panExtraction()}, s.env)
		s.ErrorIs(err, ErrStaleResult)
	})

	s.Run("wrong kind of result", func() {
		_, _, err := Transition(st, LivenessChecked{Attempt: call.Attempt}, s.env)
		s.ErrorIs(err, ErrStaleResult)
	})

	s.Run("retry issues a fresh attempt id", func() {
		rejected, _ := s.step(st, DocumentChecked{Attempt: call.Attempt, Err: errors.New("boom")})
		retried, _ := s.step(rejected, Retry{})
		_, second := s.captureDocument(backTo(retried), "PAN Card")
		s.Greater(second.Attempt, call.Attempt)
	})
}

// backTo returns to the document list so captureDocument can select again.
func backTo(st State) State {
	st.Step = StepSelectDocument
	return st
}

func (s *ReducerSuite) TestExtractionFailureFeedback() {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")

	s.Run("model reported failure", func() {
		ext := &recognition.Extraction{Status: recognition.StatusFail, Reason: "Image is blurry.", Tip: "Hold steady."}
		next, _ := s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: ext})
		s.Equal(StepDocumentRejected, next.Step)
		s.Require().NotNil(next.Feedback)
		s.Equal("Clarification Needed", next.Feedback.Title)
		s.Equal("Image is blurry. Hold steady.", next.Feedback.Tip)
		s.True(next.Feedback.Retryable)
	})

	s.Run("provider error keeps technical detail", func() {
		next, _ := s.step(st, DocumentChecked{Attempt: call.Attempt, Err: errors.New("socket closed")})
		s.Require().NotNil(next.Feedback)
		s.Equal("Something went wrong", next.Feedback.Title)
		s.Contains(next.Feedback.Tip, "socket closed")
	})

	s.Run("back returns to the list", func() {
		next, _ := s.step(st, DocumentChecked{Attempt: call.Attempt, Err: errors.New("x")})
		next, effects := s.step(next, Back{})
		s.Equal(StepSelectDocument, next.Step)
		s.Empty(effects, "camera was already released")
	})
}

func (s *ReducerSuite) TestMissingDocumentNumber() {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")
	ext := panExtraction()
	ext.Fields.DocumentNumber = " "
	st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: ext})
	s.Equal(models.UnreadableNumber, st.Session.Documents["PAN Card"].Number)
}

func (s *ReducerSuite) TestExpiredDocument() {
	ext := passportExtraction()
	ext.Fields.ExpiryDate = "2020-01-31"

	s.Run("auto reject", func() {
		st, call := s.captureDocument(s.newState(), "Passport")
		st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: ext})
		s.Equal(StepDocumentRejected, st.Step)
		s.Equal("Document expired", st.Feedback.Title)
		s.Empty(st.Session.SatisfiedBuckets)
	})

	s.Run("accepted with a mismatch when auto reject is off", func() {
		s.env.Settings.AutoRejectExpired = false
		defer func() { s.env.Settings.AutoRejectExpired = true }()

		st, call := s.captureDocument(s.newState(), "Passport")
		st, _ = s.step(st, DocumentChecked{Attempt: call.Attempt, Extraction: ext})
		s.Equal(StepDocumentAccepted, st.Step)
		s.Contains(st.Session.Mismatches, "expired document: Passport")
	})
}

func (s *ReducerSuite) TestRateLimitCooldown() {
	st := s.newState()
	st, call := s.captureDocument(st, "PAN Card")
	limited := recognition.NewProviderError(recognition.ErrorRateLimited, "m", "quota", nil)

	st, effects := s.step(st, DocumentChecked{Attempt: call.Attempt, Err: limited})
	s.Equal(StepRateLimited, st.Step)
	s.Equal([]Effect{StartCooldown{Until: s.env.Now.Add(60 * time.Second)}}, effects)
	s.Equal(60, Render(st, s.env).CooldownSeconds)

	s.env.Now = s.env.Now.Add(20*time.Second + 500*time.Millisecond)
	s.Equal(40, Render(st, s.env).CooldownSeconds, "rounded up")

	manual, _ := s.step(st, ResumeFromCooldown{})
	s.Equal(StepSelectDocument, manual.Step, "the customer may leave before the countdown ends")
	s.True(manual.CooldownUntil.IsZero())
	s.Nil(manual.Feedback)

	early, _ := s.step(st, Tick{})
	s.Equal(StepRateLimited, early.Step, "tick before the deadline is a no-op")

	s.env.Now = s.env.Now.Add(40 * time.Second)
	resumed, _ := s.step(st, ResumeFromCooldown{})
	s.Equal(StepSelectDocument, resumed.Step)
	s.Nil(resumed.Feedback)

	ticked, _ := s.step(st, Tick{})
	s.Equal(StepSelectDocument, ticked.Step)
}

func (s *ReducerSuite) TestCameraDenied() {
	st, _ := s.step(s.newState(), SelectDocument{Type: "PAN Card"})
	st, effects := s.step(st, CameraFailed{Reason: "NotAllowedError"})
	s.Equal(StepCameraDenied, st.Step)
	s.Equal([]Effect{ReleaseCamera{}}, effects)
	s.Equal("Camera Access Denied", st.Feedback.Title)
	s.False(st.Feedback.Retryable)
	s.True(st.Step.IsTerminal())
	s.Empty(Allowed(st.Step))
}

func (s *ReducerSuite) TestLivenessOutcomes() {
	s.Run("95 approves with low risk", func() {
		st, _ := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 95, ChallengeConfirmed: true})
		s.Equal(StepLivenessAccepted, st.Step)

		st, effects := s.step(st, Continue{})
		s.Equal(StepResult, st.Step)
		s.Equal(models.StatusApproved, st.Session.Status)
		s.Equal(models.RiskLow, st.Session.Risk)
		s.Empty(st.Session.RejectionReason)
		s.Require().Len(effects, 1)
		done := effects[0].(SessionCompleted)
		s.Equal(models.StatusApproved, done.Outcome.Status)
		s.True(done.Session.IsFinalized())
	})

	s.Run("80 is flagged in lenient mode", func() {
		s.env.Settings.StrictFaceMatch = false
		defer func() { s.env.Settings.StrictFaceMatch = true }()

		st, _ := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 80, ChallengeConfirmed: true})
		s.Equal(StepLivenessAccepted, st.Step)
		st, _ = s.step(st, Continue{})
		s.Equal(models.StatusFlagged, st.Session.Status)
		s.Equal(models.RiskMedium, st.Session.Risk)
	})

	s.Run("65 is rejected with high risk in lenient mode after the gate", func() {
		s.env.Settings.StrictFaceMatch = false
		s.env.Thresholds.PassGate = 60
		defer func() {
			s.env.Settings.StrictFaceMatch = true
			s.env.Thresholds = decision.DefaultThresholds()
		}()

		st, _ := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 65, ChallengeConfirmed: true, Reasoning: "weak match"})
		st, _ = s.step(st, Continue{})
		s.Equal(models.StatusRejected, st.Session.Status)
		s.Equal(models.RiskHigh, st.Session.Risk)
		s.Equal("weak match", st.Session.RejectionReason)
	})

	s.Run("80 retries in strict mode", func() {
		st, _ := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 80, ChallengeConfirmed: true})
		s.Equal(StepLivenessRejected, st.Step)
		s.Equal("Facial verification failed", st.Feedback.Title)

		st, effects := s.step(st, Retry{})
		s.Equal(StepCaptureLiveness, st.Step)
		s.Equal([]Effect{AcquireCamera{Facing: FacingUser}}, effects)
	})

	s.Run("unconfirmed code retries", func() {
		st, _ := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 97})
		s.Equal(StepLivenessRejected, st.Step)
		s.Equal("Security code missing", st.Feedback.Title)
	})

	s.Run("below the floor finalizes at once", func() {
		st, effects := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 30, ChallengeConfirmed: true, Reasoning: "Different person."})
		s.Equal(StepResult, st.Step)
		s.Equal(models.StatusRejected, st.Session.Status)
		s.Equal("Different person.", st.Session.RejectionReason)
		s.Require().Len(effects, 1)
		s.IsType(SessionCompleted{}, effects[0])
	})

	s.Run("missing required fields flag an otherwise clean session", func() {
		s.env.Settings.RequiredFields = append(s.env.Settings.RequiredFields, models.FieldMotherName)
		defer func() { s.env.Settings = models.DefaultSettings() }()

		st, _ := s.checkLiveness(s.toLiveness(), &recognition.FaceMatch{Score: 95, ChallengeConfirmed: true})
		st, _ = s.step(st, Continue{})
		s.Equal(models.StatusFlagged, st.Session.Status)
		s.Contains(st.Session.Mismatches, "missing required field: motherName")
	})
}

func (s *ReducerSuite) TestFaceMatchUsesFirstDocument() {
	st := s.toLiveness()
	st, effects := s.step(st, CapturePhoto{Image: selfie})
	call := effects[1].(MatchFace)
	s.Equal(frontImage.Data, call.Request.DocumentFace.Data)
	s.Equal(selfie, call.Request.Selfie)
	s.Equal("4821", call.Request.Challenge.Code)
	s.Equal(frontImage.MIMEType, call.Request.DocumentFace.MIMEType)

	s.Run("reference face keeps the document's own type", func() {
		pngFront := recognition.Image{MIMEType: "image/png", Data: []byte("pngdoc")}
		st := s.newState()
		st, _ = s.step(st, SelectDocument{Type: "PAN Card"})
		st, effects := s.step(st, CapturePhoto{Image: pngFront})
		s.Require().Equal(StepCheckingDocument, st.Step)
		pan := effects[1].(ExtractDocument)
		st, _ = s.step(st, DocumentChecked{Attempt: pan.Attempt, Extraction: panExtraction()})
		st, _ = s.step(st, Continue{})
		st, passport := s.captureDocument(st, "Passport")
		st, _ = s.step(st, DocumentChecked{Attempt: passport.Attempt, Extraction: passportExtraction()})
		st, _ = s.step(st, Continue{})
		s.Require().Equal(StepCaptureLiveness, st.Step)

		_, effects = s.step(st, CapturePhoto{Image: selfie})
		match := effects[1].(MatchFace)
		s.Equal(recognition.Image{MIMEType: "image/png", Data: []byte("pngdoc")}, match.Request.DocumentFace)
		s.Equal("image/jpeg", match.Request.Selfie.MIMEType)
	})
}
