package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vericore/internal/kyc/capture"
	captureMocks "vericore/internal/kyc/capture/mocks"
	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
	recognitionMocks "vericore/internal/kyc/recognition/mocks"
	id "vericore/pkg/domain"
	"vericore/pkg/platform/audit"
	"vericore/pkg/platform/audit/publisher"
	auditmemory "vericore/pkg/platform/audit/store/memory"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks vericore/internal/kyc/capture Device,RecordSink

type OrchestratorSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	recognizer *recognitionMocks.MockRecognizer
	device     *captureMocks.MockDevice
	records    *captureMocks.MockRecordSink
	auditStore *auditmemory.InMemoryStore
	session    *models.Session
	now        time.Time
	ctx        context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.recognizer = recognitionMocks.NewMockRecognizer(s.ctrl)
	s.device = captureMocks.NewMockDevice(s.ctrl)
	s.records = captureMocks.NewMockRecordSink(s.ctrl)
	s.auditStore = auditmemory.NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	s.session = models.NewSession(id.NewSessionID(), models.Challenge{Kind: models.ChallengeCode, Code: "1234"}, "test", s.now)
	s.ctx = context.Background()
}

func (s *OrchestratorSuite) env() capture.Env {
	return capture.Env{
		Catalog:    models.DefaultCatalog(),
		Settings:   models.DefaultSettings(),
		Thresholds: decision.DefaultThresholds(),
		Cooldown:   time.Minute,
	}
}

func (s *OrchestratorSuite) newOrchestrator(env capture.Env, opts ...capture.Option) *capture.Orchestrator {
	base := []capture.Option{
		capture.WithClock(func() time.Time { return s.now }),
		capture.WithDevice(s.device),
		capture.WithRecordSink(s.records),
		capture.WithAuditor(publisher.NewPublisher(s.auditStore)),
	}
	o := capture.NewOrchestrator(s.session, env, s.recognizer, append(base, opts...)...)
	s.T().Cleanup(o.Close)
	return o
}

func (s *OrchestratorSuite) dispatch(o *capture.Orchestrator, ev capture.Event) capture.View {
	s.T().Helper()
	v, err := o.Dispatch(s.ctx, ev)
	s.Require().NoError(err)
	return v
}

func (s *OrchestratorSuite) await(o *capture.Orchestrator) capture.View {
	s.T().Helper()
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	v, err := o.Await(ctx)
	s.Require().NoError(err)
	return v
}

func (s *OrchestratorSuite) auditActions() []string {
	events, err := s.auditStore.ListBySession(s.ctx, s.session.ID)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

var (
	img    = recognition.Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}
	selfie = recognition.Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd9}}
)

func (s *OrchestratorSuite) TestFullSessionWithAutoAdvance() {
	o := s.newOrchestrator(s.env(), capture.WithAutoAdvance(0))

	gomock.InOrder(
		s.device.EXPECT().Acquire(gomock.Any(), capture.FacingEnvironment).Return(nil),
		s.device.EXPECT().Release(),
		s.device.EXPECT().Acquire(gomock.Any(), capture.FacingEnvironment).Return(nil),
		s.device.EXPECT().Release(),
		s.device.EXPECT().Acquire(gomock.Any(), capture.FacingUser).Return(nil),
		s.device.EXPECT().Release(),
	)
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req recognition.ExtractionRequest) (*recognition.Extraction, error) {
			s.Equal("PAN Card", req.DocumentType)
			return &recognition.Extraction{Status: recognition.StatusSuccess, Fields: recognition.Fields{
				Name: "Asha Rao", DOB: "1991-07-02", FatherName: "Vikram Rao", DocumentNumber: "ABCDE1234F",
			}}, nil
		})
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req recognition.ExtractionRequest) (*recognition.Extraction, error) {
			s.Equal("Aadhaar Card", req.DocumentType)
			s.Len(req.Images(), 2)
			return &recognition.Extraction{Status: recognition.StatusSuccess, Fields: recognition.Fields{
				Name: "Asha Rao", DOB: "1991-07-02", Gender: "Female", Address: "4 Lake View, Kochi", DocumentNumber: "1234 5678 9012",
			}}, nil
		})
	s.recognizer.EXPECT().MatchFace(gomock.Any(), gomock.Any()).
		Return(&recognition.FaceMatch{Score: 95, ChallengeConfirmed: true, Reasoning: "Same person."}, nil)

	var submitted *models.Session
	s.records.EXPECT().Submit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sess *models.Session) error {
			submitted = sess
			return nil
		})

	v := s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.Equal(capture.StepCaptureDocument, v.Step)
	v = s.dispatch(o, capture.CapturePhoto{Image: img})
	s.Equal(capture.StepCheckingDocument, v.Step)

	v = s.await(o)
	s.Equal(capture.StepSelectDocument, v.Step, "accepted step advances on its own")
	s.False(v.Fulfillment.Met)
	s.Equal([]string{"PAN Card"}, v.CapturedDocs)

	s.dispatch(o, capture.SelectDocument{Type: "Aadhaar Card"})
	v = s.dispatch(o, capture.CapturePhoto{Image: img})
	s.Equal(capture.SideBack, v.Side)
	s.dispatch(o, capture.CapturePhoto{Image: img})

	v = s.await(o)
	s.Equal(capture.StepCaptureLiveness, v.Step)
	s.Equal("hold up the code 1234", v.Challenge)

	s.dispatch(o, capture.CapturePhoto{Image: selfie})
	v = s.await(o)
	s.Equal(capture.StepResult, v.Step)
	s.Require().NotNil(v.Outcome)
	s.Equal(models.StatusApproved, v.Outcome.Status)
	s.Equal(95, v.FaceMatchScore)
	s.True(v.LivenessVerified)

	s.Require().NotNil(submitted)
	s.Equal(models.StatusApproved, submitted.Status)
	s.Equal(selfie.Data, submitted.Selfie)

	acquired, released := o.CameraStats()
	s.Equal(3, acquired)
	s.Equal(acquired, released)

	s.Equal([]string{
		string(audit.EventDocumentAccepted),
		string(audit.EventDocumentAccepted),
		string(audit.EventSessionFinalized),
	}, s.auditActions())
}

func (s *OrchestratorSuite) TestManualContinue() {
	o := s.newOrchestrator(s.env())
	s.device.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil)
	s.device.EXPECT().Release()
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		Return(&recognition.Extraction{Status: recognition.StatusSuccess}, nil)

	s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.dispatch(o, capture.CapturePhoto{Image: img})
	v := s.await(o)
	s.Equal(capture.StepDocumentAccepted, v.Step)
	s.Contains(v.Allowed, capture.KindContinue)

	v = s.dispatch(o, capture.Continue{})
	s.Equal(capture.StepSelectDocument, v.Step)
}

func (s *OrchestratorSuite) TestStaleResultIsDiscarded() {
	o := s.newOrchestrator(s.env())
	s.device.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil)
	s.device.EXPECT().Release()

	release := make(chan struct{})
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, recognition.ExtractionRequest) (*recognition.Extraction, error) {
			<-release
			return &recognition.Extraction{Status: recognition.StatusSuccess}, nil
		})

	s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.dispatch(o, capture.CapturePhoto{Image: img})

	v, err := o.Dispatch(s.ctx, capture.DocumentChecked{Attempt: 99, Err: errors.New("late")})
	s.NoError(err, "stale results are dropped silently")
	s.Equal(capture.StepCheckingDocument, v.Step)

	close(release)
	v = s.await(o)
	s.Equal(capture.StepDocumentAccepted, v.Step)
}

func (s *OrchestratorSuite) TestCameraUnavailable() {
	o := s.newOrchestrator(s.env())
	s.device.EXPECT().Acquire(gomock.Any(), capture.FacingEnvironment).Return(errors.New("NotAllowedError"))

	v := s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.Equal(capture.StepCameraDenied, v.Step)
	s.Require().NotNil(v.Feedback)
	s.Contains(v.Feedback.Tip, "NotAllowedError")

	acquired, released := o.CameraStats()
	s.Zero(acquired)
	s.Zero(released)
	s.Equal([]string{string(audit.EventCameraDenied)}, s.auditActions())

	_, err := o.Dispatch(s.ctx, capture.Back{})
	s.Error(err, "camera denied is terminal")
}

func (s *OrchestratorSuite) TestCooldownTimerReturnsToDocumentList() {
	env := s.env()
	env.Cooldown = 30 * time.Millisecond
	o := capture.NewOrchestrator(s.session, env, s.recognizer,
		capture.WithDevice(s.device),
		capture.WithAuditor(publisher.NewPublisher(s.auditStore)),
	)
	defer o.Close()

	s.device.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil)
	s.device.EXPECT().Release()
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		Return(nil, recognition.NewProviderError(recognition.ErrorRateLimited, "m", "quota exhausted", nil))

	s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.dispatch(o, capture.CapturePhoto{Image: img})
	v := s.await(o)
	s.Equal(capture.StepRateLimited, v.Step)
	s.Equal("Too many requests", v.Feedback.Title)

	s.Eventually(func() bool {
		return o.Snapshot().Step == capture.StepSelectDocument
	}, time.Second, 5*time.Millisecond)
	s.Contains(s.auditActions(), string(audit.EventRateLimited))
}

func (s *OrchestratorSuite) TestManualResumeBeforeCountdownEnds() {
	env := s.env()
	env.Cooldown = 40 * time.Millisecond
	o := capture.NewOrchestrator(s.session, env, s.recognizer,
		capture.WithDevice(s.device),
		capture.WithAuditor(publisher.NewPublisher(s.auditStore)),
	)
	defer o.Close()

	s.device.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.device.EXPECT().Release().Times(2)
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		Return(nil, recognition.NewProviderError(recognition.ErrorRateLimited, "m", "quota exhausted", nil))

	s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.dispatch(o, capture.CapturePhoto{Image: img})
	s.Equal(capture.StepRateLimited, s.await(o).Step)

	v := s.dispatch(o, capture.ResumeFromCooldown{})
	s.Equal(capture.StepSelectDocument, v.Step)
	v = s.dispatch(o, capture.SelectDocument{Type: "Passport"})
	s.Equal(capture.StepCaptureDocument, v.Step)

	time.Sleep(80 * time.Millisecond)
	s.Equal(capture.StepCaptureDocument, o.Snapshot().Step, "the old countdown no longer fires")
}

func (s *OrchestratorSuite) TestSubmitFailureKeepsResult() {
	o := s.newOrchestrator(s.env(), capture.WithAutoAdvance(0))
	s.device.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.device.EXPECT().Release().AnyTimes()
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		Return(&recognition.Extraction{Status: recognition.StatusSuccess}, nil).Times(2)
	s.recognizer.EXPECT().MatchFace(gomock.Any(), gomock.Any()).
		Return(&recognition.FaceMatch{Score: 20, ChallengeConfirmed: true}, nil)
	s.records.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(errors.New("database is down"))

	for _, doc := range []string{"PAN Card", "Driving License"} {
		s.dispatch(o, capture.SelectDocument{Type: doc})
		s.dispatch(o, capture.CapturePhoto{Image: img})
		s.await(o)
	}
	s.dispatch(o, capture.CapturePhoto{Image: selfie})
	v := s.await(o)
	s.Equal(capture.StepResult, v.Step)
	s.Equal(models.StatusRejected, v.Outcome.Status)
}

func (s *OrchestratorSuite) TestCloseAbandonsOutstandingCall() {
	o := s.newOrchestrator(s.env())
	s.device.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil)
	s.device.EXPECT().Release()

	started := make(chan struct{})
	s.recognizer.EXPECT().ExtractDocument(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ recognition.ExtractionRequest) (*recognition.Extraction, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	s.dispatch(o, capture.SelectDocument{Type: "PAN Card"})
	s.dispatch(o, capture.CapturePhoto{Image: img})
	<-started

	o.Close()
	v := s.await(o)
	s.Equal(capture.StepCheckingDocument, v.Step)

	_, err := o.Dispatch(s.ctx, capture.Back{})
	s.ErrorIs(err, capture.ErrClosed)
}
