package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	jwttoken "vericore/internal/jwt_token"
	kyc "vericore/internal/kyc/models"
	"vericore/internal/review/handler/mocks"
	"vericore/internal/review/models"
	id "vericore/pkg/domain"
	dErrors "vericore/pkg/domain-errors"
	authmw "vericore/pkg/platform/middleware/auth"
	"vericore/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type ReviewHandlerSuite struct {
	suite.Suite
	service  *mocks.MockService
	router   chi.Router
	token    string
	reviewer id.ReviewerID
}

func TestReviewHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReviewHandlerSuite))
}

func (s *ReviewHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jwt := jwttoken.NewJWTService("test-signing-key", "vericore", "vericore-dashboard")
	s.reviewer = id.ReviewerID(uuid.New())
	token, err := jwt.GenerateReviewerToken(s.reviewer, "Priya", time.Hour)
	s.Require().NoError(err)
	s.token = token

	s.router = chi.NewRouter()
	guard := authmw.RequireReviewer(jwttoken.NewJWTServiceAdapter(jwt), logger)
	New(s.service, logger, guard).Register(s.router)
}

func (s *ReviewHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ReviewHandlerSuite) record(status kyc.Status) *models.Record {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session := kyc.NewSession(id.NewSessionID(), kyc.Challenge{Code: "4821"}, "", now)
	session.Profile.Name = "Asha Verma"
	session.DocumentOrder = []string{"PAN Card"}
	s.Require().NoError(session.Finalize(status, kyc.RiskMedium, "", now))
	return models.NewRecord(session, now)
}

func (s *ReviewHandlerSuite) TestRequiresReviewerToken() {
	req := httptest.NewRequest(http.MethodGet, "/v1/records", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *ReviewHandlerSuite) TestList() {
	s.Run("passes filters through", func() {
		rec := s.record(kyc.StatusFlagged)
		want := models.Filter{Status: kyc.StatusFlagged, AssigneeID: &s.reviewer, Query: "asha", Limit: 10, Offset: 20}
		s.service.EXPECT().List(gomock.Any(), want).
			Return([]*models.Record{rec}, models.Stats{Total: 4, Flagged: 1, Approved: 3}, nil)

		w := s.do(http.MethodGet, "/v1/records?status=Flagged&assignee=me&q=asha&limit=10&offset=20", "")
		s.Require().Equal(http.StatusOK, w.Code)

		var resp ListResponse
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Require().Len(resp.Records, 1)
		s.Equal(rec.CaseRef.String(), resp.Records[0].CaseRef)
		s.Equal("Asha Verma", resp.Records[0].CustomerName)
		s.Equal([]string{"PAN Card"}, resp.Records[0].Documents)
		s.Equal(4, resp.Stats.Total)
		s.Equal(20, resp.Offset)
	})

	s.Run("All means no status filter", func() {
		s.service.EXPECT().List(gomock.Any(), models.Filter{}).Return([]*models.Record{}, models.Stats{}, nil)
		w := s.do(http.MethodGet, "/v1/records?status=All", "")
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("rejects an unknown status", func() {
		w := s.do(http.MethodGet, "/v1/records?status=Maybe", "")
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("rejects a negative limit", func() {
		w := s.do(http.MethodGet, "/v1/records?limit=-1", "")
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *ReviewHandlerSuite) TestGet() {
	rec := s.record(kyc.StatusApproved)
	s.service.EXPECT().Get(gomock.Any(), rec.ID).Return(rec, nil)

	w := s.do(http.MethodGet, "/v1/records/"+rec.ID.String(), "")
	s.Require().Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(rec.CaseRef.String(), body["case_ref"])
	s.Equal("Approved", body["status"])
	s.Len(body["activity"], 1)

	s.Run("malformed id", func() {
		w := s.do(http.MethodGet, "/v1/records/nope", "")
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unknown record", func() {
		missing := id.NewSessionID()
		s.service.EXPECT().Get(gomock.Any(), missing).Return(nil, dErrors.New(dErrors.CodeNotFound, "record not found"))
		w := s.do(http.MethodGet, "/v1/records/"+missing.String(), "")
		s.Equal(http.StatusNotFound, w.Code)
		s.Equal("not_found", testutil.ErrorCode(s.T(), w))
	})
}

func (s *ReviewHandlerSuite) TestAssign() {
	rec := s.record(kyc.StatusFlagged)

	s.Run("empty body claims for the caller", func() {
		s.service.EXPECT().Assign(gomock.Any(), rec.ID, models.Assignee{ID: s.reviewer, Name: "Priya"}).Return(rec, nil)
		w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/assign", `{}`)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("assigns another reviewer", func() {
		other := id.ReviewerID(uuid.New())
		s.service.EXPECT().Assign(gomock.Any(), rec.ID, models.Assignee{ID: other, Name: "Dev"}).Return(rec, nil)
		w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/assign",
			`{"reviewer_id":"`+other.String()+`","name":"Dev"}`)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("another reviewer needs a name", func() {
		w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/assign",
			`{"reviewer_id":"`+uuid.NewString()+`"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *ReviewHandlerSuite) TestComment() {
	rec := s.record(kyc.StatusFlagged)
	s.service.EXPECT().Comment(gomock.Any(), rec.ID, "address differs").Return(rec, nil)

	w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/comments", `{"body":"address differs"}`)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/comments", `{"body":"  "}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ReviewHandlerSuite) TestStatus() {
	rec := s.record(kyc.StatusFlagged)

	s.Run("override", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), rec.ID, kyc.StatusApproved).Return(rec, nil)
		w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/status", `{"status":"Approved"}`)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("only approved or rejected", func() {
		w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/status", `{"status":"Flagged"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("terminal record", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), rec.ID, kyc.StatusRejected).
			Return(nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot change status of a Approved session"))
		w := s.do(http.MethodPost, "/v1/records/"+rec.ID.String()+"/status", `{"status":"Rejected"}`)
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *ReviewHandlerSuite) TestExport() {
	s.service.EXPECT().Export(gomock.Any(), models.Filter{Status: kyc.StatusRejected}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Filter, w io.Writer) error {
			_, err := w.Write([]byte("PK"))
			return err
		})

	w := s.do(http.MethodGet, "/v1/records/export?status=Rejected", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(xlsxContentType, w.Header().Get("Content-Type"))
	s.Contains(w.Header().Get("Content-Disposition"), "verifications-")
	s.True(bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}
