package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"daily_publisher/internal/config"
	"daily_publisher/internal/domain"
	"daily_publisher/internal/service/mocks"
	"daily_publisher/internal/storage/memory"
)

type ConsentTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	auth    *mocks.MockAuthorizer
	store   *memory.Store
	consent *Consent
}

func (s *ConsentTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthorizer(s.ctrl)
	s.store = memory.New()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	creds := NewCredentials(s.store, s.auth, logger, config.AgentConfig{RefreshSkew: time.Minute}, config.TimeoutConfig{})
	s.consent = NewConsent(s.store, s.auth, creds, 10*time.Minute, logger)
}

func (s *ConsentTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestConsentTestSuite(t *testing.T) {
	suite.Run(t, new(ConsentTestSuite))
}

func (s *ConsentTestSuite) begin() string {
	var state string
	s.auth.EXPECT().AuthCodeURL(gomock.Any()).DoAndReturn(func(st string) string {
		state = st
		return "https://accounts.example/auth?state=" + st
	})

	url, err := s.consent.Begin(context.Background())
	s.Require().NoError(err)
	s.True(strings.HasSuffix(url, state))
	return state
}

func (s *ConsentTestSuite) TestComplete_Success() {
	ctx := context.Background()
	state := s.begin()

	s.auth.EXPECT().Exchange(gomock.Any(), "code-1").Return(&domain.CredentialRecord{
		AccessToken:  "a",
		RefreshToken: "r",
	}, nil)

	s.Require().NoError(s.consent.Complete(ctx, "code-1", state, ""))

	// state is single use
	s.ErrorIs(s.consent.Complete(ctx, "code-1", state, ""), domain.ErrInvalidState)
}

func (s *ConsentTestSuite) TestComplete_Errors() {
	ctx := context.Background()
	state := s.begin()

	s.ErrorIs(s.consent.Complete(ctx, "", state, "access_denied"), domain.ErrConsentDenied)
	s.ErrorIs(s.consent.Complete(ctx, "", state, ""), domain.ErrMissingCode)
	s.ErrorIs(s.consent.Complete(ctx, "code", "", ""), domain.ErrInvalidState)
	s.ErrorIs(s.consent.Complete(ctx, "code", "unknown", ""), domain.ErrInvalidState)
}

func (s *ConsentTestSuite) TestComplete_ExpiredState() {
	ctx := context.Background()
	now := time.Now()
	s.store.WithClock(func() time.Time { return now })
	state := s.begin()

	now = now.Add(11 * time.Minute)

	s.ErrorIs(s.consent.Complete(ctx, "code-1", state, ""), domain.ErrInvalidState)
}
