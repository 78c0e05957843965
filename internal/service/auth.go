package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/synapseiq/secadmin/internal/audit"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/metrics"
	"github.com/synapseiq/secadmin/internal/ratelimit"
	"github.com/synapseiq/secadmin/internal/security"
	internalsettings "github.com/synapseiq/secadmin/internal/settings"
)

// LoginRequest carries the submitted credentials.
type LoginRequest struct {
	Username string
	Password string
	OTP      string
	ClientIP string
}

// IssuedToken is the bearer token handed out on login.
type IssuedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login authenticates the request and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (IssuedToken, error) {
	username := strings.TrimSpace(req.Username)

	if s.limiter != nil {
		result, errAllow := s.limiter.Allow(ctx, ratelimit.LoginKey(req.ClientIP, username))
		if errAllow != nil {
			return IssuedToken{}, fmt.Errorf("service: rate limit: %w", errAllow)
		}
		if !result.Allowed {
			s.metrics.ObserveLogin(metrics.LoginRateLimited)
			return IssuedToken{}, fmt.Errorf("too many login attempts, retry after %s: %w",
				result.Reset.Format("15:04:05"), errs.ErrRateLimited)
		}
	}

	if len(s.networks) > 0 {
		restricted, errSetting := s.users.SettingEnabled(ctx, internalsettings.IPRestrictionID)
		if errSetting != nil {
			return IssuedToken{}, errSetting
		}
		if restricted && !s.clientAllowed(req.ClientIP) {
			s.loginFailed(ctx, username, req.ClientIP, fmt.Sprintf("Login for %s blocked from %s", username, req.ClientIP))
			s.metrics.ObserveLogin(metrics.LoginForbidden)
			return IssuedToken{}, fmt.Errorf("client address not allowed: %w", errs.ErrForbidden)
		}
	}

	user, errAuth := s.users.Authenticate(ctx, username, req.Password)
	if errAuth != nil {
		switch {
		case errors.Is(errAuth, errs.ErrForbidden):
			s.recordFailure(ctx, audit.UserID(user.ID), req.ClientIP, fmt.Sprintf("Login attempt by inactive user %s", user.Username))
			s.metrics.ObserveLogin(metrics.LoginForbidden)
		case errors.Is(errAuth, errs.ErrUnauthenticated):
			s.loginFailed(ctx, username, req.ClientIP, fmt.Sprintf("Failed login for %s", username))
			s.metrics.ObserveLogin(metrics.LoginFailure)
		}
		return IssuedToken{}, errAuth
	}

	twoFactor, errSetting := s.users.SettingEnabled(ctx, internalsettings.TwoFactorID)
	if errSetting != nil {
		return IssuedToken{}, errSetting
	}
	switch {
	case twoFactor && user.HasTOTP():
		if !security.ValidateTOTP(user.TOTPSecret, req.OTP, s.now()) {
			s.recordFailure(ctx, audit.UserID(user.ID), req.ClientIP, fmt.Sprintf("Invalid one-time code for %s", user.Username))
			s.metrics.ObserveLogin(metrics.LoginFailure)
			return IssuedToken{}, ErrInvalidOTP
		}
	case twoFactor:
		log.WithFields(log.Fields{
			"username": user.Username,
			"ip":       req.ClientIP,
		}).Warn("login without enrolled authenticator while two-factor is enforced")
	}

	alerts, errAlerts := s.users.SettingEnabled(ctx, internalsettings.LoginAlertsID)
	if errAlerts != nil {
		return IssuedToken{}, errAlerts
	}
	if alerts {
		log.WithFields(log.Fields{
			"username": user.Username,
			"ip":       req.ClientIP,
		}).Warn("login alert")
	}

	if errRecord := s.users.RecordLogin(ctx, user, req.Password, s.now()); errRecord != nil {
		return IssuedToken{}, errRecord
	}
	token, _, errIssue := s.tokens.Issue(user.Username)
	if errIssue != nil {
		return IssuedToken{}, fmt.Errorf("service: issue token: %w", errIssue)
	}
	s.metrics.ObserveLogin(metrics.LoginSuccess)

	issued := IssuedToken{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.TTL().Seconds()),
	}
	errAudit := s.record(ctx, audit.Event{
		UserID:      audit.UserID(user.ID),
		Type:        audit.EventLogin,
		Description: fmt.Sprintf("User %s logged in", user.Username),
		IP:          req.ClientIP,
	})
	return issued, errAudit
}

// loginFailed records a failed attempt, attributing it to the named user when that account exists.
func (s *Service) loginFailed(ctx context.Context, username, clientIP, description string) {
	var userID *uint64
	if username != "" {
		if user, errFind := s.users.FindUserByUsername(ctx, username); errFind == nil {
			userID = audit.UserID(user.ID)
		}
	}
	s.recordFailure(ctx, userID, clientIP, description)
}

func (s *Service) recordFailure(ctx context.Context, userID *uint64, clientIP, description string) {
	_ = s.record(ctx, audit.Event{
		UserID:      userID,
		Type:        audit.EventLoginFailed,
		Description: description,
		IP:          clientIP,
	})
}

// ChangePassword replaces the actor's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if errChange := s.users.ChangePassword(ctx, actor.User.ID, current, next); errChange != nil {
		return errChange
	}
	return s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventPasswordChange,
		Description: "Password changed successfully",
		IP:          actor.IP,
	})
}

// BeginTOTP generates an authenticator secret and stores it as pending until confirmed.
// Replacing an enrolled authenticator requires a valid code from it.
func (s *Service) BeginTOTP(ctx context.Context, actor Actor, currentCode string) (security.TOTPEnrollment, error) {
	user, errFind := s.users.FindUserByID(ctx, actor.User.ID)
	if errFind != nil {
		return security.TOTPEnrollment{}, errFind
	}
	if user.HasTOTP() && !security.ValidateTOTP(user.TOTPSecret, currentCode, s.now()) {
		return security.TOTPEnrollment{}, fmt.Errorf("current one-time code required: %w", errs.ErrValidation)
	}
	enrollment, errGenerate := security.GenerateTOTP(user.Username)
	if errGenerate != nil {
		return security.TOTPEnrollment{}, errGenerate
	}
	if errBegin := s.users.BeginTOTP(ctx, user.ID, enrollment.Secret); errBegin != nil {
		return security.TOTPEnrollment{}, errBegin
	}
	return enrollment, nil
}

// DisableTOTP removes the actor's authenticator once code proves possession of it.
func (s *Service) DisableTOTP(ctx context.Context, actor Actor, code string) error {
	user, errFind := s.users.FindUserByID(ctx, actor.User.ID)
	if errFind != nil {
		return errFind
	}
	if !user.HasTOTP() {
		return fmt.Errorf("no authenticator enrolled: %w", errs.ErrValidation)
	}
	if !security.ValidateTOTP(user.TOTPSecret, code, s.now()) {
		return fmt.Errorf("invalid one-time code: %w", errs.ErrValidation)
	}
	if errDisable := s.users.DisableTOTP(ctx, user.ID); errDisable != nil {
		return errDisable
	}
	return s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventTOTPDisabled,
		Description: "Two-factor authenticator disabled",
		IP:          actor.IP,
	})
}

// ConfirmTOTP activates the pending authenticator once the user proves possession with code.
func (s *Service) ConfirmTOTP(ctx context.Context, actor Actor, code string) error {
	user, errFind := s.users.FindUserByID(ctx, actor.User.ID)
	if errFind != nil {
		return errFind
	}
	if user.TOTPPendingSecret == "" {
		return fmt.Errorf("no pending authenticator: %w", errs.ErrValidation)
	}
	if !security.ValidateTOTP(user.TOTPPendingSecret, code, s.now()) {
		return fmt.Errorf("invalid one-time code: %w", errs.ErrValidation)
	}
	if errConfirm := s.users.ConfirmTOTP(ctx, user.ID, user.TOTPPendingSecret); errConfirm != nil {
		return errConfirm
	}
	return s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventTOTPEnabled,
		Description: "Two-factor authenticator enabled",
		IP:          actor.IP,
	})
}

