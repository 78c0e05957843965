package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/synapseiq/secadmin/internal/apikeys"
	"github.com/synapseiq/secadmin/internal/audit"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	internalsettings "github.com/synapseiq/secadmin/internal/settings"
	"github.com/synapseiq/secadmin/internal/store"
)

// ListSettings returns the security settings catalog.
func (s *Service) ListSettings(ctx context.Context) ([]models.SecuritySetting, error) {
	return s.users.ListSettings(ctx)
}

// UpdateSetting toggles one security setting.
// ip-restriction cannot be enabled without configured allowed networks.
func (s *Service) UpdateSetting(ctx context.Context, actor Actor, id string, update store.SettingUpdate) (models.SecuritySetting, error) {
	if id == internalsettings.IPRestrictionID && update.Enabled != nil && *update.Enabled && len(s.networks) == 0 {
		return models.SecuritySetting{}, fmt.Errorf("no allowed networks configured for %s: %w", id, errs.ErrValidation)
	}
	setting, errUpdate := s.users.UpdateSetting(ctx, id, update)
	if errUpdate != nil {
		return models.SecuritySetting{}, errUpdate
	}
	errAudit := s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventSettingUpdate,
		Description: fmt.Sprintf("Updated security setting %s to %t", setting.ID, setting.Enabled),
		IP:          actor.IP,
	})
	return setting, errAudit
}

// CreateAPIKey issues a key for the actor. Only admins may grant the read:logs and admin scopes.
func (s *Service) CreateAPIKey(ctx context.Context, actor Actor, name string, permissions []string) (apikeys.Created, error) {
	if !actor.User.IsAdmin && apikeys.RequiresAdmin(permissions) {
		return apikeys.Created{}, fmt.Errorf("scope reserved for admins: %w", errs.ErrForbidden)
	}
	created, errCreate := s.keys.Create(ctx, actor.User.ID, name, permissions)
	if errCreate != nil {
		return apikeys.Created{}, errCreate
	}
	errAudit := s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventAPIKeyCreated,
		Description: fmt.Sprintf("Created new API key: %s", created.Name),
		IP:          actor.IP,
	})
	return created, errAudit
}

// ListAPIKeys returns the actor's keys in masked form.
func (s *Service) ListAPIKeys(ctx context.Context, actor Actor) ([]apikeys.Key, error) {
	return s.keys.List(ctx, actor.User.ID)
}

// RevokeAPIKey deletes one of the actor's keys.
func (s *Service) RevokeAPIKey(ctx context.Context, actor Actor, keyID string) error {
	revoked, errRevoke := s.keys.Revoke(ctx, actor.User.ID, keyID)
	if errRevoke != nil {
		return errRevoke
	}
	return s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventAPIKeyDeleted,
		Description: fmt.Sprintf("Deleted API key: %s", revoked.Name),
		IP:          actor.IP,
	})
}

// AuthenticateAPIKey resolves a presented key. Keys of missing or inactive owners are rejected.
func (s *Service) AuthenticateAPIKey(ctx context.Context, plaintext string) (apikeys.Key, error) {
	key, errVerify := s.keys.Verify(ctx, plaintext)
	if errVerify != nil {
		s.metrics.ObserveAPIKeyVerification(false)
		return apikeys.Key{}, errVerify
	}
	owner, errFind := s.users.FindUserByID(ctx, key.UserID)
	if errFind != nil {
		s.metrics.ObserveAPIKeyVerification(false)
		if errors.Is(errFind, errs.ErrNotFound) {
			return apikeys.Key{}, fmt.Errorf("api key owner missing: %w", errs.ErrUnauthenticated)
		}
		return apikeys.Key{}, errFind
	}
	if !owner.IsActive {
		s.metrics.ObserveAPIKeyVerification(false)
		return apikeys.Key{}, fmt.Errorf("api key owner inactive: %w", errs.ErrForbidden)
	}
	s.metrics.ObserveAPIKeyVerification(true)
	return key, nil
}

// ListLogs returns the most recent security events. Admin only.
func (s *Service) ListLogs(ctx context.Context, actor Actor, limit int) ([]audit.Entry, error) {
	if errAdmin := requireAdmin(actor); errAdmin != nil {
		return nil, errAdmin
	}
	return s.audit.List(ctx, limit)
}

// CreateUser adds an operator account. Admin only.
func (s *Service) CreateUser(ctx context.Context, actor Actor, in store.NewUser) (models.User, error) {
	if errAdmin := requireAdmin(actor); errAdmin != nil {
		return models.User{}, errAdmin
	}
	user, errCreate := s.users.CreateUser(ctx, in)
	if errCreate != nil {
		return models.User{}, errCreate
	}
	errAudit := s.record(ctx, audit.Event{
		UserID:      actor.userID(),
		Type:        audit.EventUserCreated,
		Description: fmt.Sprintf("Created user %s", user.Username),
		IP:          actor.IP,
	})
	return user, errAudit
}

// UpdateUser changes email, activity or admin flag of an account, or resets its authenticator. Admin only.
// Admins cannot deactivate or demote themselves.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, id uint64, update store.UserUpdate) (models.User, error) {
	if errAdmin := requireAdmin(actor); errAdmin != nil {
		return models.User{}, errAdmin
	}
	if id == actor.User.ID {
		if (update.IsActive != nil && !*update.IsActive) || (update.IsAdmin != nil && !*update.IsAdmin) {
			return models.User{}, fmt.Errorf("cannot revoke your own access: %w", errs.ErrValidation)
		}
	}
	user, errUpdate := s.users.UpdateUser(ctx, id, update)
	if errUpdate != nil {
		return models.User{}, errUpdate
	}

	var errAudit error
	if update.ChangesProfile() {
		errAudit = s.record(ctx, audit.Event{
			UserID:      actor.userID(),
			Type:        audit.EventUserUpdated,
			Description: fmt.Sprintf("Updated user %s", user.Username),
			IP:          actor.IP,
		})
	}
	if update.ResetsTOTP() {
		if errReset := s.record(ctx, audit.Event{
			UserID:      actor.userID(),
			Type:        audit.EventTOTPDisabled,
			Description: fmt.Sprintf("Reset two-factor authenticator of user %s", user.Username),
			IP:          actor.IP,
		}); errReset != nil {
			errAudit = errReset
		}
	}
	return user, errAudit
}

// ListLogsWithKey returns the most recent security events to an API key holding the read:logs scope.
// The key's owner must still be an active admin.
func (s *Service) ListLogsWithKey(ctx context.Context, key apikeys.Key, limit int) ([]audit.Entry, error) {
	if !apikeys.HasPermission(key.Permissions, apikeys.PermissionReadLogs) {
		return nil, fmt.Errorf("api key lacks %s: %w", apikeys.PermissionReadLogs, errs.ErrForbidden)
	}
	owner, errFind := s.users.FindUserByID(ctx, key.UserID)
	if errFind != nil {
		if errors.Is(errFind, errs.ErrNotFound) {
			return nil, fmt.Errorf("api key owner missing: %w", errs.ErrUnauthenticated)
		}
		return nil, errFind
	}
	if errAdmin := requireAdmin(Actor{User: owner}); errAdmin != nil || !owner.IsActive {
		return nil, fmt.Errorf("api key owner may not read logs: %w", errs.ErrForbidden)
	}
	return s.audit.List(ctx, limit)
}
