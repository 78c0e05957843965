// Package service runs the security operations of the admin dashboard and
// records one security log entry for every mutation it performs.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/synapseiq/secadmin/internal/apikeys"
	"github.com/synapseiq/secadmin/internal/audit"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/metrics"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/ratelimit"
	"github.com/synapseiq/secadmin/internal/security"
	"github.com/synapseiq/secadmin/internal/store"
)

// ErrInvalidOTP is returned by Login when two-factor is enforced and the one-time code is missing or wrong.
var ErrInvalidOTP = fmt.Errorf("invalid one-time code: %w", errs.ErrUnauthenticated)

// Auditor appends and lists security events.
type Auditor interface {
	Record(ctx context.Context, event audit.Event) error
	List(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Limiter admits or rejects login attempts.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// Deps lists the collaborators of a Service. Limiter and Metrics may be nil.
type Deps struct {
	Users           *store.Store
	Keys            *apikeys.Manager
	Audit           Auditor
	Tokens          *security.TokenIssuer
	Limiter         Limiter
	Metrics         *metrics.Metrics
	AllowedNetworks []string
}

// Service composes the credential, key and audit layers.
type Service struct {
	users    *store.Store
	keys     *apikeys.Manager
	audit    Auditor
	tokens   *security.TokenIssuer
	limiter  Limiter
	metrics  *metrics.Metrics
	networks []*net.IPNet
	now      func() time.Time
}

// New constructs a Service.
func New(deps Deps) (*Service, error) {
	if deps.Users == nil || deps.Keys == nil || deps.Audit == nil || deps.Tokens == nil {
		return nil, errors.New("service: missing dependency")
	}
	networks, errParse := parseNetworks(deps.AllowedNetworks)
	if errParse != nil {
		return nil, errParse
	}
	return &Service{
		users:    deps.Users,
		keys:     deps.Keys,
		audit:    deps.Audit,
		tokens:   deps.Tokens,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		networks: networks,
		now:      time.Now,
	}, nil
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	User models.User
	IP   string
}

func (a Actor) userID() *uint64 {
	return audit.UserID(a.User.ID)
}

// record appends event. A failed append is logged and reported as a degraded success.
func (s *Service) record(ctx context.Context, event audit.Event) error {
	if errRecord := s.audit.Record(ctx, event); errRecord != nil {
		log.WithError(errRecord).WithField("event_type", event.Type).Error("security log write failed")
		return fmt.Errorf("%s: %w", event.Type, errs.ErrAuditDegraded)
	}
	return nil
}

func requireAdmin(actor Actor) error {
	if !actor.User.IsAdmin {
		return fmt.Errorf("admin privileges required: %w", errs.ErrForbidden)
	}
	return nil
}

func parseNetworks(raw []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, network, errCIDR := net.ParseCIDR(entry); errCIDR == nil {
			out = append(out, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("service: invalid allowed network %q", entry)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out, nil
}

func (s *Service) clientAllowed(clientIP string) bool {
	ip := net.ParseIP(strings.TrimSpace(clientIP))
	if ip == nil {
		return false
	}
	for _, network := range s.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
