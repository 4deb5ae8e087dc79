package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/zap"
)

const (
	ResourceAuth     = "auth"
	ResourceSecurity = "security"
	ResourceUser     = "user"

	unknownUserResource = "unknown_user"
)

// LogEntry is an event as raised by callers, before classification.
type LogEntry struct {
	UserID       uint
	Action       Action
	ResourceType string
	ResourceID   string
	Details      any
	IPAddress    string
	UserAgent    string
	Success      bool
	ErrorMessage string
}

// Meta carries request attributes shared by the Log helpers.
type Meta struct {
	IPAddress string
	UserAgent string
}

type truncatedDetails struct {
	Truncated bool   `json:"truncated"`
	Size      int    `json:"size"`
	Preview   string `json:"preview"`
}

type Service struct {
	store  Store
	queue  *Queue
	cfg    config.AuditConfig
	logger *logging.Service
	now    func() time.Time

	maintenance atomic.Bool
}

func NewService(store Store, queue *Queue, cfg *config.Config, logger *logging.Service) *Service {
	s := &Service{
		store:  store,
		queue:  queue,
		cfg:    cfg.Audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.maintenance.Store(cfg.Audit.MaintenanceMode)
	return s
}

func (s *Service) SetMaintenanceMode(enabled bool) {
	s.maintenance.Store(enabled)
	if s.logger != nil {
		s.logger.Info("audit maintenance mode changed", zap.Bool("enabled", enabled))
	}
}

func (s *Service) MaintenanceMode() bool {
	return s.maintenance.Load()
}

func (s *Service) QueueStats() QueueStats {
	return s.queue.Stats()
}

// Log classifies the event and hands it to the queue. It reports whether the
// entry was accepted; persistence itself is asynchronous and never fails the
// caller.
func (s *Service) Log(ctx context.Context, e LogEntry) bool {
	if e.UserID == 0 && !e.Action.AllowsAnonymous() {
		if s.logger != nil {
			s.logger.Debug("skipping audit entry without actor", zap.String("action", string(e.Action)))
		}
		return false
	}

	critical := e.Action.IsSecurity() || e.ResourceType == ResourceAuth || e.ResourceType == ResourceSecurity
	if !critical && e.Action.IsRoutine() {
		if s.queue.Depth() > s.cfg.HighLoadThreshold {
			return false
		}
		if s.maintenance.Load() {
			return false
		}
	}

	return s.queue.Enqueue(s.buildEntry(e), critical)
}

func (s *Service) buildEntry(e LogEntry) *Entry {
	resourceID := e.ResourceID
	if e.UserID == 0 && e.Action == ActionLoginFailed {
		resourceID = unknownUserResource
	}

	return &Entry{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   resourceID,
		Details:      s.encodeDetails(e.Details),
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		Success:      e.Success,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    s.now(),
	}
}

func (s *Service) encodeDetails(details any) string {
	var raw string
	switch v := details.(type) {
	case nil:
		return ""
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case json.RawMessage:
		raw = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to encode audit details", zap.Error(err))
			}
			return ""
		}
		raw = string(b)
	}

	if s.cfg.MaxDetailsBytes <= 0 || len(raw) <= s.cfg.MaxDetailsBytes {
		return raw
	}

	summary, err := json.Marshal(truncatedDetails{
		Truncated: true,
		Size:      len(raw),
		Preview:   prefixUTF8(raw, s.cfg.PreviewBytes),
	})
	if err != nil {
		return ""
	}
	return string(summary)
}

// prefixUTF8 returns at most n bytes of s without splitting a rune.
func prefixUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func userResourceID(id uint) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("user_%d", id)
}

func (s *Service) LogAuth(ctx context.Context, action Action, userID uint, meta Meta, success bool, errMsg string, details any) bool {
	return s.Log(ctx, LogEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: ResourceAuth,
		ResourceID:   userResourceID(userID),
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Success:      success,
		ErrorMessage: errMsg,
	})
}

func (s *Service) LogSecurity(ctx context.Context, action Action, userID uint, resourceType, resourceID string, meta Meta, details any) bool {
	if resourceType == "" {
		resourceType = ResourceSecurity
	}
	return s.Log(ctx, LogEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Success:      false,
	})
}

func (s *Service) LogDataAccess(ctx context.Context, action Action, userID uint, resourceType, resourceID string, meta Meta, success bool) bool {
	return s.Log(ctx, LogEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Success:      success,
	})
}

func (s *Service) LogUserManagement(ctx context.Context, action Action, actorID, targetID uint, meta Meta, details any) bool {
	return s.Log(ctx, LogEntry{
		UserID:       actorID,
		Action:       action,
		ResourceType: ResourceUser,
		ResourceID:   userResourceID(targetID),
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Success:      true,
	})
}

func (s *Service) GetAuditLogs(ctx context.Context, filter Filter) (*Page, error) {
	filter.normalize()

	entries, total, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &Page{
		Entries:    entries,
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.PerPage))),
	}, nil
}

var alertActions = []Action{
	ActionLoginFailed,
	ActionUnauthorizedAccess,
	ActionPermissionDenied,
	ActionSuspiciousActivity,
}

// GetSecurityAlerts returns recent failed security-relevant events, newest first.
func (s *Service) GetSecurityAlerts(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	success := false
	entries, _, err := s.store.Query(ctx, Filter{
		Actions: alertActions,
		Success: &success,
		From:    since,
		PerPage: limit,
	})
	return entries, err
}

func (s *Service) GetAuditStats(ctx context.Context, from, to time.Time) (*Stats, error) {
	return s.store.Stats(ctx, from, to)
}

func (s *Service) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.queue.Shutdown(ctx)
}
