package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/modules/iam/domain/ports"
	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
)

type AuditEntry struct {
	ActorUserID int64
	Action      string
	ObjectType  string
	ObjectID    int64
	Detail      any
}

type AuditService struct {
	store ports.AuditStore
	log   *zap.Logger
	now   func() time.Time
}

func NewAuditService(store ports.AuditStore, log *zap.Logger) AuditService {
	if log == nil {
		log = zap.NewNop()
	}
	return AuditService{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s AuditService) Record(ctx context.Context, e AuditEntry) (types.AuditLog, error) {
	entry := types.AuditLog{
		ActorUserID: e.ActorUserID,
		Action:      e.Action,
		CreatedAt:   s.now().UTC().Format(time.RFC3339Nano),
	}
	if e.ObjectType != "" {
		entry.ObjectType = &e.ObjectType
	}
	if e.ObjectID != 0 {
		entry.ObjectID = &e.ObjectID
	}
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return types.AuditLog{}, err
		}
		entry.Detail = b
	}
	return s.store.AppendAuditLog(ctx, entry)
}

// RecordBestEffort logs instead of failing; used where the audited action
// has already happened.
func (s AuditService) RecordBestEffort(ctx context.Context, e AuditEntry) {
	if _, err := s.Record(ctx, e); err != nil {
		s.log.Warn("audit record failed",
			zap.Int64("actor_user_id", e.ActorUserID),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}

// CountSince counts actor's entries with action created at or after since.
// Entries with unparsable timestamps are ignored.
func (s AuditService) CountSince(ctx context.Context, actorUserID int64, action string, since time.Time) (int, error) {
	logs, err := s.store.ListAuditLogs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range logs {
		if l.ActorUserID != actorUserID || (action != "" && l.Action != action) {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, l.CreatedAt)
		if err != nil {
			continue
		}
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s AuditService) ListAuditLogs(ctx context.Context) ([]types.AuditLog, error) {
	return s.store.ListAuditLogs(ctx)
}
