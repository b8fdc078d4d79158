package services

import (
	"context"
	"time"

	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const (
	DefaultExportsPerMinute = 5

	errRateLimited = "RATE_LIMITED"
)

// ExportGate limits how many exports an actor may request per minute,
// counting export_request entries in the audit log.
type ExportGate struct {
	audit  AuditService
	max    int
	window time.Duration
	now    func() time.Time
}

func NewExportGate(audit AuditService, maxPerMinute int) ExportGate {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultExportsPerMinute
	}
	return ExportGate{audit: audit, max: maxPerMinute, window: time.Minute, now: time.Now}
}

// Allow returns a TooManyRequests error once the actor has reached the limit,
// auditing the denial.
func (g ExportGate) Allow(ctx context.Context, actorUserID int64) error {
	n, err := g.audit.CountSince(ctx, actorUserID, types.ActionExportRequest, g.now().Add(-g.window))
	if err != nil {
		return err
	}
	if n < g.max {
		return nil
	}
	g.audit.RecordBestEffort(ctx, AuditEntry{
		ActorUserID: actorUserID,
		Action:      types.ActionExportDenied,
		ObjectType:  "work_item",
		Detail:      map[string]any{"reason": "rate_limit", "maxPerMin": g.max},
	})
	return httperr.NewTooManyRequests(errRateLimited)
}
