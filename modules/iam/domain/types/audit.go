package types

import "encoding/json"

const (
	ActionExportRequest = "export_request"
	ActionExportDenied  = "export_denied"

	ActionList         = "list"
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionReportWeekly = "report_weekly"
	ActionSetPrimary   = "set_primary_org"
)

type AuditLog struct {
	ID          int64           `json:"id"`
	ActorUserID int64           `json:"actorUserId"`
	Action      string          `json:"action"`
	ObjectType  *string         `json:"objectType"`
	ObjectID    *int64          `json:"objectId"`
	Detail      json.RawMessage `json:"detail"`
	CreatedAt   string          `json:"createdAt"`
}

func (a AuditLog) EntityID() int64 { return a.ID }
