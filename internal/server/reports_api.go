package server

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	iamservices "github.com/jacksonlee411/worklog/modules/iam/services"
	"github.com/jacksonlee411/worklog/modules/visibility"
	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/objstore"
)

type exportResponse struct {
	Key  string `json:"key"`
	From string `json:"from"`
	To   string `json:"to"`
	Rows int    `json:"rows"`
}

func (a *api) handleMissingReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	scope := visibility.ParseScope(r.URL.Query().Get("scope"))
	report, err := a.Reports.MissingReport(r.Context(), viewerID(r), scope, from, to)
	if err != nil {
		writeServiceError(w, r, a.log, err, "report_missing_failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	viewer := viewerID(r)
	scope := visibility.ParseScope(r.URL.Query().Get("scope"))
	agg, err := a.Reports.WeeklyAggregate(r.Context(), viewer, scope, from, to)
	if err != nil {
		writeServiceError(w, r, a.log, err, "report_weekly_failed")
		return
	}
	a.Audit.RecordBestEffort(r.Context(), iamservices.AuditEntry{
		ActorUserID: viewer,
		Action:      iamtypes.ActionReportWeekly,
		ObjectType:  objectWorkItem,
		Detail:      map[string]any{"scope": scope, "from": from, "to": to, "rows": len(agg.Rows)},
	})
	writeJSON(w, http.StatusOK, agg)
}

// handleWeeklyExport writes the weekly aggregate as CSV to the object
// backend. The export gate counts export_request entries, so the request is
// audited only once the file exists.
func (a *api) handleWeeklyExport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	viewer := viewerID(r)
	if err := a.Exports.Allow(r.Context(), viewer); err != nil {
		writeServiceError(w, r, a.log, err, "export_gate_failed")
		return
	}
	scope := visibility.ParseScope(r.URL.Query().Get("scope"))
	agg, err := a.Reports.WeeklyAggregate(r.Context(), viewer, scope, from, to)
	if err != nil {
		writeServiceError(w, r, a.log, err, "report_weekly_failed")
		return
	}
	body, err := weeklyCSV(agg)
	if err != nil {
		writeServiceError(w, r, a.log, err, "export_encode_failed")
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		writeServiceError(w, r, a.log, err, "export_id_failed")
		return
	}
	key := a.ExportKeyPrefix + id.String() + ".csv"
	if _, err := a.Objects.Put(r.Context(), key, body, objstore.PutOptions{IfNoneMatch: true}); err != nil {
		writeServiceError(w, r, a.log, err, "export_write_failed")
		return
	}
	a.Audit.RecordBestEffort(r.Context(), iamservices.AuditEntry{
		ActorUserID: viewer,
		Action:      iamtypes.ActionExportRequest,
		ObjectType:  objectWorkItem,
		Detail:      map[string]any{"key": key, "scope": scope, "from": from, "to": to, "rows": len(agg.Rows)},
	})
	writeJSON(w, http.StatusCreated, exportResponse{Key: key, From: from, To: to, Rows: len(agg.Rows)})
}

var weeklyCSVHeader = []string{
	"creator_id", "creator_name", "work_date", "item_count", "total_minutes",
	"done", "progress", "temp", "assist",
}

func weeklyCSV(agg types.WeeklyAggregate) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(weeklyCSVHeader); err != nil {
		return nil, err
	}
	for _, row := range agg.Rows {
		name := ""
		if row.CreatorName != nil {
			name = *row.CreatorName
		}
		if err := cw.Write([]string{
			strconv.FormatInt(row.CreatorID, 10),
			name,
			row.WorkDate,
			strconv.Itoa(row.ItemCount),
			strconv.Itoa(row.TotalMinutes),
			strconv.Itoa(row.TypeCounts.Done),
			strconv.Itoa(row.TypeCounts.Progress),
			strconv.Itoa(row.TypeCounts.Temp),
			strconv.Itoa(row.TypeCounts.Assist),
		}); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}
