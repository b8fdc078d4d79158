package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	iamservices "github.com/jacksonlee411/worklog/modules/iam/services"
	"github.com/jacksonlee411/worklog/modules/visibility"
	worklogservices "github.com/jacksonlee411/worklog/modules/worklog/services"
)

const objectWorkItem = "work_item"

type createWorkItemAPIRequest struct {
	WorkDate        string   `json:"workDate"`
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	DurationMinutes *int     `json:"durationMinutes"`
	Tags            []string `json:"tags"`
	Detail          *string  `json:"detail"`
}

// currentWeek is the ISO week containing now, e.g. "2024W23".
var currentWeek = func() string {
	y, w := time.Now().UTC().ISOWeek()
	return fmt.Sprintf("%04dW%02d", y, w)
}

// requireRange reads week or from/to from the query. With neither, the
// current ISO week is used.
func requireRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	week := strings.TrimSpace(q.Get("week"))
	from := strings.TrimSpace(q.Get("from"))
	to := strings.TrimSpace(q.Get("to"))
	if week == "" && from == "" && to == "" {
		week = currentWeek()
	}
	f, t, err := worklogservices.ParseRange(week, from, to)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_range", "invalid week or from/to")
		return "", "", false
	}
	return f, t, true
}

func (a *api) handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	viewer := viewerID(r)
	scope := visibility.ParseScope(r.URL.Query().Get("scope"))

	page, err := a.Reports.ListVisibleWorkItems(r.Context(), viewer, worklogservices.ListVisibleRequest{
		Scope:  scope,
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
		Filter: r.URL.Query().Get("filter"),
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "work_item_list_failed")
		return
	}
	a.Audit.RecordBestEffort(r.Context(), iamservices.AuditEntry{
		ActorUserID: viewer,
		Action:      iamtypes.ActionList,
		ObjectType:  objectWorkItem,
		Detail:      map[string]any{"scope": scope, "from": from, "to": to, "total": page.Total},
	})
	writeJSON(w, http.StatusOK, page)
}

func (a *api) handleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var req createWorkItemAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	viewer := viewerID(r)
	item, err := a.Items.AddWorkItem(r.Context(), viewer, worklogservices.AddWorkItemRequest{
		WorkDate:        req.WorkDate,
		Title:           req.Title,
		Type:            req.Type,
		DurationMinutes: req.DurationMinutes,
		Tags:            req.Tags,
		Detail:          req.Detail,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "work_item_create_failed")
		return
	}
	a.Audit.RecordBestEffort(r.Context(), iamservices.AuditEntry{
		ActorUserID: viewer,
		Action:      iamtypes.ActionCreate,
		ObjectType:  objectWorkItem,
		ObjectID:    item.ID,
		Detail:      map[string]any{"workDate": item.WorkDate, "type": item.Type},
	})
	writeJSON(w, http.StatusCreated, item)
}

func (a *api) handleDeleteWorkItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	viewer := viewerID(r)
	if err := a.Items.RemoveWorkItem(r.Context(), viewer, id); err != nil {
		writeServiceError(w, r, a.log, err, "work_item_delete_failed")
		return
	}
	a.Audit.RecordBestEffort(r.Context(), iamservices.AuditEntry{
		ActorUserID: viewer,
		Action:      iamtypes.ActionDelete,
		ObjectType:  objectWorkItem,
		ObjectID:    id,
	})
	w.WriteHeader(http.StatusNoContent)
}
