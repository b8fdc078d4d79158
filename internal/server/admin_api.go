package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	iamservices "github.com/jacksonlee411/worklog/modules/iam/services"
	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	orgservices "github.com/jacksonlee411/worklog/modules/orgunit/services"
	stafftypes "github.com/jacksonlee411/worklog/modules/staffing/domain/types"
	staffingservices "github.com/jacksonlee411/worklog/modules/staffing/services"
)

const (
	objectOrgUnit     = "org_unit"
	objectUser        = "user"
	objectManagerEdge = "manager_edge"
	objectRoleGrant   = "role_grant"
)

// optionalID tells an absent JSON field apart from an explicit null.
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	return true
}

func (a *api) audit(r *http.Request, action string, objectType string, objectID int64, detail any) {
	a.Audit.RecordBestEffort(r.Context(), iamservices.AuditEntry{
		ActorUserID: viewerID(r),
		Action:      action,
		ObjectType:  objectType,
		ObjectID:    objectID,
		Detail:      detail,
	})
}

// Org units.

type orgUnitAPIRequest struct {
	Name     *string    `json:"name"`
	Type     *string    `json:"type"`
	ParentID optionalID `json:"parentId"`
	Active   *bool      `json:"active"`
}

func (a *api) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	units, err := a.Orgs.ListOrgUnits(r.Context())
	if err != nil {
		writeServiceError(w, r, a.log, err, "org_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": units})
}

func (a *api) handleOrgTree(w http.ResponseWriter, r *http.Request) {
	roots, err := a.Orgs.OrgTree(r.Context())
	if err != nil {
		writeServiceError(w, r, a.log, err, "org_tree_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roots": roots})
}

func (a *api) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req orgUnitAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit, err := a.Orgs.CreateOrgUnit(r.Context(), orgservices.CreateOrgUnitRequest{
		Name:     deref(req.Name),
		Type:     deref(req.Type),
		ParentID: req.ParentID.Value,
		Active:   req.Active,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "org_create_failed")
		return
	}
	a.audit(r, iamtypes.ActionCreate, objectOrgUnit, unit.ID, unit)
	writeJSON(w, http.StatusCreated, unit)
}

func (a *api) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req orgUnitAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit, err := a.Orgs.UpdateOrgUnit(r.Context(), id, orgtypes.OrgUnitPatch{
		Name:      req.Name,
		Type:      req.Type,
		Active:    req.Active,
		SetParent: req.ParentID.Set,
		ParentID:  req.ParentID.Value,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "org_update_failed")
		return
	}
	a.audit(r, iamtypes.ActionUpdate, objectOrgUnit, unit.ID, unit)
	writeJSON(w, http.StatusOK, unit)
}

// Users.

type userAPIRequest struct {
	Name       *string `json:"name"`
	EmployeeNo *string `json:"employeeNo"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	JobTitle   *string `json:"jobTitle"`
	Grade      *string `json:"grade"`
	Active     *bool   `json:"active"`
}

type primaryOrgAPIRequest struct {
	OrgID         int64  `json:"orgId"`
	EffectiveDate string `json:"effectiveDate"`
}

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	page, err := a.Users.ListUsers(r.Context(), r.URL.Query().Get("keyword"), limit, offset)
	if err != nil {
		writeServiceError(w, r, a.log, err, "user_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *api) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := a.Users.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, a.log, err, "user_get_failed")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *api) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := a.Users.CreateUser(r.Context(), iamservices.CreateUserRequest{
		Name:       deref(req.Name),
		EmployeeNo: deref(req.EmployeeNo),
		Email:      deref(req.Email),
		Phone:      deref(req.Phone),
		JobTitle:   deref(req.JobTitle),
		Grade:      deref(req.Grade),
		Active:     req.Active,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "user_create_failed")
		return
	}
	a.audit(r, iamtypes.ActionCreate, objectUser, u.ID, u)
	writeJSON(w, http.StatusCreated, u)
}

func (a *api) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req userAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := a.Users.UpdateUser(r.Context(), id, iamtypes.UserPatch{
		Name:       req.Name,
		EmployeeNo: req.EmployeeNo,
		Email:      req.Email,
		Phone:      req.Phone,
		JobTitle:   req.JobTitle,
		Grade:      req.Grade,
		Active:     req.Active,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "user_update_failed")
		return
	}
	a.audit(r, iamtypes.ActionUpdate, objectUser, u.ID, u)
	writeJSON(w, http.StatusOK, u)
}

func (a *api) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := a.Orgs.ListMemberships(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, a.log, err, "membership_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *api) handleSetPrimaryOrg(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req primaryOrgAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := a.Orgs.SetPrimaryOrg(r.Context(), id, req.OrgID, req.EffectiveDate)
	if err != nil {
		writeServiceError(w, r, a.log, err, "user_set_primary_org_failed")
		return
	}
	a.audit(r, iamtypes.ActionSetPrimary, objectUser, id, m)
	writeJSON(w, http.StatusOK, m)
}

// Manager edges.

type managerEdgeAPIRequest struct {
	ManagerID     int64   `json:"managerId"`
	SubordinateID int64   `json:"subordinateId"`
	StartDate     string  `json:"startDate"`
	EndDate       *string `json:"endDate"`
	Priority      *int    `json:"priority"`
}

func (a *api) handleListManagerEdges(w http.ResponseWriter, r *http.Request) {
	managerID, ok := queryID(w, r, "managerId")
	if !ok {
		return
	}
	subordinateID, ok := queryID(w, r, "subordinateId")
	if !ok {
		return
	}
	edges, err := a.Edges.ListManagerEdges(r.Context(), stafftypes.ManagerEdgeFilter{
		ManagerID:     managerID,
		SubordinateID: subordinateID,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "manager_edge_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": edges})
}

func (a *api) handleCreateManagerEdge(w http.ResponseWriter, r *http.Request) {
	var req managerEdgeAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	edge, err := a.Edges.AddManagerEdge(r.Context(), staffingservices.AddManagerEdgeRequest{
		ManagerID:     req.ManagerID,
		SubordinateID: req.SubordinateID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Priority:      req.Priority,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "manager_edge_create_failed")
		return
	}
	a.audit(r, iamtypes.ActionCreate, objectManagerEdge, edge.SubordinateID, edge)
	writeJSON(w, http.StatusCreated, edge)
}

func (a *api) handleDeleteManagerEdge(w http.ResponseWriter, r *http.Request) {
	managerID, ok := queryID(w, r, "managerId")
	if !ok {
		return
	}
	subordinateID, ok := queryID(w, r, "subordinateId")
	if !ok {
		return
	}
	startDate := strings.TrimSpace(r.URL.Query().Get("startDate"))
	if managerID == 0 || subordinateID == 0 || startDate == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "managerId/subordinateId/startDate required")
		return
	}
	if err := a.Edges.DeleteManagerEdge(r.Context(), managerID, subordinateID, startDate); err != nil {
		writeServiceError(w, r, a.log, err, "manager_edge_delete_failed")
		return
	}
	a.audit(r, iamtypes.ActionDelete, objectManagerEdge, subordinateID, map[string]any{
		"managerId":     managerID,
		"subordinateId": subordinateID,
		"startDate":     startDate,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Role grants and roles.

type roleGrantAPIRequest struct {
	GranteeUserID int64   `json:"granteeUserId"`
	RoleID        *int64  `json:"roleId"`
	RoleCode      string  `json:"roleCode"`
	DomainOrgID   *int64  `json:"domainOrgId"`
	Scope         *string `json:"scope"`
	StartDate     *string `json:"startDate"`
	EndDate       *string `json:"endDate"`
	ClearEndDate  bool    `json:"clearEndDate"`
}

func (a *api) handleListGrants(w http.ResponseWriter, r *http.Request) {
	grantee, ok := queryID(w, r, "granteeUserId")
	if !ok {
		return
	}
	views, err := a.Grants.ListGrants(r.Context(), grantee)
	if err != nil {
		writeServiceError(w, r, a.log, err, "role_grant_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (a *api) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var req roleGrantAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := a.Grants.AddGrant(r.Context(), iamservices.AddGrantRequest{
		GranteeUserID: req.GranteeUserID,
		RoleID:        deref(req.RoleID),
		RoleCode:      req.RoleCode,
		DomainOrgID:   deref(req.DomainOrgID),
		Scope:         deref(req.Scope),
		StartDate:     deref(req.StartDate),
		EndDate:       req.EndDate,
	})
	if err != nil {
		writeServiceError(w, r, a.log, err, "role_grant_create_failed")
		return
	}
	a.audit(r, iamtypes.ActionCreate, objectRoleGrant, g.ID, g)
	writeJSON(w, http.StatusCreated, g)
}

func (a *api) handleUpdateGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roleGrantAPIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := iamtypes.RoleGrantPatch{
		RoleID:       req.RoleID,
		DomainOrgID:  req.DomainOrgID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		ClearEndDate: req.ClearEndDate,
	}
	if req.Scope != nil {
		scope := iamtypes.GrantScope(*req.Scope)
		patch.Scope = &scope
	}
	g, err := a.Grants.UpdateGrant(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, a.log, err, "role_grant_update_failed")
		return
	}
	a.audit(r, iamtypes.ActionUpdate, objectRoleGrant, g.ID, g)
	writeJSON(w, http.StatusOK, g)
}

func (a *api) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Grants.DeleteGrant(r.Context(), id); err != nil {
		writeServiceError(w, r, a.log, err, "role_grant_delete_failed")
		return
	}
	a.audit(r, iamtypes.ActionDelete, objectRoleGrant, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.Grants.ListRoles(r.Context())
	if err != nil {
		writeServiceError(w, r, a.log, err, "role_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": roles})
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
