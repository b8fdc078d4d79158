package server

import (
	"net/http"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/modules/visibility"
)

type visibilityResponse struct {
	ViewerID int64                `json:"viewerId"`
	Scope    visibility.Scope     `json:"scope"`
	AsOf     string               `json:"asOf"`
	Strategy string               `json:"strategy"`
	UserIDs  []int64              `json:"userIds"`
	Grants   []iamtypes.RoleGrant `json:"grants"`
}

func (a *api) handleVisibility(w http.ResponseWriter, r *http.Request) {
	asOf, ok := requireAsOf(w, r)
	if !ok {
		return
	}
	scope := visibility.ParseScope(r.URL.Query().Get("scope"))
	viewer := viewerID(r)

	res, err := a.Visibility.Resolve(r.Context(), viewer, scope, asOf)
	if err != nil {
		writeServiceError(w, r, a.log, err, "visibility_resolve_failed")
		return
	}
	if res.Grants == nil {
		res.Grants = []iamtypes.RoleGrant{}
	}
	writeJSON(w, http.StatusOK, visibilityResponse{
		ViewerID: viewer,
		Scope:    scope,
		AsOf:     asOf,
		Strategy: a.Visibility.Strategy(),
		UserIDs:  res.UserIDs,
		Grants:   res.Grants,
	})
}
