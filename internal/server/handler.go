package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	iamservices "github.com/jacksonlee411/worklog/modules/iam/services"
	orgservices "github.com/jacksonlee411/worklog/modules/orgunit/services"
	staffingservices "github.com/jacksonlee411/worklog/modules/staffing/services"
	"github.com/jacksonlee411/worklog/modules/visibility"
	worklogservices "github.com/jacksonlee411/worklog/modules/worklog/services"
	"github.com/jacksonlee411/worklog/pkg/authz"
	"github.com/jacksonlee411/worklog/pkg/objstore"
)

const DefaultExportKeyPrefix = "exports/weekly/"

// VisibilityResolver is the part of *visibility.Resolver the API exposes.
type VisibilityResolver interface {
	Resolve(ctx context.Context, viewerID int64, scope visibility.Scope, asOfDate string) (visibility.Result, error)
	Strategy() string
}

type HandlerOptions struct {
	Users      iamservices.UserService
	Grants     iamservices.RoleGrantService
	Audit      iamservices.AuditService
	Guard      iamservices.AdminGuard
	Exports    iamservices.ExportGate
	Orgs       orgservices.OrgUnitService
	Edges      staffingservices.ManagerEdgesFacade
	Items      worklogservices.WorkItemService
	Reports    worklogservices.ReportService
	Visibility VisibilityResolver

	// Objects receives export files.
	Objects         objstore.Backend
	ExportKeyPrefix string

	// Registry collects HTTP metrics and is served on /metrics. A nil
	// Registry gets a private one.
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

type api struct {
	HandlerOptions
	log *zap.Logger
}

func NewHandler(opts HandlerOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.ExportKeyPrefix == "" {
		opts.ExportKeyPrefix = DefaultExportKeyPrefix
	}
	a := &api{HandlerOptions: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(accessLog(a.log, newHTTPMetrics(opts.Registry)))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(requirePrincipal)

		r.Get("/visibility", a.handleVisibility)

		r.Get("/work-items", a.handleListWorkItems)
		r.Post("/work-items", a.handleCreateWorkItem)
		r.Delete("/work-items/{id}", a.handleDeleteWorkItem)

		r.Get("/reports/missing", a.handleMissingReport)
		r.Get("/reports/weekly", a.handleWeeklyReport)
		r.Post("/exports/weekly", a.handleWeeklyExport)

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(a.guard(authz.ObjectAdminOrgs))
				r.Get("/orgs", a.handleListOrgs)
				r.Get("/orgs/tree", a.handleOrgTree)
				r.Post("/orgs", a.handleCreateOrg)
				r.Put("/orgs/{id}", a.handleUpdateOrg)
			})
			r.Group(func(r chi.Router) {
				r.Use(a.guard(authz.ObjectAdminUsers))
				r.Get("/users", a.handleListUsers)
				r.Post("/users", a.handleCreateUser)
				r.Get("/users/{id}", a.handleGetUser)
				r.Put("/users/{id}", a.handleUpdateUser)
				r.Get("/users/{id}/memberships", a.handleListMemberships)
				r.Put("/users/{id}/primary-org", a.handleSetPrimaryOrg)
			})
			r.Group(func(r chi.Router) {
				r.Use(a.guard(authz.ObjectAdminManagerEdges))
				r.Get("/manager-edges", a.handleListManagerEdges)
				r.Post("/manager-edges", a.handleCreateManagerEdge)
				r.Delete("/manager-edges", a.handleDeleteManagerEdge)
			})
			r.Group(func(r chi.Router) {
				r.Use(a.guard(authz.ObjectAdminRoleGrants))
				r.Get("/role-grants", a.handleListGrants)
				r.Post("/role-grants", a.handleCreateGrant)
				r.Put("/role-grants/{id}", a.handleUpdateGrant)
				r.Delete("/role-grants/{id}", a.handleDeleteGrant)
			})
			r.With(a.guard(authz.ObjectAdminRoles)).Get("/roles", a.handleListRoles)
		})
	})
	return r
}

// guard checks the caller against object, reading for GET and writing for
// every other method.
func (a *api) guard(object string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action := authz.ActionWrite
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				action = authz.ActionRead
			}
			if err := a.Guard.Check(r.Context(), viewerID(r), object, action); err != nil {
				writeServiceError(w, r, a.log, err, "authz_check_failed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
