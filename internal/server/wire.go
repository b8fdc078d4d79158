package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	iampersistence "github.com/jacksonlee411/worklog/modules/iam/infrastructure/persistence"
	iamservices "github.com/jacksonlee411/worklog/modules/iam/services"
	orgpersistence "github.com/jacksonlee411/worklog/modules/orgunit/infrastructure/persistence"
	orgservices "github.com/jacksonlee411/worklog/modules/orgunit/services"
	staffingpersistence "github.com/jacksonlee411/worklog/modules/staffing/infrastructure/persistence"
	staffingservices "github.com/jacksonlee411/worklog/modules/staffing/services"
	"github.com/jacksonlee411/worklog/modules/visibility"
	worklogpersistence "github.com/jacksonlee411/worklog/modules/worklog/infrastructure/persistence"
	worklogservices "github.com/jacksonlee411/worklog/modules/worklog/services"
	"github.com/jacksonlee411/worklog/pkg/authz"
	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/objstore"
)

type StackOptions struct {
	Authorizer       *authz.Authorizer
	Strategy         visibility.Strategy
	ExportsPerMinute int
	ExportKeyPrefix  string
	Registry         *prometheus.Registry
	Logger           *zap.Logger
}

// BuildOptions wires every module store and service over ds. Export files go
// to objects, which may share ds's backend.
func BuildOptions(ds *docstore.Store, objects objstore.Backend, so StackOptions) HandlerOptions {
	log := so.Logger
	if log == nil {
		log = zap.NewNop()
	}

	userStore := iampersistence.NewUserDocStore(ds)
	grantStore := iampersistence.NewGrantDocStore(ds)
	orgStore := orgpersistence.NewOrgUnitDocStore(ds)
	membershipStore := orgpersistence.NewMembershipDocStore(ds)
	edgeStore := staffingpersistence.NewManagerEdgeDocStore(ds)

	users := iamservices.NewUserService(userStore)
	grants := iamservices.NewRoleGrantService(iampersistence.NewRoleDocStore(ds), grantStore)
	audit := iamservices.NewAuditService(iampersistence.NewAuditDocStore(ds), log.Named("audit"))
	orgs := orgservices.NewOrgUnitService(orgStore, membershipStore)

	resolverOpts := []visibility.Option{visibility.WithLogger(log.Named("visibility"))}
	if so.Strategy != nil {
		resolverOpts = append(resolverOpts, visibility.WithStrategy(so.Strategy))
	}
	resolver := visibility.NewResolver(visibility.Sources{
		OrgUnits:     orgStore,
		ManagerEdges: edgeStore,
		Memberships:  membershipStore,
		Grants:       grantStore,
		Users:        userStore,
	}, resolverOpts...)

	items := worklogservices.NewWorkItemService(worklogpersistence.NewWorkItemDocStore(ds), orgs)
	reports := worklogservices.NewReportService(items, resolver, users, worklogservices.NewWorkItemFilter())

	return HandlerOptions{
		Users:           users,
		Grants:          grants,
		Audit:           audit,
		Guard:           iamservices.NewAdminGuard(grants, so.Authorizer, log.Named("authz")),
		Exports:         iamservices.NewExportGate(audit, so.ExportsPerMinute),
		Orgs:            orgs,
		Edges:           staffingservices.NewManagerEdgesFacade(edgeStore),
		Items:           items,
		Reports:         reports,
		Visibility:      resolver,
		Objects:         objects,
		ExportKeyPrefix: so.ExportKeyPrefix,
		Registry:        so.Registry,
		Logger:          log,
	}
}
