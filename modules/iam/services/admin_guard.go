package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/authz"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const errForbidden = "FORBIDDEN"

// AdminGuard authorizes admin operations from the roles a user holds today.
type AdminGuard struct {
	grants RoleGrantService
	authz  *authz.Authorizer
	log    *zap.Logger
}

func NewAdminGuard(grants RoleGrantService, a *authz.Authorizer, log *zap.Logger) AdminGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return AdminGuard{grants: grants, authz: a, log: log}
}

// Check returns a Forbidden error when userID may not perform action on
// object. An effective sys_admin grant passes regardless of policy; other
// roles go through casbin. In shadow mode denials are logged and let through.
func (g AdminGuard) Check(ctx context.Context, userID int64, object string, action string) error {
	today := asof.Today()
	admin, err := g.grants.HasEffectiveGrant(ctx, userID, authz.RoleSysAdmin, today)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	codes, err := g.grants.RoleCodes(ctx, userID, today)
	if err != nil {
		return err
	}
	allowed, enforced, err := g.authz.AuthorizeRoles(codes, object, action)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	if !enforced {
		g.log.Info("authz shadow deny",
			zap.Int64("user_id", userID),
			zap.Strings("roles", codes),
			zap.String("object", object),
			zap.String("action", action),
		)
		return nil
	}
	return httperr.NewForbidden(errForbidden)
}
