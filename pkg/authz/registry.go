package authz

const (
	RoleSysAdmin  = "sys_admin"
	RoleOrgAdmin  = "org_admin"
	RoleAuditor   = "auditor"
	RoleAnonymous = "anonymous"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const DomainGlobal = "global"

const (
	ObjectAdminOrgs         = "admin.orgs"
	ObjectAdminUsers        = "admin.users"
	ObjectAdminManagerEdges = "admin.manager-edges"
	ObjectAdminRoleGrants   = "admin.role-grants"
	ObjectAdminRoles        = "admin.roles"
)
