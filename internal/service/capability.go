package service

import "github.com/noah-isme/sma-advisor-api/internal/models"

// Capability names a discrete permission checked against a school scope.
type Capability string

const (
	CapAdvisorQuery    Capability = "advisor.query"
	CapActionCreate    Capability = "action.create"
	CapActionConfirm   Capability = "action.confirm"
	CapActionExecute   Capability = "action.execute"
	CapFinanceSnapshot Capability = "finance.snapshot"
)

// Authorizer answers capability questions for an authenticated identity.
// Action creation, confirmation and execution all consult the same
// implementation, so the authorization decision lives in one place.
type Authorizer interface {
	HasCapability(claims *models.JWTClaims, schoolID string, cap Capability) bool
}

// RoleAuthorizer grants capabilities from a fixed role table. SUPERADMIN is
// not school-scoped; every other role must match the target school.
type RoleAuthorizer struct {
	grants map[models.UserRole]map[Capability]struct{}
}

// NewRoleAuthorizer builds the default role-capability table.
func NewRoleAuthorizer() *RoleAuthorizer {
	grant := func(caps ...Capability) map[Capability]struct{} {
		m := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			m[c] = struct{}{}
		}
		return m
	}
	return &RoleAuthorizer{grants: map[models.UserRole]map[Capability]struct{}{
		models.RoleSuperAdmin: grant(CapAdvisorQuery, CapActionCreate, CapActionConfirm, CapActionExecute, CapFinanceSnapshot),
		models.RoleAdmin:      grant(CapAdvisorQuery, CapActionCreate, CapActionConfirm, CapActionExecute, CapFinanceSnapshot),
		models.RoleAccountant: grant(CapAdvisorQuery, CapFinanceSnapshot),
		models.RoleTeacher:    grant(CapAdvisorQuery),
	}}
}

// HasCapability implements Authorizer.
func (a *RoleAuthorizer) HasCapability(claims *models.JWTClaims, schoolID string, cap Capability) bool {
	if claims == nil {
		return false
	}
	caps, ok := a.grants[claims.Role]
	if !ok {
		return false
	}
	if _, ok := caps[cap]; !ok {
		return false
	}
	if claims.Role == models.RoleSuperAdmin {
		return true
	}
	return schoolID != "" && claims.SchoolID == schoolID
}
