package audit

type Action string

const (
	ActionLogin              Action = "login"
	ActionLogout             Action = "logout"
	ActionLoginFailed        Action = "login_failed"
	ActionPasswordChange     Action = "password_change"
	ActionPasswordReset      Action = "password_reset"
	ActionUserCreate         Action = "user_create"
	ActionUserUpdate         Action = "user_update"
	ActionUserDelete         Action = "user_delete"
	ActionUserActivate       Action = "user_activate"
	ActionUserDeactivate     Action = "user_deactivate"
	ActionRoleChange         Action = "role_change"
	ActionView               Action = "view"
	ActionList               Action = "list"
	ActionSearch             Action = "search"
	ActionCreate             Action = "create"
	ActionUpdate             Action = "update"
	ActionDelete             Action = "delete"
	ActionExport             Action = "export"
	ActionImport             Action = "import"
	ActionUnauthorizedAccess Action = "unauthorized_access"
	ActionPermissionDenied   Action = "permission_denied"
	ActionSuspiciousActivity Action = "suspicious_activity"
)

var allActions = []Action{
	ActionLogin, ActionLogout, ActionLoginFailed, ActionPasswordChange, ActionPasswordReset,
	ActionUserCreate, ActionUserUpdate, ActionUserDelete, ActionUserActivate, ActionUserDeactivate,
	ActionRoleChange, ActionView, ActionList, ActionSearch, ActionCreate, ActionUpdate, ActionDelete,
	ActionExport, ActionImport, ActionUnauthorizedAccess, ActionPermissionDenied, ActionSuspiciousActivity,
}

func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryAuth           Category = "auth"
	CategorySecurity       Category = "security"
	CategoryUserManagement Category = "user_management"
	CategoryDataAccess     Category = "data_access"
)

func (a Action) Category() Category {
	switch a {
	case ActionLogin, ActionLogout, ActionLoginFailed, ActionPasswordChange, ActionPasswordReset:
		return CategoryAuth
	case ActionUnauthorizedAccess, ActionPermissionDenied, ActionSuspiciousActivity:
		return CategorySecurity
	case ActionUserCreate, ActionUserUpdate, ActionUserDelete, ActionUserActivate, ActionUserDeactivate, ActionRoleChange:
		return CategoryUserManagement
	default:
		return CategoryDataAccess
	}
}

// SecurityActions are always recorded, regardless of load or maintenance mode.
var SecurityActions = []Action{
	ActionUnauthorizedAccess,
	ActionPermissionDenied,
	ActionSuspiciousActivity,
	ActionLoginFailed,
	ActionPasswordChange,
	ActionPasswordReset,
}

func (a Action) IsSecurity() bool {
	for _, s := range SecurityActions {
		if a == s {
			return true
		}
	}
	return false
}

// IsRoutine reports low-value reads that may be shed under load.
func (a Action) IsRoutine() bool {
	return a == ActionView || a == ActionList || a == ActionSearch
}

// AllowsAnonymous reports actions recorded without an authenticated actor.
func (a Action) AllowsAnonymous() bool {
	return a == ActionLoginFailed || a == ActionUnauthorizedAccess || a == ActionSuspiciousActivity
}
