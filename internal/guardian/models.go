package guardian

// Permission represents a moderation action a guardian can perform
type Permission string

const (
	PermissionWarnUser      Permission = "warn_user"
	PermissionSuspendUser   Permission = "suspend_user"
	PermissionUnsuspendUser Permission = "unsuspend_user"
	PermissionResolveReport Permission = "resolve_report"
	PermissionResolveAppeal Permission = "resolve_appeal"
	PermissionViewReports   Permission = "view_reports"
	PermissionViewAuditLog  Permission = "view_audit_log"
)

// AllPermissions returns all available permissions
func AllPermissions() []Permission {
	return []Permission{
		PermissionWarnUser,
		PermissionSuspendUser,
		PermissionUnsuspendUser,
		PermissionResolveReport,
		PermissionResolveAppeal,
		PermissionViewReports,
		PermissionViewAuditLog,
	}
}

// RoleName represents the name of a guardian role
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleGuardian RoleName = "guardian"
)

// Role defines a set of permissions for guardians
type Role struct {
	Name        RoleName     `json:"-"` // Set from map key during loading
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission checks if this role has the given permission
func (r *Role) HasPermission(perm Permission) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Member represents a user with guardian privileges
type Member struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name,omitempty"`
	Role   RoleName `json:"role"`
	Note   string   `json:"note,omitempty"`
}

// Config represents the guardian roster loaded from JSON
type Config struct {
	Roles   map[RoleName]*Role `json:"roles"`
	Members []Member           `json:"members"`
}

// Validate checks that the config is valid
func (c *Config) Validate() error {
	if c.Roles == nil {
		c.Roles = make(map[RoleName]*Role)
	}

	for _, member := range c.Members {
		if member.UserID == "" {
			return &ConfigError{Field: "members", Message: "member with empty user_id"}
		}
		if _, ok := c.Roles[member.Role]; !ok {
			return &ConfigError{
				Field:   "members",
				Message: "member " + member.UserID + " references unknown role: " + string(member.Role),
			}
		}
	}

	// Set role names from map keys
	for name, role := range c.Roles {
		role.Name = name
	}

	return nil
}

// ConfigError represents a roster validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "guardian roster error in " + e.Field + ": " + e.Message
}
