package domain

// AuthContext is supplied by the external auth layer before any registry or
// routing call. The gateway trusts it and scopes all registry queries by
// tenant; it performs no authentication of its own.
type AuthContext struct {
	TenantID string
	UserID   string
}
