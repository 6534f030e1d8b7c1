package models

// UserRole represents the roles carried by console access tokens.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleMerchandiser UserRole = "MERCHANDISER"
	RoleViewer       UserRole = "VIEWER"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
