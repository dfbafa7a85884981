package permission

type CheckResponse struct {
	Resource string   `json:"resource"`
	Action   string   `json:"action"`
	Decision Decision `json:"decision"`
}

type RolePermissionsResponse struct {
	RoleID      int64         `json:"role_id"`
	Permissions []*Permission `json:"permissions"`
}
