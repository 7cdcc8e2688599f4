package domain

import "time"

const (
	ActionProductCreated     = "product_created"
	ActionProductUpdated     = "product_updated"
	ActionProductDeleted     = "product_deleted"
	ActionOrderStatusChanged = "order_status_changed"
	ActionAdminCreated       = "standard_admin_created"
	ActionUserDeleted        = "user_deleted"
	ActionUserRoleChanged    = "user_role_changed"
	ActionProductsExported   = "products_exported"
)

type ActivityEntry struct {
	ID        int64          `json:"id"`
	ActorID   int64          `json:"actorId"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}
