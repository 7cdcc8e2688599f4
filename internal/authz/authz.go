// Package authz decides what each role may do. Routes declare a capability;
// Can is the only place that maps roles to capabilities.
package authz

import "github.com/sakashimaa/electro-shop/internal/domain"

type Capability string

const (
	OrdersPlace        Capability = "orders:place"
	OrdersReadOwn      Capability = "orders:read_own"
	OrdersReadAll      Capability = "orders:read_all"
	OrdersUpdateStatus Capability = "orders:update_status"
	ReviewsWrite       Capability = "reviews:write"
	WishlistManage     Capability = "wishlist:manage"
	ProductsWrite      Capability = "products:write"
	UsersManage        Capability = "users:manage"
	AdminsCreate       Capability = "admins:create"
	ReportsRead        Capability = "reports:read"
	ActivityRead       Capability = "activity:read"
)

var customerCaps = []Capability{OrdersPlace, OrdersReadOwn, ReviewsWrite, WishlistManage}

var standardAdminCaps = append(append([]Capability{}, customerCaps...),
	ProductsWrite, OrdersReadAll, OrdersUpdateStatus,
)

var mainAdminCaps = append(append([]Capability{}, standardAdminCaps...),
	UsersManage, AdminsCreate, ReportsRead, ActivityRead,
)

var grants = map[domain.Role]map[Capability]struct{}{
	domain.RoleCustomer:      toSet(customerCaps),
	domain.RoleStandardAdmin: toSet(standardAdminCaps),
	domain.RoleMainAdmin:     toSet(mainAdminCaps),
}

func toSet(caps []Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Can reports whether role holds every capability in caps. Unknown roles hold nothing.
func Can(role domain.Role, caps ...Capability) bool {
	granted, ok := grants[role]
	if !ok {
		return false
	}
	for _, c := range caps {
		if _, ok := granted[c]; !ok {
			return false
		}
	}
	return true
}

// Principal is the authenticated caller as seen by services.
type Principal struct {
	UserID int64
	Role   domain.Role
}

func (p Principal) Can(caps ...Capability) bool {
	return Can(p.Role, caps...)
}

// CanReadOrder allows owners and anyone who can read all orders.
func (p Principal) CanReadOrder(ownerID int64) bool {
	if p.UserID != 0 && p.UserID == ownerID && p.Can(OrdersReadOwn) {
		return true
	}
	return p.Can(OrdersReadAll)
}
