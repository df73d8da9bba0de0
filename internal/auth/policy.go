package auth

import "staybook/internal/models"

// Action is an operation gated by role and ownership.
type Action string

const (
	ActionReserve         Action = "reserve"
	ActionCancel          Action = "cancel"
	ActionListOwn         Action = "list_own"
	ActionListAll         Action = "list_all"
	ActionViewBookedDates Action = "view_booked_dates"
	ActionManageInventory Action = "manage_inventory"
	ActionExport          Action = "export"
)

// Allow is the single role policy. isOwner is true when the caller owns the
// target resource; it only matters for actions open to owners.
func Allow(role models.Role, action Action, isOwner bool) bool {
	switch action {
	case ActionViewBookedDates:
		return true
	case ActionReserve:
		return role == models.RoleUser
	case ActionCancel:
		return role == models.RoleAdmin || (role == models.RoleUser && isOwner)
	case ActionListOwn:
		return role == models.RoleAdmin || role == models.RoleUser
	case ActionListAll, ActionManageInventory, ActionExport:
		return role == models.RoleAdmin
	default:
		return false
	}
}
