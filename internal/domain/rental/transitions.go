package rental

import "slices"

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusOwnerAccepted Status = "OWNER_ACCEPTED"
	StatusConfirmed     Status = "CONFIRMED"
	StatusActive        Status = "ACTIVE"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
	StatusDisputed      Status = "DISPUTED"
)

// Terminal statuses never block dates again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HoldsDates reports whether the ledger carries rental blocks for this status.
func (s Status) HoldsDates() bool {
	return s == StatusConfirmed || s == StatusActive || s == StatusDisputed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOwnerAccepted, StatusConfirmed, StatusActive,
		StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

// BlockingStatuses are every status that still occupies the item's calendar.
var BlockingStatuses = []Status{StatusPending, StatusOwnerAccepted, StatusConfirmed, StatusActive, StatusDisputed}

type Action string

const (
	ActionAccept  Action = "accept"
	ActionConfirm Action = "confirm"
	ActionExtend  Action = "extend"
	ActionPickUp  Action = "pickup"
	ActionReturn  Action = "return"
	ActionDispute Action = "dispute"
	ActionCancel  Action = "cancel"
	ActionExpire  Action = "expire"
)

type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleSystem Role = "system"
)

// SystemActor identifies scheduled jobs acting on rentals.
const SystemActor = "@system"

type rule struct {
	from  []Status
	to    Status // empty keeps the current status
	roles []Role
}

var transitions = map[Action]rule{
	ActionAccept:  {from: []Status{StatusPending}, to: StatusOwnerAccepted, roles: []Role{RoleOwner}},
	ActionConfirm: {from: []Status{StatusOwnerAccepted}, to: StatusConfirmed, roles: []Role{RoleRenter}},
	ActionExtend:  {from: []Status{StatusConfirmed, StatusActive}, roles: []Role{RoleRenter, RoleOwner}},
	ActionPickUp:  {from: []Status{StatusConfirmed}, to: StatusActive, roles: []Role{RoleOwner}},
	ActionReturn:  {from: []Status{StatusActive}, to: StatusCompleted, roles: []Role{RoleOwner}},
	ActionDispute: {from: []Status{StatusConfirmed, StatusActive}, to: StatusDisputed, roles: []Role{RoleRenter, RoleOwner}},
	ActionCancel: {
		from:  []Status{StatusPending, StatusOwnerAccepted, StatusConfirmed, StatusActive, StatusDisputed},
		to:    StatusCancelled,
		roles: []Role{RoleRenter, RoleOwner},
	},
	ActionExpire: {from: []Status{StatusPending, StatusOwnerAccepted}, to: StatusCancelled, roles: []Role{RoleSystem}},
}

// Next maps (status, action) to the resulting status.
func Next(from Status, action Action) (Status, error) {
	r, ok := transitions[action]
	if !ok || !slices.Contains(r.from, from) {
		return "", ErrInvalidState
	}
	if r.to == "" {
		return from, nil
	}
	return r.to, nil
}

// Allowed reports whether role may perform action.
func Allowed(role Role, action Action) bool {
	r, ok := transitions[action]
	return ok && slices.Contains(r.roles, role)
}
