// Package policy holds the single role × action table consulted by every service.
package policy

import "github.com/trezcool/learnsphere/core"

type Action string

const (
	ManageUsers      Action = "manage users"
	ManageSchools    Action = "manage schools"
	ManageRooms      Action = "manage rooms"
	ManageSchedule   Action = "manage schedule"
	BookRoom         Action = "book room"
	RecordJournal    Action = "record journal"
	ViewAudit        Action = "view grade audit"
	ManageHomework   Action = "manage homework"
	SubmitHomework   Action = "submit homework"
	AwardPoints      Action = "award points"
	ManageRewards    Action = "manage rewards"
	RedeemRewards    Action = "redeem rewards"
	ViewLeaderboard  Action = "view leaderboard"
	ViewRecords      Action = "view student records"
	ViewOwnRecords   Action = "view own records"
	ReadNotification Action = "read notifications"
)

var (
	management = []core.Role{core.RoleAdmin, core.RoleDirector}
	staff      = []core.Role{core.RoleAdmin, core.RoleDirector, core.RoleTeacher}

	defaultTable = map[Action][]core.Role{
		ManageUsers:      management,
		ManageSchools:    management,
		ManageRooms:      management,
		ManageSchedule:   management,
		BookRoom:         staff,
		RecordJournal:    staff,
		ViewAudit:        staff,
		ManageHomework:   staff,
		SubmitHomework:   {core.RoleStudent},
		AwardPoints:      staff,
		ManageRewards:    management,
		RedeemRewards:    {core.RoleStudent},
		ViewLeaderboard:  core.AllRoles,
		ViewRecords:      staff,
		ViewOwnRecords:   {core.RoleStudent, core.RoleParent},
		ReadNotification: core.AllRoles,
	}
)

// Evaluator decides whether a role may perform an action.
type Evaluator interface {
	Authorize(role core.Role, action Action) error
	Allowed(role core.Role, action Action) bool
}

type evaluator struct {
	table map[Action][]core.Role
}

var _ Evaluator = (*evaluator)(nil)

func New() Evaluator {
	return &evaluator{table: defaultTable}
}

func (ev *evaluator) Allowed(role core.Role, action Action) bool {
	for _, r := range ev.table[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns a *core.PermissionError when role may not perform action.
func (ev *evaluator) Authorize(role core.Role, action Action) error {
	if ev.Allowed(role, action) {
		return nil
	}
	return core.NewPermissionError(role, string(action))
}
