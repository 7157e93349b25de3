package gamification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/user"
)

const defaultLeaderboardLimit = 50

type LeaderboardFilter struct {
	ClassID string `json:"class_id" query:"class_id"`
	Limit   int    `json:"limit" query:"limit" validate:"min=0,max=200"`
}

type LeaderboardEntry struct {
	Rank      int         `json:"rank"`
	StudentID string      `json:"student_id"`
	Name      string      `json:"name"`
	ClassID   string      `json:"class_id"`
	Points    int         `json:"points"`
	Badges    []UserBadge `json:"badges"`
}

// Leaderboard ranks the active students by points. Ties share a rank.
func (svc *Service) Leaderboard(ctx context.Context, actor user.User, filter LeaderboardFilter) ([]LeaderboardEntry, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ViewLeaderboard); err != nil {
		return nil, err
	}
	if err := svc.validate.Struct(filter); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		filter.Limit = defaultLeaderboardLimit
	}

	entries, err := svc.repo.Leaderboard(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "ranking students")
	}
	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.StudentID)
	}
	earned, err := svc.repo.QueryUserBadges(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	byUser := make(map[string][]UserBadge, len(entries))
	for _, ub := range earned {
		byUser[ub.UserID] = append(byUser[ub.UserID], ub)
	}

	for i := range entries {
		switch {
		case i > 0 && entries[i].Points == entries[i-1].Points:
			entries[i].Rank = entries[i-1].Rank
		default:
			entries[i].Rank = i + 1
		}
		entries[i].Badges = byUser[entries[i].StudentID]
		if entries[i].Badges == nil {
			entries[i].Badges = []UserBadge{}
		}
	}
	return entries, nil
}
