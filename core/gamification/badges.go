package gamification

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/user"
)

var (
	ErrBadgeExists        = errors.New("a badge with this name already exists")
	ErrBadgeAlreadyEarned = errors.New("this badge was already earned")
)

type Badge struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	PointsReward int       `json:"points_reward"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserBadge is a badge earned by a user.
type UserBadge struct {
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	EarnedAt time.Time `json:"earned_at"`
}

type NewBadge struct {
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Description  string `json:"description" validate:"max=1000"`
	Icon         string `json:"icon" validate:"max=50"`
	PointsReward int    `json:"points_reward" validate:"min=0,max=1000"`
}

func (nb *NewBadge) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Icon = core.CleanString(nb.Icon)
	return validate.Struct(nb)
}

type BadgeGrant struct {
	UserID string `json:"user_id" validate:"required"`
}

func (svc *Service) CreateBadge(ctx context.Context, actor user.User, nb NewBadge) (Badge, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageRewards); err != nil {
		return Badge{}, err
	}
	if err := nb.Validate(svc.validate); err != nil {
		return Badge{}, err
	}
	taken, err := svc.repo.BadgeNameExists(ctx, nb.Name)
	if err != nil {
		return Badge{}, errors.Wrap(err, "checking badge name")
	}
	if taken {
		return Badge{}, core.NewValidationError(ErrBadgeExists, core.FieldError{Field: "name", Error: ErrBadgeExists.Error()})
	}
	b, err := svc.repo.CreateBadge(ctx, Badge{
		Name:         nb.Name,
		Description:  nb.Description,
		Icon:         nb.Icon,
		PointsReward: nb.PointsReward,
		CreatedAt:    core.Now(),
	})
	return b, errors.Wrap(err, "creating badge")
}

func (svc *Service) Badges(ctx context.Context) ([]Badge, error) {
	return svc.repo.QueryBadges(ctx)
}

// GrantBadge gives a badge to a user and credits its bonus points.
func (svc *Service) GrantBadge(ctx context.Context, actor user.User, badgeID string, bg BadgeGrant) (UserBadge, error) {
	if err := svc.policy.Authorize(actor.Role, policy.AwardPoints); err != nil {
		return UserBadge{}, err
	}
	if err := svc.validate.Struct(bg); err != nil {
		return UserBadge{}, err
	}

	var ub UserBadge
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		b, err := svc.repo.GetBadge(ctx, badgeID, tx)
		if err != nil {
			return err
		}
		if _, err = svc.users.GetUser(ctx, user.GetFilter{ID: bg.UserID}, tx); err != nil {
			return err
		}
		earned, err := svc.repo.UserBadgeExists(ctx, bg.UserID, b.ID, tx)
		if err != nil {
			return errors.Wrap(err, "checking earned badges")
		}
		if earned {
			return core.NewValidationError(ErrBadgeAlreadyEarned, core.FieldError{Field: "user_id", Error: ErrBadgeAlreadyEarned.Error()})
		}

		now := core.Now()
		ub, err = svc.repo.CreateUserBadge(ctx, UserBadge{UserID: bg.UserID, BadgeID: b.ID, Name: b.Name, Icon: b.Icon, EarnedAt: now}, tx)
		if err != nil {
			return errors.Wrap(err, "creating user badge")
		}
		if b.PointsReward == 0 {
			return nil
		}
		_, err = svc.repo.CreateTransaction(ctx, Transaction{
			UserID:      bg.UserID,
			Amount:      b.PointsReward,
			Type:        TypeBadge,
			Description: "Badge: " + b.Name,
			CreatedAt:   now,
		}, tx)
		return errors.Wrap(err, "crediting badge points")
	})
	if err != nil {
		return UserBadge{}, err
	}
	return ub, nil
}

func (svc *Service) UserBadges(ctx context.Context, actor user.User, userID string) ([]UserBadge, error) {
	if err := svc.viewer.CanView(ctx, actor, userID); err != nil {
		return nil, err
	}
	return svc.repo.QueryUserBadges(ctx, []string{userID})
}
