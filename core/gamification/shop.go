package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/user"
)

var (
	ErrNotEnoughPoints    = errors.New("not enough points")
	ErrRewardUnavailable  = errors.New("this reward is not available")
	ErrAlreadyProcessed   = errors.New("this redemption was already processed")
	ErrNotEquippable      = errors.New("only approved items can be equipped")
	errRedemptionNotOwned = "use another user's item"
)

type RewardType string

const (
	RewardPhysical  RewardType = "physical"
	RewardDigital   RewardType = "digital"
	RewardPrivilege RewardType = "privilege"
)

// autoApproved reports whether a purchase of this type needs no manual handover.
func (rt RewardType) autoApproved() bool {
	return rt == RewardDigital || rt == RewardPrivilege
}

type RedemptionStatus string

const (
	StatusPending  RedemptionStatus = "pending"
	StatusApproved RedemptionStatus = "approved"
	StatusRejected RedemptionStatus = "rejected"
)

type Reward struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cost        int        `json:"cost"`
	Type        RewardType `json:"reward_type"`
	Icon        string     `json:"icon"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Redemption is a purchased reward. Cost is the price paid at purchase time.
type Redemption struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	RewardID    string           `json:"reward_id"`
	RewardName  string           `json:"reward_name"`
	Cost        int              `json:"cost"`
	Status      RedemptionStatus `json:"status"`
	IsEquipped  bool             `json:"is_equipped"`
	CreatedAt   time.Time        `json:"created_at"`
	ProcessedAt null.Time        `json:"processed_at"`
}

type NewReward struct {
	Name        string     `json:"name" validate:"required,notblank,max=100"`
	Description string     `json:"description" validate:"max=1000"`
	Cost        int        `json:"cost" validate:"required,min=1"`
	Type        RewardType `json:"reward_type" validate:"omitempty,oneof=physical digital privilege"`
	Icon        string     `json:"icon" validate:"max=50"`
}

func (nr *NewReward) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Description = core.CleanString(nr.Description)
	nr.Icon = core.CleanString(nr.Icon)
	if nr.Type == "" {
		nr.Type = RewardPhysical
	}
	return validate.Struct(nr)
}

type UpdateReward struct {
	Name        string  `json:"name" validate:"max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Cost        *int    `json:"cost" validate:"omitempty,min=1"`
	IsActive    *bool   `json:"is_active"`
}

func (ur *UpdateReward) Validate(validate *validator.Validate) error {
	ur.Name = core.CleanString(ur.Name)
	if ur.Description != nil {
		desc := core.CleanString(*ur.Description)
		ur.Description = &desc
	}
	return validate.Struct(ur)
}

type RedemptionFilter struct {
	UserID string           `query:"user_id"`
	Status RedemptionStatus `query:"status"`
}

// Shop lists the rewards for sale together with the actor's balance.
type Shop struct {
	Balance int      `json:"balance"`
	Rewards []Reward `json:"rewards"`
}

func (svc *Service) CreateReward(ctx context.Context, actor user.User, nr NewReward) (Reward, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageRewards); err != nil {
		return Reward{}, err
	}
	if err := nr.Validate(svc.validate); err != nil {
		return Reward{}, err
	}
	rw, err := svc.repo.CreateReward(ctx, Reward{
		Name:        nr.Name,
		Description: nr.Description,
		Cost:        nr.Cost,
		Type:        nr.Type,
		Icon:        nr.Icon,
		IsActive:    true,
		CreatedAt:   core.Now(),
	})
	return rw, errors.Wrap(err, "creating reward")
}

func (svc *Service) UpdateReward(ctx context.Context, actor user.User, id string, ur UpdateReward) (Reward, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageRewards); err != nil {
		return Reward{}, err
	}
	if err := ur.Validate(svc.validate); err != nil {
		return Reward{}, err
	}
	rw, err := svc.repo.GetReward(ctx, id)
	if err != nil {
		return Reward{}, err
	}
	if ur.Name != "" {
		rw.Name = ur.Name
	}
	if ur.Description != nil {
		rw.Description = *ur.Description
	}
	if ur.Cost != nil {
		rw.Cost = *ur.Cost
	}
	if ur.IsActive != nil {
		rw.IsActive = *ur.IsActive
	}
	rw, err = svc.repo.UpdateReward(ctx, rw)
	return rw, errors.Wrap(err, "updating reward")
}

// Shop returns the active rewards and the actor's balance.
// Management also sees withdrawn rewards.
func (svc *Service) Shop(ctx context.Context, actor user.User) (Shop, error) {
	activeOnly := !svc.policy.Allowed(actor.Role, policy.ManageRewards)
	rewards, err := svc.repo.QueryRewards(ctx, activeOnly)
	if err != nil {
		return Shop{}, errors.Wrap(err, "querying rewards")
	}
	balance, err := svc.repo.SumPoints(ctx, actor.ID)
	if err != nil {
		return Shop{}, err
	}
	return Shop{Balance: balance, Rewards: rewards}, nil
}

// Redeem buys a reward with the actor's points. The debit and the redemption are written together.
// Digital rewards and privileges are approved at once; physical ones wait for a manager.
func (svc *Service) Redeem(ctx context.Context, actor user.User, rewardID string) (Redemption, error) {
	if err := svc.policy.Authorize(actor.Role, policy.RedeemRewards); err != nil {
		return Redemption{}, err
	}

	var rd Redemption
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		rw, err := svc.repo.GetReward(ctx, rewardID, tx)
		if err != nil {
			return err
		}
		if !rw.IsActive {
			return core.NewValidationError(ErrRewardUnavailable, core.FieldError{Field: "reward_id", Error: ErrRewardUnavailable.Error()})
		}
		balance, err := svc.repo.SumPoints(ctx, actor.ID, tx)
		if err != nil {
			return err
		}
		if balance < rw.Cost {
			return core.NewValidationError(ErrNotEnoughPoints, core.FieldError{
				Field: "cost",
				Error: fmt.Sprintf("%s: %d needed, %d available", ErrNotEnoughPoints, rw.Cost, balance),
			})
		}

		now := core.Now()
		_, err = svc.repo.CreateTransaction(ctx, Transaction{
			UserID:      actor.ID,
			Amount:      -rw.Cost,
			Type:        TypeRewardPurchase,
			Description: "Purchased: " + rw.Name,
			CreatedAt:   now,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "debiting points")
		}

		rd = Redemption{
			UserID:     actor.ID,
			RewardID:   rw.ID,
			RewardName: rw.Name,
			Cost:       rw.Cost,
			Status:     StatusPending,
			CreatedAt:  now,
		}
		if rw.Type.autoApproved() {
			rd.Status = StatusApproved
			rd.ProcessedAt = null.TimeFrom(now)
		}
		rd, err = svc.repo.CreateRedemption(ctx, rd, tx)
		return errors.Wrap(err, "creating redemption")
	})
	if err != nil {
		return Redemption{}, err
	}
	return rd, nil
}

// QueryRedemptions lists purchased items. Without a user, students and parents see their own,
// and management sees everyone's.
func (svc *Service) QueryRedemptions(ctx context.Context, actor user.User, filter RedemptionFilter) ([]Redemption, error) {
	switch {
	case filter.UserID == "" && !svc.policy.Allowed(actor.Role, policy.ManageRewards):
		filter.UserID = actor.ID
	case filter.UserID != "":
		if err := svc.viewer.CanView(ctx, actor, filter.UserID); err != nil {
			return nil, err
		}
	}
	return svc.repo.QueryRedemptions(ctx, filter)
}

// ProcessRedemption approves or rejects a pending redemption. A rejection refunds the price paid.
func (svc *Service) ProcessRedemption(ctx context.Context, actor user.User, id string, approve bool) (Redemption, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageRewards); err != nil {
		return Redemption{}, err
	}

	var rd Redemption
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if rd, err = svc.repo.GetRedemption(ctx, id, tx); err != nil {
			return err
		}
		if rd.Status != StatusPending {
			return core.NewValidationError(ErrAlreadyProcessed, core.FieldError{Field: "status", Error: ErrAlreadyProcessed.Error()})
		}

		now := core.Now()
		rd.Status = StatusApproved
		rd.ProcessedAt = null.TimeFrom(now)
		if !approve {
			rd.Status = StatusRejected
			_, err = svc.repo.CreateTransaction(ctx, Transaction{
				UserID:      rd.UserID,
				Amount:      rd.Cost,
				Type:        TypeRewardRefund,
				Description: "Refunded: " + rd.RewardName,
				CreatedAt:   now,
			}, tx)
			if err != nil {
				return errors.Wrap(err, "refunding points")
			}
		}
		rd, err = svc.repo.UpdateRedemption(ctx, rd, tx)
		return errors.Wrap(err, "updating redemption")
	})
	if err != nil {
		return Redemption{}, err
	}
	return rd, nil
}

// ownRedemption finds an item of the actor. Other users' items are refused.
func (svc *Service) ownRedemption(ctx context.Context, actor user.User, id string, exec core.DBExecutor) (Redemption, error) {
	rd, err := svc.repo.GetRedemption(ctx, id, exec)
	if err != nil {
		return Redemption{}, err
	}
	if rd.UserID != actor.ID {
		return Redemption{}, core.NewPermissionError(actor.Role, errRedemptionNotOwned)
	}
	return rd, nil
}

// Equip shows an approved item on the actor's profile. At most one item is equipped at a time.
func (svc *Service) Equip(ctx context.Context, actor user.User, id string) (Redemption, error) {
	var rd Redemption
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if rd, err = svc.ownRedemption(ctx, actor, id, tx); err != nil {
			return err
		}
		if rd.Status != StatusApproved {
			return core.NewValidationError(ErrNotEquippable, core.FieldError{Field: "status", Error: ErrNotEquippable.Error()})
		}
		if _, err = svc.repo.UnequipAll(ctx, actor.ID, tx); err != nil {
			return errors.Wrap(err, "unequipping items")
		}
		rd.IsEquipped = true
		rd, err = svc.repo.UpdateRedemption(ctx, rd, tx)
		return errors.Wrap(err, "equipping item")
	})
	if err != nil {
		return Redemption{}, err
	}
	return rd, nil
}

func (svc *Service) Unequip(ctx context.Context, actor user.User, id string) (Redemption, error) {
	rd, err := svc.ownRedemption(ctx, actor, id, nil)
	if err != nil {
		return Redemption{}, err
	}
	rd.IsEquipped = false
	rd, err = svc.repo.UpdateRedemption(ctx, rd)
	return rd, errors.Wrap(err, "unequipping item")
}
