// Package gamification keeps the points ledger of users, the reward shop, badges and the leaderboard.
package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
)

type TransactionType string

const (
	TypeGrade          TransactionType = "grade"
	TypeManual         TransactionType = "manual"
	TypeBadge          TransactionType = "badge"
	TypeRewardPurchase TransactionType = "reward_purchase"
	TypeRewardRefund   TransactionType = "reward_refund"
)

// gradePoints maps a grade value to the points it earns.
var gradePoints = map[int]int{5: 10, 4: 5}

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      int             `json:"amount"`
	Type        TransactionType `json:"transaction_type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ManualAward struct {
	UserID      string `json:"user_id" validate:"required"`
	Amount      int    `json:"amount" validate:"required,min=-1000,max=1000"`
	Description string `json:"description" validate:"required,notblank,max=255"`
}

type (
	Repository interface {
		CreateTransaction(ctx context.Context, tr Transaction, exec ...core.DBExecutor) (Transaction, error)
		SumPoints(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
		QueryTransactions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Transaction, error)

		CreateReward(ctx context.Context, rw Reward, exec ...core.DBExecutor) (Reward, error)
		GetReward(ctx context.Context, id string, exec ...core.DBExecutor) (Reward, error)
		UpdateReward(ctx context.Context, rw Reward, exec ...core.DBExecutor) (Reward, error)
		QueryRewards(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]Reward, error)

		CreateRedemption(ctx context.Context, rd Redemption, exec ...core.DBExecutor) (Redemption, error)
		GetRedemption(ctx context.Context, id string, exec ...core.DBExecutor) (Redemption, error)
		UpdateRedemption(ctx context.Context, rd Redemption, exec ...core.DBExecutor) (Redemption, error)
		QueryRedemptions(ctx context.Context, filter RedemptionFilter, exec ...core.DBExecutor) ([]Redemption, error)
		// UnequipAll clears the equipped flag on every item of userID.
		UnequipAll(ctx context.Context, userID string, exec ...core.DBExecutor) (int64, error)

		CreateBadge(ctx context.Context, b Badge, exec ...core.DBExecutor) (Badge, error)
		GetBadge(ctx context.Context, id string, exec ...core.DBExecutor) (Badge, error)
		BadgeNameExists(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error)
		QueryBadges(ctx context.Context, exec ...core.DBExecutor) ([]Badge, error)
		CreateUserBadge(ctx context.Context, ub UserBadge, exec ...core.DBExecutor) (UserBadge, error)
		UserBadgeExists(ctx context.Context, userID, badgeID string, exec ...core.DBExecutor) (bool, error)
		// QueryUserBadges lists the badges earned by any of userIDs, oldest first.
		QueryUserBadges(ctx context.Context, userIDs []string, exec ...core.DBExecutor) ([]UserBadge, error)

		// Leaderboard ranks active students by their points total, highest first.
		Leaderboard(ctx context.Context, filter LeaderboardFilter, exec ...core.DBExecutor) ([]LeaderboardEntry, error)
	}

	RecordViewer interface {
		CanView(ctx context.Context, actor user.User, studentID string) error
	}

	Service struct {
		db       core.DB
		repo     Repository
		users    user.Repository
		schools  school.Repository
		viewer   RecordViewer
		policy   policy.Evaluator
		validate *validator.Validate
	}
)

func NewService(
	db core.DB,
	repo Repository,
	users user.Repository,
	schools school.Repository,
	viewer RecordViewer,
	pol policy.Evaluator,
	validate *validator.Validate,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		users:    users,
		schools:  schools,
		viewer:   viewer,
		policy:   pol,
		validate: validate,
	}
}

// AwardForGrade credits a student for a new grade: 10 points for a 5, 5 points for a 4.
// It returns the points awarded.
func (svc *Service) AwardForGrade(ctx context.Context, studentID, subjectID string, value int) (int, error) {
	points, ok := gradePoints[value]
	if !ok {
		return 0, nil
	}
	subject := subjectID
	if subj, err := svc.schools.GetSubject(ctx, subjectID); err == nil {
		subject = subj.Name
	}
	_, err := svc.repo.CreateTransaction(ctx, Transaction{
		UserID:      studentID,
		Amount:      points,
		Type:        TypeGrade,
		Description: fmt.Sprintf("Grade %d in %s", value, subject),
		CreatedAt:   core.Now(),
	})
	if err != nil {
		return 0, errors.Wrap(err, "creating grade transaction")
	}
	return points, nil
}

func (svc *Service) Award(ctx context.Context, actor user.User, ma ManualAward) (Transaction, error) {
	if err := svc.policy.Authorize(actor.Role, policy.AwardPoints); err != nil {
		return Transaction{}, err
	}
	ma.Description = core.CleanString(ma.Description)
	if err := svc.validate.Struct(ma); err != nil {
		return Transaction{}, err
	}
	if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: ma.UserID}); err != nil {
		return Transaction{}, err
	}
	tr, err := svc.repo.CreateTransaction(ctx, Transaction{
		UserID:      ma.UserID,
		Amount:      ma.Amount,
		Type:        TypeManual,
		Description: ma.Description,
		CreatedAt:   core.Now(),
	})
	return tr, errors.Wrap(err, "creating manual transaction")
}

func (svc *Service) Balance(ctx context.Context, actor user.User, userID string) (int, error) {
	if err := svc.viewer.CanView(ctx, actor, userID); err != nil {
		return 0, err
	}
	return svc.repo.SumPoints(ctx, userID)
}

func (svc *Service) History(ctx context.Context, actor user.User, userID string) ([]Transaction, error) {
	if err := svc.viewer.CanView(ctx, actor, userID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTransactions(ctx, userID)
}
