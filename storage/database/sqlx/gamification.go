package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/gamification"
)

const transactionColumns = "id, user_id, amount, transaction_type, description, created_at"

type transactionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Amount      int       `db:"amount"`
	Type        string    `db:"transaction_type"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type pointsRepository struct {
	baseRepository
}

var _ gamification.Repository = (*pointsRepository)(nil) // interface compliance check

func NewPointsRepository(exec core.DBExecutor) *pointsRepository {
	return &pointsRepository{baseRepository{exec: exec}}
}

func (repo pointsRepository) CreateTransaction(ctx context.Context, tr gamification.Transaction, exec ...core.DBExecutor) (gamification.Transaction, error) {
	tr.ID = newID()
	tr.CreatedAt = tr.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO point_transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		tr.ID, tr.UserID, tr.Amount, string(tr.Type), tr.Description, tr.CreatedAt)
	return tr, errors.Wrap(err, "inserting point transaction")
}

func (repo pointsRepository) SumPoints(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	var total int
	err := get(ctx, repo.getExec(exec), &total,
		"SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = ?", userID)
	return total, errors.Wrap(err, "summing points")
}

func (repo pointsRepository) QueryTransactions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]gamification.Transaction, error) {
	var rows []transactionRow
	q := "SELECT " + transactionColumns + " FROM point_transactions WHERE user_id = ? ORDER BY created_at DESC, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying point transactions")
	}
	list := make([]gamification.Transaction, 0, len(rows))
	for _, r := range rows {
		list = append(list, gamification.Transaction{
			ID:          r.ID,
			UserID:      r.UserID,
			Amount:      r.Amount,
			Type:        gamification.TransactionType(r.Type),
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		})
	}
	return list, nil
}

const (
	rewardColumns     = "id, name, description, cost, reward_type, icon, is_active, created_at"
	redemptionColumns = "r.id, r.user_id, r.reward_id, rw.name AS reward_name, r.cost, r.status, r.is_equipped, r.created_at, r.processed_at"
	badgeColumns      = "id, name, description, icon, points_reward, created_at"
)

type rewardRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Cost        int       `db:"cost"`
	Type        string    `db:"reward_type"`
	Icon        string    `db:"icon"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row rewardRow) reward() gamification.Reward {
	return gamification.Reward{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Cost:        row.Cost,
		Type:        gamification.RewardType(row.Type),
		Icon:        row.Icon,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
	}
}

type redemptionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	RewardID    string    `db:"reward_id"`
	RewardName  string    `db:"reward_name"`
	Cost        int       `db:"cost"`
	Status      string    `db:"status"`
	IsEquipped  bool      `db:"is_equipped"`
	CreatedAt   time.Time `db:"created_at"`
	ProcessedAt null.Time `db:"processed_at"`
}

func (row redemptionRow) redemption() gamification.Redemption {
	return gamification.Redemption{
		ID:          row.ID,
		UserID:      row.UserID,
		RewardID:    row.RewardID,
		RewardName:  row.RewardName,
		Cost:        row.Cost,
		Status:      gamification.RedemptionStatus(row.Status),
		IsEquipped:  row.IsEquipped,
		CreatedAt:   row.CreatedAt,
		ProcessedAt: row.ProcessedAt,
	}
}

type badgeRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Description  string    `db:"description"`
	Icon         string    `db:"icon"`
	PointsReward int       `db:"points_reward"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row badgeRow) badge() gamification.Badge {
	return gamification.Badge{
		ID:           row.ID,
		Name:         row.Name,
		Description:  row.Description,
		Icon:         row.Icon,
		PointsReward: row.PointsReward,
		CreatedAt:    row.CreatedAt,
	}
}

type userBadgeRow struct {
	UserID   string    `db:"user_id"`
	BadgeID  string    `db:"badge_id"`
	Name     string    `db:"name"`
	Icon     string    `db:"icon"`
	EarnedAt time.Time `db:"earned_at"`
}

type leaderboardRow struct {
	StudentID string      `db:"id"`
	Name      string      `db:"name"`
	ClassID   null.String `db:"class_id"`
	Points    int         `db:"points"`
}

// Rewards

func (repo pointsRepository) CreateReward(ctx context.Context, rw gamification.Reward, exec ...core.DBExecutor) (gamification.Reward, error) {
	rw.ID = newID()
	rw.CreatedAt = rw.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO rewards ("+rewardColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rw.ID, rw.Name, rw.Description, rw.Cost, string(rw.Type), rw.Icon, rw.IsActive, rw.CreatedAt)
	return rw, errors.Wrap(err, "inserting reward")
}

func (repo pointsRepository) GetReward(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Reward, error) {
	var row rewardRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+rewardColumns+" FROM rewards WHERE id = ?", id); err != nil {
		return gamification.Reward{}, trapNoRowsErr(err, "reward", id, "finding reward")
	}
	return row.reward(), nil
}

func (repo pointsRepository) UpdateReward(ctx context.Context, rw gamification.Reward, exec ...core.DBExecutor) (gamification.Reward, error) {
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE rewards SET name = ?, description = ?, cost = ?, is_active = ? WHERE id = ?",
		rw.Name, rw.Description, rw.Cost, rw.IsActive, rw.ID)
	if err != nil {
		return gamification.Reward{}, errors.Wrap(err, "updating reward")
	}
	if n == 0 {
		return gamification.Reward{}, core.NewNotFoundError("reward", rw.ID)
	}
	return rw, nil
}

// QueryRewards lists rewards from the cheapest.
func (repo pointsRepository) QueryRewards(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]gamification.Reward, error) {
	w := &where{}
	if activeOnly {
		w.add("is_active = ?", true)
	}
	var rows []rewardRow
	q := "SELECT " + rewardColumns + " FROM rewards" + w.String() + " ORDER BY cost, name"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying rewards")
	}
	list := make([]gamification.Reward, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.reward())
	}
	return list, nil
}

// Redemptions

func (repo pointsRepository) CreateRedemption(ctx context.Context, rd gamification.Redemption, exec ...core.DBExecutor) (gamification.Redemption, error) {
	rd.ID = newID()
	rd.CreatedAt = rd.CreatedAt.UTC()
	if rd.ProcessedAt.Valid {
		rd.ProcessedAt = null.TimeFrom(rd.ProcessedAt.Time.UTC())
	}
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO redemptions (id, user_id, reward_id, cost, status, is_equipped, created_at, processed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rd.ID, rd.UserID, rd.RewardID, rd.Cost, string(rd.Status), rd.IsEquipped, rd.CreatedAt, rd.ProcessedAt)
	return rd, errors.Wrap(err, "inserting redemption")
}

func (repo pointsRepository) GetRedemption(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Redemption, error) {
	var row redemptionRow
	q := "SELECT " + redemptionColumns + " FROM redemptions r JOIN rewards rw ON rw.id = r.reward_id WHERE r.id = ?"
	if err := get(ctx, repo.getExec(exec), &row, q, id); err != nil {
		return gamification.Redemption{}, trapNoRowsErr(err, "redemption", id, "finding redemption")
	}
	return row.redemption(), nil
}

func (repo pointsRepository) UpdateRedemption(ctx context.Context, rd gamification.Redemption, exec ...core.DBExecutor) (gamification.Redemption, error) {
	if rd.ProcessedAt.Valid {
		rd.ProcessedAt = null.TimeFrom(rd.ProcessedAt.Time.UTC())
	}
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE redemptions SET status = ?, is_equipped = ?, processed_at = ? WHERE id = ?",
		string(rd.Status), rd.IsEquipped, rd.ProcessedAt, rd.ID)
	if err != nil {
		return gamification.Redemption{}, errors.Wrap(err, "updating redemption")
	}
	if n == 0 {
		return gamification.Redemption{}, core.NewNotFoundError("redemption", rd.ID)
	}
	return rd, nil
}

// QueryRedemptions returns the newest purchases first.
func (repo pointsRepository) QueryRedemptions(ctx context.Context, filter gamification.RedemptionFilter, exec ...core.DBExecutor) ([]gamification.Redemption, error) {
	w := &where{}
	if filter.UserID != "" {
		w.add("r.user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		w.add("r.status = ?", string(filter.Status))
	}

	var rows []redemptionRow
	q := "SELECT " + redemptionColumns + " FROM redemptions r JOIN rewards rw ON rw.id = r.reward_id" +
		w.String() + " ORDER BY r.created_at DESC, r.id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying redemptions")
	}
	list := make([]gamification.Redemption, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.redemption())
	}
	return list, nil
}

func (repo pointsRepository) UnequipAll(ctx context.Context, userID string, exec ...core.DBExecutor) (int64, error) {
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE redemptions SET is_equipped = ? WHERE user_id = ? AND is_equipped = ?", false, userID, true)
	return n, errors.Wrap(err, "unequipping redemptions")
}

// Badges

func (repo pointsRepository) CreateBadge(ctx context.Context, b gamification.Badge, exec ...core.DBExecutor) (gamification.Badge, error) {
	b.ID = newID()
	b.CreatedAt = b.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO badges ("+badgeColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		b.ID, b.Name, b.Description, b.Icon, b.PointsReward, b.CreatedAt)
	return b, errors.Wrap(err, "inserting badge")
}

func (repo pointsRepository) GetBadge(ctx context.Context, id string, exec ...core.DBExecutor) (gamification.Badge, error) {
	var row badgeRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+badgeColumns+" FROM badges WHERE id = ?", id); err != nil {
		return gamification.Badge{}, trapNoRowsErr(err, "badge", id, "finding badge")
	}
	return row.badge(), nil
}

func (repo pointsRepository) BadgeNameExists(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), "SELECT id FROM badges WHERE LOWER(name) = ?", strings.ToLower(name))
}

func (repo pointsRepository) QueryBadges(ctx context.Context, exec ...core.DBExecutor) ([]gamification.Badge, error) {
	var rows []badgeRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT "+badgeColumns+" FROM badges ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	list := make([]gamification.Badge, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.badge())
	}
	return list, nil
}

func (repo pointsRepository) CreateUserBadge(ctx context.Context, ub gamification.UserBadge, exec ...core.DBExecutor) (gamification.UserBadge, error) {
	ub.EarnedAt = ub.EarnedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)",
		ub.UserID, ub.BadgeID, ub.EarnedAt)
	return ub, errors.Wrap(err, "inserting user badge")
}

func (repo pointsRepository) UserBadgeExists(ctx context.Context, userID, badgeID string, exec ...core.DBExecutor) (bool, error) {
	return exists(ctx, repo.getExec(exec), "SELECT user_id FROM user_badges WHERE user_id = ? AND badge_id = ?", userID, badgeID)
}

func (repo pointsRepository) QueryUserBadges(ctx context.Context, userIDs []string, exec ...core.DBExecutor) ([]gamification.UserBadge, error) {
	w := &where{}
	if err := w.in("ub.user_id", userIDs); err != nil {
		return nil, err
	}

	var rows []userBadgeRow
	q := "SELECT ub.user_id, ub.badge_id, b.name, b.icon, ub.earned_at FROM user_badges ub JOIN badges b ON b.id = ub.badge_id" +
		w.String() + " ORDER BY ub.earned_at, b.name"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying user badges")
	}
	list := make([]gamification.UserBadge, 0, len(rows))
	for _, r := range rows {
		list = append(list, gamification.UserBadge{
			UserID:   r.UserID,
			BadgeID:  r.BadgeID,
			Name:     r.Name,
			Icon:     r.Icon,
			EarnedAt: r.EarnedAt,
		})
	}
	return list, nil
}

// Leaderboard

func (repo pointsRepository) Leaderboard(ctx context.Context, filter gamification.LeaderboardFilter, exec ...core.DBExecutor) ([]gamification.LeaderboardEntry, error) {
	w := &where{}
	w.add("u.role = ?", string(core.RoleStudent))
	w.add("u.is_active = ?", true)
	if filter.ClassID != "" {
		w.add("u.class_id = ?", filter.ClassID)
	}

	var rows []leaderboardRow
	q := "SELECT u.id, u.name, u.class_id, COALESCE(SUM(pt.amount), 0) AS points " +
		"FROM users u LEFT JOIN point_transactions pt ON pt.user_id = u.id" + w.String() +
		" GROUP BY u.id, u.name, u.class_id ORDER BY points DESC, u.name, u.id LIMIT ?"
	args := append(w.args, filter.Limit)
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}
	list := make([]gamification.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		list = append(list, gamification.LeaderboardEntry{
			StudentID: r.StudentID,
			Name:      r.Name,
			ClassID:   r.ClassID.String,
			Points:    r.Points,
		})
	}
	return list, nil
}
