package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsphere/core/gamification"
)

func Test_gamificationApi(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)
	teacherToken := getToken(t, f, f.teacher)
	studentToken := getToken(t, f, f.student)
	parentToken := getToken(t, f, f.parent)

	create := func(path, token string, body interface{}, v interface{}) {
		t.Helper()
		rec := f.do(httpTest{method: http.MethodPost, path: path, token: token, body: marchallObj(t, body)})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, v)
	}

	var sticker, recess gamification.Reward
	create("/v1/rewards", adminToken, gamification.NewReward{Name: "Sticker", Cost: 10}, &sticker)
	create("/v1/rewards", adminToken, gamification.NewReward{Name: "Extra recess", Cost: 40, Type: gamification.RewardPrivilege}, &recess)

	var tr gamification.Transaction
	create("/v1/points", teacherToken, gamification.ManualAward{UserID: f.student.ID, Amount: 25, Description: "Quiz"}, &tr)

	var bookworm gamification.Badge
	create("/v1/badges", adminToken, gamification.NewBadge{Name: "Bookworm", PointsReward: 5}, &bookworm)
	var earned gamification.UserBadge
	create("/v1/badges/"+bookworm.ID+"/grant", teacherToken, gamification.BadgeGrant{UserID: f.student.ID}, &earned)
	assert.Equal(t, "Bookworm", earned.Name)

	var pending gamification.Redemption
	create("/v1/rewards/"+sticker.ID+"/redeem", studentToken, nil, &pending)
	assert.Equal(t, gamification.StatusPending, pending.Status)
	assert.Equal(t, "Sticker", pending.RewardName)

	tests := []httpTest{
		{
			name: "teachers cannot create rewards", method: http.MethodPost, path: "/v1/rewards", token: teacherToken,
			body:     marchallObj(t, gamification.NewReward{Name: "Pen", Cost: 1}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied: teacher cannot manage rewards"}),
		},
		{
			name: "not enough points", method: http.MethodPost, path: "/v1/rewards/" + recess.ID + "/redeem", token: studentToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"cost": "not enough points: 40 needed, 20 available"}`),
		},
		{
			name: "parents cannot redeem", method: http.MethodPost, path: "/v1/rewards/" + sticker.ID + "/redeem", token: parentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "unknown reward", method: http.MethodPost, path: "/v1/rewards/unknown/redeem", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "reward not found"}),
		},
		{
			name: "pending items cannot be equipped", method: http.MethodPost, path: "/v1/redemptions/" + pending.ID + "/equip", token: studentToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"status": "only approved items can be equipped"}`),
		},
		{
			name: "teachers cannot approve", method: http.MethodPost, path: "/v1/redemptions/" + pending.ID + "/approve", token: teacherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "badge granted twice", method: http.MethodPost, path: "/v1/badges/" + bookworm.ID + "/grant", token: teacherToken,
			body: marchallObj(t, gamification.BadgeGrant{UserID: f.student.ID}), wantCode: http.StatusBadRequest,
		},
		{name: "leaderboard limit too high", path: "/v1/leaderboard?limit=1000", token: parentToken, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("shop", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/rewards", token: studentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var shop gamification.Shop
		unmarshal(t, rec, &shop)
		assert.Equal(t, 20, shop.Balance)
		assert.Len(t, shop.Rewards, 2)
	})

	t.Run("approve and equip", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPost, path: "/v1/redemptions/" + pending.ID + "/approve", token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(httpTest{method: http.MethodPost, path: "/v1/redemptions/" + pending.ID + "/equip", token: studentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rd gamification.Redemption
		unmarshal(t, rec, &rd)
		assert.True(t, rd.IsEquipped)
		assert.Equal(t, gamification.StatusApproved, rd.Status)
	})

	t.Run("parent sees the inventory and badges of their child", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/redemptions?user_id=" + f.student.ID, token: parentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []gamification.Redemption
		unmarshal(t, rec, &items)
		require.Len(t, items, 1)
		assert.Equal(t, pending.ID, items[0].ID)

		rec = f.do(httpTest{path: "/v1/users/" + f.student.ID + "/badges", token: parentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var badges []gamification.UserBadge
		unmarshal(t, rec, &badges)
		require.Len(t, badges, 1)
		assert.Equal(t, bookworm.ID, badges[0].BadgeID)
	})

	t.Run("leaderboard", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/leaderboard?class_id=" + f.classA.ID, token: parentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var entries []gamification.LeaderboardEntry
		unmarshal(t, rec, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, "Alice", entries[0].Name)
		assert.Equal(t, 20, entries[0].Points)
		require.Len(t, entries[0].Badges, 1)
	})
}
