package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/po-approval-route/internal/application/dispatcher"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

func TestApprovalService_Confirm_WithoutTeam(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.newOrder(t, "250", nil)

	confirmed, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatePurchase, confirmed.State)
	assert.NotNil(t, confirmed.DateApprove)
	assert.Empty(t, confirmed.Approvers)
	assert.Contains(t, confirmed.FollowerIDs, f.vendor.ID)

	messages, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestApprovalService_Approve_WithoutTeamUsesNativePath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.newOrder(t, "250", nil)

	_, err := f.approvals.Approve(ctx, order.ID, f.actor(f.carol), false)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))

	approved, err := f.approvals.Approve(ctx, order.ID, f.actor(f.carol), true)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatePurchase, approved.State)
	assert.NotNil(t, approved.DateApprove)
}

func TestApprovalService_Confirm_OnlyMatchingBandIsRouted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false,
		rule(f.alice, 10, "0", "1000"),
		rule(f.bob, 20, "1000", ""),
	)
	order := f.newOrder(t, "1500", team)

	confirmed, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStateToApprove, confirmed.State)
	require.Len(t, confirmed.Approvers, 1)
	assert.Equal(t, f.bob.ID, confirmed.Approvers[0].UserID)
	assert.Equal(t, entity.ApproverStatePending, confirmed.Approvers[0].State)
	assert.Contains(t, confirmed.FollowerIDs, f.vendor.ID)
	assert.Contains(t, confirmed.FollowerIDs, f.bob.PartnerID)

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateToApprove, stored.State)
	require.Len(t, stored.Approvers, 1)
	assert.Equal(t, entity.ApproverStatePending, stored.Approvers[0].State)
	assert.Equal(t, f.bob.ID, stored.CurrentApprover().UserID)
	assert.Nil(t, stored.NextApprover())

	messages, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)
	sent := notificationsOf(messages)
	require.Len(t, sent, 1)
	assert.Equal(t, "PO Approval: "+order.Name, sent[0].Subject)
	assert.Equal(t, entity.TemplateRequestToApprove, sent[0].Template)
	assert.Equal(t, f.owner.ID, sent[0].AuthorID)
	assert.Equal(t, []int64{f.bob.PartnerID}, sent[0].RecipientIDs)
}

func TestApprovalService_Confirm_NoMatchingRulesApprovesAtOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "5000", ""))
	order := f.newOrder(t, "100", team)

	confirmed, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatePurchase, confirmed.State)
	assert.NotNil(t, confirmed.DateApprove)
	assert.Empty(t, confirmed.Approvers)
	assert.Contains(t, confirmed.FollowerIDs, f.vendor.ID)
}

func TestApprovalService_Confirm_SkipsOrdersPastQuotation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.newOrder(t, "100", nil)

	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	again, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatePurchase, again.State)
}

func TestApprovalService_Confirm_TeamRequiredByCompany(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.newOrder(t, "100", nil)

	_, err := f.directory.SetApprovalRoute(ctx, f.company.ID, entity.ApprovalRouteRequired)
	require.NoError(t, err)

	_, err = f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateDraft, stored.State)
}

func TestRouteGenerator_AmountBandIsInclusive(t *testing.T) {
	tests := []struct {
		amount  string
		matches bool
	}{
		{"99.99", false},
		{"100", true},
		{"300", true},
		{"500", true},
		{"500.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			f := newFixture(t, nil)
			team := f.newTeam(t, false, rule(f.alice, 10, "100", "500"))
			order := f.newOrder(t, tt.amount, team)

			routed, err := f.approvals.RegenerateRoute(context.Background(), order.ID, f.actor(f.owner))
			require.NoError(t, err)

			if tt.matches {
				require.Len(t, routed.Approvers, 1)
				assert.Equal(t, f.alice.ID, routed.Approvers[0].UserID)
			} else {
				assert.Empty(t, routed.Approvers)
			}
		})
	}
}

func TestRouteGenerator_SnapshotsRulesInSequenceOrder(t *testing.T) {
	f := newFixture(t, nil)
	lockRule := rule(f.carol, 5, "0", "")
	lockRule.LockAmountTotal = true
	team := f.newTeam(t, false,
		rule(f.bob, 30, "0", ""),
		rule(f.alice, 10, "0", ""),
		lockRule,
		rule(f.admin, 20, "0", "10"),
	)
	order := f.newOrder(t, "50", team)

	routed, err := f.approvals.RegenerateRoute(context.Background(), order.ID, f.actor(f.owner))
	require.NoError(t, err)

	require.Len(t, routed.Approvers, 3)
	assert.Equal(t, []int64{f.carol.ID, f.alice.ID, f.bob.ID},
		[]int64{routed.Approvers[0].UserID, routed.Approvers[1].UserID, routed.Approvers[2].UserID})

	first := routed.Approvers[0]
	assert.Equal(t, 5, first.Sequence)
	assert.Equal(t, lockRule.Role, first.Role)
	assert.True(t, first.LockAmountTotal)
	assert.Equal(t, team.ID, first.TeamID)
	require.NotNil(t, first.SourceRuleID)
	assert.Equal(t, lockRule.ID, *first.SourceRuleID)
	for _, a := range routed.Approvers {
		assert.Equal(t, entity.ApproverStateToApprove, a.State)
	}
}

func TestRouteGenerator_ConvertsBandToOrderCurrency(t *testing.T) {
	tests := []struct {
		amount  string
		matches bool
	}{
		{"49.99", false},
		{"50", true},
		{"100", true},
		{"100.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			f := newFixture(t, nil)
			// 100..200 USD is 50..100 EUR
			team := f.newTeam(t, false, rule(f.alice, 10, "100", "200"))
			order := &entity.PurchaseOrder{
				CompanyID:    f.company.ID,
				PartnerID:    f.vendor.ID,
				TeamID:       &team.ID,
				CurrencyCode: "EUR",
				AmountTotal:  decimal.RequireFromString(tt.amount),
			}
			require.NoError(t, f.approvals.CreateOrder(context.Background(), order, f.actor(f.owner)))

			routed, err := f.approvals.RegenerateRoute(context.Background(), order.ID, f.actor(f.owner))
			require.NoError(t, err)
			assert.Equal(t, tt.matches, len(routed.Approvers) == 1)
		})
	}
}

func TestRouteGenerator_CustomConditionFiltersRules(t *testing.T) {
	f := newFixture(t, nil)
	f.evaluator.results["order.AmountTotal > 10000"] = false
	f.evaluator.results["user.Login == \"owner\""] = true

	skipped := rule(f.alice, 10, "0", "")
	skipped.CustomCondition = "order.AmountTotal > 10000"
	kept := rule(f.bob, 20, "0", "")
	kept.CustomCondition = "user.Login == \"owner\""
	team := f.newTeam(t, false, skipped, kept)
	order := f.newOrder(t, "100", team)

	routed, err := f.approvals.RegenerateRoute(context.Background(), order.ID, f.actor(f.owner))
	require.NoError(t, err)
	require.Len(t, routed.Approvers, 1)
	assert.Equal(t, f.bob.ID, routed.Approvers[0].UserID)
}

func TestApprovalService_RegenerateRoute_ReplacesPreviousRoute(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", "1000"), rule(f.bob, 20, "0", ""))
	order := f.newOrder(t, "500", team)

	first, err := f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	require.Len(t, first.Approvers, 2)
	oldIDs := map[int64]bool{first.Approvers[0].ID: true, first.Approvers[1].ID: true}

	_, err = f.approvals.UpdateAmountTotal(ctx, order.ID, decimal.NewFromInt(2000), f.actor(f.owner))
	require.NoError(t, err)

	second, err := f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	require.Len(t, second.Approvers, 1)
	assert.Equal(t, f.bob.ID, second.Approvers[0].UserID)

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Approvers, 1)
	for _, a := range stored.Approvers {
		assert.False(t, oldIDs[a.ID], "approver %d survived regeneration", a.ID)
	}
}

func TestApprovalService_RegenerateRoute_ConditionErrorRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	order := f.newOrder(t, "500", team)

	first, err := f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	require.Len(t, first.Approvers, 1)
	previousID := first.Approvers[0].ID

	broken := rule(f.bob, 20, "0", "")
	broken.CustomCondition = "order.Missing > 1"
	f.evaluator.evalErrs[broken.CustomCondition] = errors.New("unknown field Missing")
	require.NoError(t, f.teams.AddRule(ctx, team.ID, broken))

	_, err = f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
	assert.Contains(t, apperr.MessageOf(err), "Wrong condition code defined for")
	assert.Contains(t, apperr.MessageOf(err), "unknown field Missing")

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Approvers, 1)
	assert.Equal(t, previousID, stored.Approvers[0].ID)
}

func TestApprovalService_Confirm_ConditionErrorLeavesOrderUnrouted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	broken := rule(f.alice, 10, "0", "")
	broken.CustomCondition = "boom"
	f.evaluator.evalErrs["boom"] = errors.New("boom")
	team := f.newTeam(t, false, broken)
	order := f.newOrder(t, "500", team)

	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.Error(t, err)

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateDraft, stored.State)
	assert.Empty(t, stored.Approvers)
	assert.Empty(t, stored.FollowerIDs)
}

func TestApprovalService_Approve_AdvancesChain(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""), rule(f.bob, 20, "0", ""))
	order := f.newOrder(t, "800", team)

	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	assert.Equal(t, 1, f.pendingCount(order.ID))

	// Bob is not the current approver yet
	unchanged, err := f.approvals.Approve(ctx, order.ID, f.actor(f.bob), false)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, unchanged.CurrentApprover().UserID)
	assert.Equal(t, 1, f.pendingCount(order.ID))

	afterAlice, err := f.approvals.Approve(ctx, order.ID, f.actor(f.alice), false)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateToApprove, afterAlice.State)
	assert.Equal(t, entity.ApproverStateApproved, afterAlice.Approvers[0].State)
	assert.Equal(t, entity.ApproverStatePending, afterAlice.Approvers[1].State)
	assert.Equal(t, 1, f.pendingCount(order.ID))

	done, err := f.approvals.Approve(ctx, order.ID, f.actor(f.bob), false)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatePurchase, done.State)
	assert.NotNil(t, done.DateApprove)
	assert.Equal(t, 0, f.pendingCount(order.ID))

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	for _, a := range stored.Approvers {
		assert.Equal(t, entity.ApproverStateApproved, a.State)
	}

	messages, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)

	var notes []string
	for _, m := range messages {
		if m.Kind == entity.MessageKindNote {
			notes = append(notes, m.Body)
		}
	}
	assert.Equal(t, []string{"PO approved by Alice", "PO approved by Bob"}, notes)

	sent := notificationsOf(messages)
	require.Len(t, sent, 3)
	assert.Equal(t, []int64{f.alice.PartnerID}, sent[0].RecipientIDs)
	assert.Equal(t, []int64{f.bob.PartnerID}, sent[1].RecipientIDs)
	assert.Equal(t, "PO Approved: "+order.Name, sent[2].Subject)
	assert.Equal(t, entity.TemplateOrderApproval, sent[2].Template)
	assert.Equal(t, []int64{f.owner.PartnerID}, sent[2].RecipientIDs)
}

func TestApprovalService_Approve_UnauthorizedIsSilentNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	order := f.newOrder(t, "800", team)

	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	before, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)

	result, err := f.approvals.Approve(ctx, order.ID, f.actor(f.carol), false)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateToApprove, result.State)

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateToApprove, stored.State)
	assert.Equal(t, entity.ApproverStatePending, stored.Approvers[0].State)

	after, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestApprovalService_Approve_Superuser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	order := f.newOrder(t, "800", team)

	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	approved, err := f.approvals.Approve(ctx, order.ID, f.actor(f.admin), false)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatePurchase, approved.State)
	assert.Equal(t, entity.ApproverStateApproved, approved.Approvers[0].State)
}

func TestApprovalService_Approve_NoCurrentApproverIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	order := f.newOrder(t, "800", team)

	result, err := f.approvals.Approve(context.Background(), order.ID, f.actor(f.admin), false)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateDraft, result.State)
}

func TestApprovalService_SendToApprove_Preconditions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	t.Run("outstanding approver", func(t *testing.T) {
		team := f.newTeam(t, false, rule(f.alice, 10, "0", ""), rule(f.bob, 20, "0", ""))
		order := f.newOrder(t, "100", team)
		_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
		require.NoError(t, err)

		_, err = f.approvals.SendToApprove(ctx, order.ID, f.actor(f.owner))
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
		assert.Equal(t, "Unable to send approval request to next approver. The order must be approved by Alice", apperr.MessageOf(err))
		assert.Equal(t, 1, f.pendingCount(order.ID))
	})

	t.Run("order not waiting for approval", func(t *testing.T) {
		team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
		order := f.newOrder(t, "100", team)
		_, err := f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
		require.NoError(t, err)

		_, err = f.approvals.SendToApprove(ctx, order.ID, f.actor(f.owner))
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
		assert.Contains(t, apperr.MessageOf(err), "is not waiting for approval")

		stored, err := f.approvals.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OrderStateDraft, stored.State)
		assert.Equal(t, 0, f.pendingCount(order.ID))
		assert.Empty(t, f.sender.messages())
	})

	t.Run("no approvers left", func(t *testing.T) {
		team := f.newTeam(t, false, rule(f.alice, 10, "1000", ""))
		order := f.newOrder(t, "100", team)
		_, err := f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
		require.NoError(t, err)

		routed, err := f.approvals.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		require.Empty(t, routed.Approvers)
		routed.State = entity.OrderStateToApprove

		err = f.approvals.(*approvalServiceImpl).sendToApprove(ctx, routed, f.actor(f.owner))
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
		assert.Equal(t, "Unable to send approval request to next approver. There are no approvers in the selected PO team.", apperr.MessageOf(err))
	})
}

func TestApprovalService_CancelledOrderRouteIsFrozen(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""), rule(f.bob, 20, "0", ""))
	order := f.newOrder(t, "100", team)
	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	_, err = f.approvals.Cancel(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	before, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)

	result, err := f.approvals.Approve(ctx, order.ID, f.actor(f.alice), false)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateCancel, result.State)

	_, err = f.approvals.Reject(ctx, order.ID, f.actor(f.alice), "late")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))

	_, err = f.approvals.SendToApprove(ctx, order.ID, f.actor(f.owner))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateCancel, stored.State)
	require.Len(t, stored.Approvers, 2)
	assert.Equal(t, entity.ApproverStatePending, stored.Approvers[0].State)
	assert.Equal(t, entity.ApproverStateToApprove, stored.Approvers[1].State)

	after, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestApprovalService_UpdateAmountTotal_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("team lock after route generated", func(t *testing.T) {
		f := newFixture(t, nil)
		team := f.newTeam(t, true, rule(f.alice, 10, "0", ""))
		order := f.newOrder(t, "100", team)
		_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
		require.NoError(t, err)

		_, err = f.approvals.UpdateAmountTotal(ctx, order.ID, decimal.NewFromInt(120), f.actor(f.owner))
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
		assert.Contains(t, apperr.MessageOf(err), "It is locked after generated approval route.")

		// Writing the same value is not a change
		_, err = f.approvals.UpdateAmountTotal(ctx, order.ID, decimal.RequireFromString("100.00"), f.actor(f.owner))
		assert.NoError(t, err)
	})

	t.Run("approval with lock flag", func(t *testing.T) {
		f := newFixture(t, nil)
		locking := rule(f.alice, 10, "0", "")
		locking.LockAmountTotal = true
		team := f.newTeam(t, false, locking, rule(f.bob, 20, "0", ""))
		order := f.newOrder(t, "100", team)
		_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
		require.NoError(t, err)

		// Not locked before the flagged approver has approved
		_, err = f.approvals.UpdateAmountTotal(ctx, order.ID, decimal.NewFromInt(110), f.actor(f.owner))
		require.NoError(t, err)

		_, err = f.approvals.Approve(ctx, order.ID, f.actor(f.alice), false)
		require.NoError(t, err)

		_, err = f.approvals.UpdateAmountTotal(ctx, order.ID, decimal.NewFromInt(120), f.actor(f.owner))
		require.Error(t, err)
		assert.Contains(t, apperr.MessageOf(err), "It is locked after received approval.")

		stored, err := f.approvals.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.AmountTotal.Equal(decimal.NewFromInt(110)))
	})

	t.Run("draft is editable", func(t *testing.T) {
		f := newFixture(t, nil)
		team := f.newTeam(t, true, rule(f.alice, 10, "0", ""))
		order := f.newOrder(t, "100", team)
		_, err := f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
		require.NoError(t, err)

		updated, err := f.approvals.UpdateAmountTotal(ctx, order.ID, decimal.NewFromInt(150), f.actor(f.owner))
		require.NoError(t, err)
		assert.True(t, updated.AmountTotal.Equal(decimal.NewFromInt(150)))
	})
}

func TestApprovalService_Reject(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""), rule(f.bob, 20, "0", ""))
	order := f.newOrder(t, "100", team)
	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	_, err = f.approvals.Reject(ctx, order.ID, f.actor(f.carol), "too expensive")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
	assert.Contains(t, apperr.MessageOf(err), "can only be rejected by Alice")

	rejected, err := f.approvals.Reject(ctx, order.ID, f.actor(f.alice), "too expensive")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateCancel, rejected.State)
	assert.Equal(t, entity.ApproverStateRejected, rejected.Approvers[0].State)
	assert.Equal(t, entity.ApproverStateToApprove, rejected.Approvers[1].State)

	messages, err := f.notifications.ListMessages(ctx, order.ID)
	require.NoError(t, err)
	sent := notificationsOf(messages)
	last := sent[len(sent)-1]
	assert.Equal(t, entity.TemplateOrderRejected, last.Template)
	assert.Equal(t, "PO rejected by Alice: too expensive", last.Body)
	assert.Equal(t, []int64{f.owner.PartnerID}, last.RecipientIDs)

	// A rejected approver never changes again; a new confirmation builds a new route
	draft, err := f.approvals.ResetToDraft(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateDraft, draft.State)

	reconfirmed, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	require.Len(t, reconfirmed.Approvers, 2)
	assert.Equal(t, entity.ApproverStatePending, reconfirmed.Approvers[0].State)
	assert.NotEqual(t, rejected.Approvers[0].ID, reconfirmed.Approvers[0].ID)
}

func TestApprovalService_CancelAndLock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.newOrder(t, "100", nil)

	_, err := f.approvals.ResetToDraft(ctx, order.ID, f.actor(f.owner))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))

	_, err = f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	locked, err := f.approvals.Lock(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStateDone, locked.State)

	_, err = f.approvals.Cancel(ctx, order.ID, f.actor(f.owner))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
}

func TestApprovalService_SetOrderTeam(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	open := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	restricted := f.newTeam(t, false, rule(f.bob, 10, "0", ""))
	restricted.OnlyMembers = true
	require.NoError(t, f.teams.UpdateTeam(ctx, restricted))
	_, err := f.teams.SetMembers(ctx, restricted.ID, []int64{f.alice.ID})
	require.NoError(t, err)

	order := f.newOrder(t, "100", open)
	_, err = f.approvals.RegenerateRoute(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	_, err = f.approvals.SetOrderTeam(ctx, order.ID, &restricted.ID, f.actor(f.carol))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	// The leader may select a members-only team; the old route is discarded
	changed, err := f.approvals.SetOrderTeam(ctx, order.ID, &restricted.ID, f.actor(f.owner))
	require.NoError(t, err)
	assert.Equal(t, restricted.ID, *changed.TeamID)
	assert.Empty(t, changed.Approvers)

	stored, err := f.approvals.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Approvers)

	_, err = f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)
	_, err = f.approvals.SetOrderTeam(ctx, order.ID, nil, f.actor(f.owner))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPolicyViolation))
}

func TestApprovalService_History(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	order := f.newOrder(t, "100", team)
	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	history, err := f.approvals.History(ctx, order.ID)
	require.NoError(t, err)

	var actions []string
	for _, h := range history {
		actions = append(actions, h.ActionType)
	}
	assert.Equal(t, []string{
		entity.ActionCreate,
		entity.ActionGenerateRoute,
		entity.ActionConfirm,
		entity.ActionRequestApprove,
	}, actions)

	_, err = f.approvals.History(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestApprovalService_NotificationsDeliveredAfterCommit(t *testing.T) {
	d := dispatcher.NewDispatcher()
	f := newFixture(t, d)
	ctx := context.Background()

	team := f.newTeam(t, false, rule(f.alice, 10, "0", ""))
	order := f.newOrder(t, "100", team)
	_, err := f.approvals.Confirm(ctx, order.ID, f.actor(f.owner))
	require.NoError(t, err)

	broken := rule(f.bob, 10, "0", "")
	broken.CustomCondition = "boom"
	f.evaluator.evalErrs["boom"] = errors.New("boom")
	brokenTeam := f.newTeam(t, false, broken)
	failing := f.newOrder(t, "100", brokenTeam)
	_, err = f.approvals.Confirm(ctx, failing.ID, f.actor(f.owner))
	require.Error(t, err)

	require.NoError(t, d.Close())

	sent := f.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, f.alice.PartnerID, sent[0].partnerID)
	assert.Equal(t, "PO Approval: "+order.Name, sent[0].subject)
}
