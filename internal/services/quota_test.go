package services

import (
	"context"
	"testing"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStatusCreatesDefaultEntitlement(t *testing.T) {
	h := newHarness(t)

	status, err := h.quota.Status(context.Background(), h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, status.Plan)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, testFreeLimit, status.Limit)
	assert.Equal(t, testFreeLimit, status.Remaining)
	assert.False(t, status.ResetsAt.IsZero())
}

func TestQuotaConsumeCountsDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.quota.Check(ctx, h.user.ID)
	require.NoError(t, err)
	require.NoError(t, h.quota.Consume(ctx, h.user.ID))
	require.NoError(t, h.quota.Consume(ctx, h.user.ID))

	status, err := h.quota.Status(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Used)
	assert.Equal(t, 1, status.Remaining)
}

func TestQuotaCheckFailsWhenSpent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.quota.Check(ctx, h.user.ID)
	require.NoError(t, err)
	for i := 0; i < testFreeLimit; i++ {
		require.NoError(t, h.quota.Consume(ctx, h.user.ID))
	}

	_, err = h.quota.Check(ctx, h.user.ID)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeQuotaExceeded, appErr.Code)
}

func TestQuotaSetPlanAdjustsLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.quota.SetPlan(ctx, h.user.ID, models.PlanPremium))

	status, err := h.quota.Status(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPremium, status.Plan)
	assert.Equal(t, 100, status.Limit)

	err = h.quota.SetPlan(ctx, h.user.ID, models.Plan("platinum"))
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeValidation, appErr.Code)
}
