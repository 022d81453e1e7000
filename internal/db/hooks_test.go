package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHooksFollowOutcome(t *testing.T) {
	var committed, rolledBack int

	ctx, finish := WithTxHooks(context.Background())
	AfterCommit(ctx, func() { committed++ })
	OnRollback(ctx, func() { rolledBack++ })
	finish(nil)
	finish(nil)
	assert.Equal(t, 1, committed)
	assert.Equal(t, 0, rolledBack)

	ctx, finish = WithTxHooks(context.Background())
	AfterCommit(ctx, func() { committed++ })
	OnRollback(ctx, func() { rolledBack++ })
	finish(errors.New("boom"))
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, rolledBack)
}

func TestHooksOutsideTransaction(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)

	OnRollback(context.Background(), func() { t.Fatal("rollback hook must not run without a transaction") })
}
