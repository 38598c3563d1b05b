package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/qmoney-payment/internal/repository"
	"github.com/josh-kwaku/qmoney-payment/internal/testutil"
)

func TestNewPostgresDB_RejectsMalformedURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, "postgres://localhost:notaport/qmoney", repository.PoolConfig{})

	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "parse url")
}

func TestNewPostgresDB_AppliesPoolLimits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.SetupTestDB(t)

	assert.Equal(t, 50, db.Stats().MaxOpenConnections)
	require.NoError(t, db.PingContext(context.Background()))
}
