package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/steward/pkg/adapters/redis"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func auditRecord(id string, created time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		ID:        id,
		Kind:      domain.RunAudit,
		CreatedAt: created,
		Audit:     &domain.AuditRun{RunID: id},
	}
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunReportStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_ListOldestFirst(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, auditRecord("second", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, auditRecord("first", base)))
	require.NoError(t, store.Save(ctx, auditRecord("third", base.Add(2*time.Minute))))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	id := "run-ttl"

	require.NoError(t, store.Save(ctx, auditRecord(id, time.Now())))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	// Key expiration happens on miniredis' clock.
	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	// Index pruning compares against wall time.
	time.Sleep(1200 * time.Millisecond)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, auditRecord("my-run", time.Now())))

	assert.True(t, mr.Exists("custom:app:report:my-run"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:reports"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-run")
}

func TestRedisStore_ConnectionError(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	_, err := store.Load(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrReportNotFound)
}
