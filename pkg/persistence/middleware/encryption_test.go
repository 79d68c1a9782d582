package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/steward/pkg/adapters/memory"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/persistence/middleware"
	"github.com/aretw0/steward/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func convergeRecord(id string) *domain.RunRecord {
	return &domain.RunRecord{
		ID:        id,
		Kind:      domain.RunConverge,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Convergence: &domain.ConvergenceReport{
			RunID: id,
			Results: []domain.ResourceResult{{
				Kind:     domain.KindFile,
				Identity: "/etc/app/secret.conf",
				Changed:  true,
				Changes:  []domain.Change{{Field: "content", Changed: true}},
			}},
		},
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunReportStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	original := convergeRecord("run-1")
	require.NoError(t, secure.Save(ctx, original))

	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, stored.Convergence, "report must not be stored in clear")
	assert.NotEmpty(t, stored.Sealed)
	assert.Equal(t, original.CreatedAt, stored.CreatedAt)
	assert.NotContains(t, string(stored.Sealed), "secret.conf")

	loaded, err := secure.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, original.Convergence.Results, loaded.Convergence.Results)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, convergeRecord("run-1")))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := newStore.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.Convergence.RunID)

	require.NoError(t, newStore.Save(ctx, loaded))
	_, err = oldStore.Load(ctx, "run-1")
	assert.Error(t, err, "old key alone cannot read a record sealed with the new key")
}

func TestEncryptionMiddleware_RefusesPlainRecords(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, convergeRecord("plain")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "plain")
	assert.ErrorContains(t, err, "not encrypted")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKeys(t *testing.T) {
	a := hex.EncodeToString(generateKey(t))
	b := hex.EncodeToString(generateKey(t))

	cfg, err := middleware.ParseKeys(a, " "+b+", ")
	require.NoError(t, err)
	assert.Len(t, cfg.ActiveKey, middleware.KeySize)
	assert.Len(t, cfg.FallbackKeys, 1)

	_, err = middleware.ParseKeys(strings.Repeat("ab", 8), "")
	assert.ErrorContains(t, err, "want 32 bytes")

	_, err = middleware.ParseKeys("not-hex", "")
	assert.Error(t, err)

	_, err = middleware.ParseKeys(a, "zz")
	assert.ErrorContains(t, err, "fallback")
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.ReportStore) ports.ReportStore {
			return recordingStore{ReportStore: next, name: name, order: &order}
		}
	}

	store := middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	require.NoError(t, store.Save(context.Background(), convergeRecord("run-1")))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type recordingStore struct {
	ports.ReportStore
	name  string
	order *[]string
}

func (s recordingStore) Save(ctx context.Context, record *domain.RunRecord) error {
	*s.order = append(*s.order, s.name)
	return s.ReportStore.Save(ctx, record)
}
