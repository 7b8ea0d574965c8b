package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_web/internal/db"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()

	gdb, err := db.Open(context.Background(), db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	st, err := NewGormStore(gdb)
	require.NoError(t, err)
	return st
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sealed, err := NewSealed(NewMemoryStore(), "seal-secret")
	require.NoError(t, err)
	sealedGorm, err := NewSealed(newSQLiteStore(t), "seal-secret")
	require.NoError(t, err)

	return map[string]Store{
		"memory":      NewMemoryStore(),
		"gorm":        newSQLiteStore(t),
		"sealed":      sealed,
		"sealed_gorm": sealedGorm,
	}
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	for name, st := range stores(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			_, ok, err := st.Get(ctx, "dev-a", KeyUserToken)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.Set(ctx, "dev-a", KeyUserToken, "tok-1"))
			require.NoError(t, st.Set(ctx, "dev-a", KeyUserToken, "tok-2"))
			require.NoError(t, st.Set(ctx, "dev-a", KeyUserData, `{"name":"Asha"}`))
			require.NoError(t, st.Set(ctx, "dev-b", KeyUserToken, "tok-b"))
			require.NoError(t, st.Set(ctx, "dev-c", KeyAdminToken, "adm"))

			v, ok, err := st.Get(ctx, "dev-a", KeyUserToken)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "tok-2", v)

			devs, err := st.Devices(ctx, KeyUserToken)
			require.NoError(t, err)
			assert.Equal(t, []string{"dev-a", "dev-b"}, devs)

			require.NoError(t, st.Delete(ctx, "dev-a", KeyUserToken, KeyUserData))
			_, ok, err = st.Get(ctx, "dev-a", KeyUserData)
			require.NoError(t, err)
			assert.False(t, ok)

			devs, err = st.Devices(ctx, KeyUserToken)
			require.NoError(t, err)
			assert.Equal(t, []string{"dev-b"}, devs)

			require.NoError(t, st.Delete(ctx, "missing"))
		})
	}
}

func TestSealed_StoresCiphertext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	inner := NewMemoryStore()
	st, err := NewSealed(inner, "seal-secret")
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "dev-a", KeyAdminToken, "plain-token"))

	raw, ok, err := inner.Get(ctx, "dev-a", KeyAdminToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "plain-token")

	// moved to another device the value must not open
	require.NoError(t, inner.Set(ctx, "dev-b", KeyAdminToken, raw))
	_, _, err = st.Get(ctx, "dev-b", KeyAdminToken)
	assert.ErrorIs(t, err, ErrCorrupt)

	other, err := NewSealed(inner, "different-secret")
	require.NoError(t, err)
	_, _, err = other.Get(ctx, "dev-a", KeyAdminToken)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_Drivers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := Open(ctx, "memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = Open(ctx, "sqlite", "file::memory:", "k")
	require.NoError(t, err)
	assert.IsType(t, &Sealed{}, st)

	_, err = Open(ctx, "redis", "", "")
	require.Error(t, err)
}
