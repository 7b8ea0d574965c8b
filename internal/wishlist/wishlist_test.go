package wishlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
)

type fakeBackend struct {
	mu      sync.Mutex
	ids     []string
	adds     int
	fetches  int
	fetchErr error
}

func (f *fakeBackend) Wishlist(context.Context, apiclient.Credentials) ([]apiclient.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]apiclient.Product, 0, len(f.ids))
	for _, id := range f.ids {
		out = append(out, apiclient.Product{ID: id, Name: "product " + id})
	}
	return out, nil
}

func (f *fakeBackend) AddToWishlist(_ context.Context, _ apiclient.Credentials, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeBackend) RemoveFromWishlist(_ context.Context, _ apiclient.Credentials, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.ids {
		if v == id {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) ClearWishlist(context.Context, apiclient.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = nil
	return nil
}

var cred = apiclient.Credentials{Role: apiclient.RoleUser, Token: "tok", DeviceID: "dev-1"}

func ids(ps []apiclient.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestMutationsRefetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	be := &fakeBackend{}
	svc := NewService(be, nil)

	list, err := svc.Add(ctx, cred, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(list))

	list, err = svc.Add(ctx, cred, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids(list))
	assert.True(t, svc.Contains("dev-1", "p2"))

	list, err = svc.Remove(ctx, cred, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids(list))

	list, err = svc.Clear(ctx, cred)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, svc.Snapshot("dev-1"))
}

func TestAdd_AlreadyPresentSkipsBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	be := &fakeBackend{ids: []string{"p1"}}
	svc := NewService(be, nil)

	list, err := svc.Add(ctx, cred, "p1")
	assert.ErrorIs(t, err, ErrAlreadyPresent)
	assert.Equal(t, []string{"p1"}, ids(list))
	assert.Zero(t, be.adds)
	assert.Equal(t, 1, be.fetches)
}

func TestUnauthenticated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := NewService(&fakeBackend{ids: []string{"p1"}}, nil)

	list, err := svc.Fetch(ctx, apiclient.Anonymous("dev-9"))
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Add(ctx, apiclient.Anonymous("dev-9"), "p1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMutationSucceedsWhenRefetchFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	be := &fakeBackend{}
	svc := NewService(be, nil)
	_, err := svc.Fetch(ctx, cred)
	require.NoError(t, err)

	be.mu.Lock()
	be.fetchErr = errors.New("timeout")
	be.mu.Unlock()

	list, err := svc.Add(ctx, cred, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, svc.Snapshot("dev-1"))

	be.mu.Lock()
	defer be.mu.Unlock()
	assert.Equal(t, []string{"p1"}, be.ids)
}
