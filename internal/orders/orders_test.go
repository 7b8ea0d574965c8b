package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
)

type fakeBackend struct {
	orders    []apiclient.Order
	lists     int
	cancelled []string
	cancelErr error
}

func (f *fakeBackend) MyOrders(context.Context, apiclient.Credentials) ([]apiclient.Order, error) {
	f.lists++
	return append([]apiclient.Order(nil), f.orders...), nil
}

func (f *fakeBackend) Order(_ context.Context, _ apiclient.Credentials, id string) (*apiclient.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			o := o
			return &o, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Message: "Order not found"}
}

func (f *fakeBackend) CancelOrder(_ context.Context, _ apiclient.Credentials, id string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

var cred = apiclient.Credentials{Role: apiclient.RoleUser, Token: "t", DeviceID: "dev"}

func seeded() *fakeBackend {
	return &fakeBackend{orders: []apiclient.Order{
		{ID: "o1", Status: apiclient.OrderPending},
		{ID: "o2", Status: apiclient.OrderDelivered},
		{ID: "o3", Status: apiclient.OrderShipped},
	}}
}

func TestList_Flags(t *testing.T) {
	t.Parallel()
	s := NewService(seeded(), nil)

	list, err := s.List(context.Background(), cred)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.True(t, list[0].CanCancel)
	assert.False(t, list[0].CanReview)
	assert.False(t, list[1].CanCancel)
	assert.True(t, list[1].CanReview)
	assert.False(t, list[2].CanCancel)
	assert.False(t, list[2].CanReview)
}

func TestList_Unauthenticated(t *testing.T) {
	t.Parallel()
	_, err := NewService(seeded(), nil).List(context.Background(), apiclient.Anonymous("dev"))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "pending", id: "o1"},
		{name: "delivered", id: "o2", wantErr: ErrNotCancellable},
		{name: "shipped", id: "o3", wantErr: ErrNotCancellable},
		{name: "unknown", id: "nope", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := seeded()
			s := NewService(api, nil)
			_, err := s.List(context.Background(), cred)
			require.NoError(t, err)

			v, err := s.Cancel(context.Background(), cred, tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, api.cancelled)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, apiclient.OrderCancelled, v.Status)
			assert.False(t, v.CanCancel)
			assert.Equal(t, []string{tt.id}, api.cancelled)
			assert.Equal(t, 1, api.lists, "cancel does not refetch")

			cached, ok := s.Find(cred.DeviceID, tt.id)
			require.True(t, ok)
			assert.Equal(t, apiclient.OrderCancelled, cached.Status)
		})
	}
}

func TestCancel_BackendErrorKeepsStatus(t *testing.T) {
	t.Parallel()
	api := seeded()
	api.cancelErr = errors.New("boom")
	s := NewService(api, nil)
	_, err := s.List(context.Background(), cred)
	require.NoError(t, err)

	_, err = s.Cancel(context.Background(), cred, "o1")
	require.Error(t, err)

	o, _ := s.Find(cred.DeviceID, "o1")
	assert.Equal(t, apiclient.OrderPending, o.Status)
}

func TestGet(t *testing.T) {
	t.Parallel()
	s := NewService(seeded(), nil)

	v, err := s.Get(context.Background(), cred, "o2")
	require.NoError(t, err)
	assert.True(t, v.CanReview)

	_, err = s.Get(context.Background(), cred, " ")
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.Get(context.Background(), cred, "missing")
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}
