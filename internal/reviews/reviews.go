// Package reviews handles product reviews for delivered orders and their
// moderation by admins.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
)

var (
	ErrValidation     = errors.New("validation")
	ErrNotReviewable  = errors.New("only delivered orders can be reviewed")
	ErrItemNotInOrder = errors.New("item is not part of this order")
	ErrAlreadyDone    = errors.New("item has already been reviewed")
)

type Backend interface {
	Order(ctx context.Context, cred apiclient.Credentials, id string) (*apiclient.Order, error)
	CreateReview(ctx context.Context, cred apiclient.Credentials, r apiclient.ReviewInput, image *apiclient.File) (*apiclient.Review, error)
	UserReviews(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Review, error)
	ProductReviews(ctx context.Context, productID string) ([]apiclient.Review, error)
	DeleteReview(ctx context.Context, cred apiclient.Credentials, id string) error

	AdminReviews(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Review, error)
	SetReviewVisibility(ctx context.Context, cred apiclient.Credentials, id string, visible bool) error
	AdminDeleteReview(ctx context.Context, cred apiclient.Credentials, id string) error
}

type Service struct {
	API Backend
	log *slog.Logger
}

func NewService(api Backend, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{API: api, log: log.With("component", "reviews")}
}

func validate(in *apiclient.ReviewInput) error {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.Comment = strings.TrimSpace(in.Comment)
	switch {
	case in.OrderID == "" || in.ItemID == "":
		return fmt.Errorf("order and item are required: %w", ErrValidation)
	case in.Rating < 1 || in.Rating > 5:
		return fmt.Errorf("rating must be between 1 and 5: %w", ErrValidation)
	case in.Comment == "":
		return fmt.Errorf("please write a comment: %w", ErrValidation)
	}
	return nil
}

// Create checks the order before posting: it must be delivered and must
// contain the item. The image, if any, is expected to be validated already.
func (s *Service) Create(ctx context.Context, cred apiclient.Credentials, in apiclient.ReviewInput, image *apiclient.File) (*apiclient.Review, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	order, err := s.API.Order(ctx, cred, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", in.OrderID, err)
	}
	if order.Status != apiclient.OrderDelivered {
		return nil, ErrNotReviewable
	}
	item, ok := order.Item(in.ItemID)
	if !ok {
		return nil, ErrItemNotInOrder
	}
	if item.Reviewed {
		return nil, ErrAlreadyDone
	}

	r, err := s.API.CreateReview(ctx, cred, in, image)
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.log.Info("review created", "device_id", cred.DeviceID, "order_id", in.OrderID, "rating", in.Rating)
	return r, nil
}

func (s *Service) Mine(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Review, error) {
	list, err := s.API.UserReviews(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("list my reviews: %w", err)
	}
	return nonNil(list), nil
}

func (s *Service) ForProduct(ctx context.Context, productID string) ([]apiclient.Review, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	list, err := s.API.ProductReviews(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list product reviews: %w", err)
	}
	return nonNil(list), nil
}

func (s *Service) Delete(ctx context.Context, cred apiclient.Credentials, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("review id is required: %w", ErrValidation)
	}
	if err := s.API.DeleteReview(ctx, cred, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Review, error) {
	list, err := s.API.AdminReviews(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return nonNil(list), nil
}

func (s *Service) SetVisibility(ctx context.Context, cred apiclient.Credentials, id string, visible bool) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("review id is required: %w", ErrValidation)
	}
	if err := s.API.SetReviewVisibility(ctx, cred, id, visible); err != nil {
		return fmt.Errorf("set review visibility: %w", err)
	}
	s.log.Info("review visibility changed", "review_id", id, "visible", visible)
	return nil
}

func (s *Service) AdminDelete(ctx context.Context, cred apiclient.Credentials, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("review id is required: %w", ErrValidation)
	}
	if err := s.API.AdminDeleteReview(ctx, cred, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

func nonNil(list []apiclient.Review) []apiclient.Review {
	if list == nil {
		return []apiclient.Review{}
	}
	return list
}
