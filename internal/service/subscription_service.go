package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

// SubscribeResult is either an active subscription (free package) or a
// payment the user must complete.
type SubscribeResult struct {
	Subscription *model.Subscription `json:"subscription,omitempty"`
	Checkout     *model.Checkout     `json:"checkout,omitempty"`
	PaymentURL   string              `json:"payment_url,omitempty"`
}

// SubscriptionService manages listing packages and entitlements.
type SubscriptionService struct {
	subs     *repository.SubscriptionRepo
	cars     *repository.CarRepo
	payments *PaymentService
}

func NewSubscriptionService(subs *repository.SubscriptionRepo, cars *repository.CarRepo, payments *PaymentService) *SubscriptionService {
	return &SubscriptionService{subs: subs, cars: cars, payments: payments}
}

// Packages lists the purchasable packages.
func (s *SubscriptionService) Packages(ctx context.Context) ([]model.SubscriptionPackage, error) {
	return s.subs.Packages(ctx)
}

// Current reports the caller's plan and usage. Without a subscription the
// free tier applies.
func (s *SubscriptionService) Current(ctx context.Context, userID uint64) (*model.Entitlement, error) {
	used, err := s.cars.CountActiveListings(ctx, userID)
	if err != nil {
		return nil, err
	}
	e := &model.Entitlement{Package: model.FreePackage, ListingsUsed: used}
	sub, err := s.subs.Active(ctx, userID)
	switch {
	case err == nil:
		e.IsSubscribed = true
		e.SubscriptionID = sub.ID
		e.Package = *sub.Package
		start, end := sub.StartDate, sub.EndDate
		e.StartDate, e.EndDate = &start, &end
	case !errors.Is(err, repository.ErrSubscriptionNotFound):
		return nil, err
	}
	e.ListingsRemaining = e.Package.ListingLimit - used
	return e, nil
}

// Subscribe starts a package. A free package is activated at once, a paid
// one returns a checkout that activates it when the payment completes.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, packageID uint64, method string) (*SubscribeResult, error) {
	pkg, err := s.subs.Package(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.subs.Active(ctx, userID); err == nil {
		return nil, repository.ErrConflict
	} else if !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, err
	}
	if pkg.Price <= 0 {
		sub, err := s.subs.Create(ctx, userID, pkg)
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Subscription: sub}, nil
	}
	co, err := s.payments.Checkout(ctx, userID, CheckoutInput{
		Amount: pkg.Price, Currency: pkg.Currency, Description: "Subscription: " + pkg.Name,
		PaymentMethod: method,
		Metadata: map[string]string{
			metaType:      metaTypeSub,
			metaPackageID: strconv.FormatUint(pkg.ID, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	return &SubscribeResult{Checkout: co, PaymentURL: co.RedirectURL}, nil
}

// Cancel ends the active subscription.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uint64) error {
	if err := s.subs.Cancel(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return Invalid("No active subscription")
		}
		return err
	}
	return nil
}

// History pages through past subscriptions.
func (s *SubscriptionService) History(ctx context.Context, userID uint64, page, limit int) ([]model.Subscription, model.Page, error) {
	return s.subs.History(ctx, userID, page, limit)
}
