package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/database"
	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

// CheckoutInput starts a payment.
type CheckoutInput struct {
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Description   string            `json:"description"`
	PaymentMethod string            `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

// Metadata keys understood by the webhook.
const (
	metaType      = "type"
	metaPackageID = "package_id"
	metaTypeSub   = "subscription"
)

// PaymentService records checkouts and applies gateway callbacks. The
// gateway itself is external; checkout only builds its redirect URL.
type PaymentService struct {
	payments   *repository.PaymentRepo
	subs       *repository.SubscriptionRepo
	gatewayURL string
	log        *logrus.Logger
}

func NewPaymentService(payments *repository.PaymentRepo, subs *repository.SubscriptionRepo, gatewayURL string, log *logrus.Logger) *PaymentService {
	return &PaymentService{payments: payments, subs: subs, gatewayURL: strings.TrimRight(gatewayURL, "/"), log: log}
}

// Methods lists active payment methods.
func (s *PaymentService) Methods(ctx context.Context) ([]model.PaymentMethod, error) {
	return s.payments.Methods(ctx)
}

// Checkout stores a pending payment and returns where to send the user.
func (s *PaymentService) Checkout(ctx context.Context, userID uint64, in CheckoutInput) (*model.Checkout, error) {
	if in.Amount <= 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return nil, Invalid("amount must be greater than 0")
	}
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	if in.PaymentMethod == "" {
		return nil, Required("payment_method")
	}
	if err := s.payments.MethodExists(ctx, in.PaymentMethod); err != nil {
		if errors.Is(err, repository.ErrMethodNotFound) {
			return nil, Invalid("Invalid payment method")
		}
		return nil, err
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	p := &model.Payment{
		CheckoutID: uuid.NewString(), UserID: userID, Amount: in.Amount, Currency: strings.ToUpper(in.Currency),
		Description: in.Description, PaymentMethod: in.PaymentMethod, Status: model.PaymentPending,
		Metadata: in.Metadata,
	}
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return &model.Checkout{CheckoutID: p.CheckoutID, PaymentID: p.ID, RedirectURL: s.gatewayURL + "/" + p.CheckoutID}, nil
}

// Webhook applies a gateway status update. Replays of an already applied
// update are accepted and ignored. A completed subscription payment starts
// the subscription it paid for; the status change and the subscription
// commit together so a failed insert leaves the payment pending for the
// gateway's retry.
func (s *PaymentService) Webhook(ctx context.Context, checkoutID, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != model.PaymentCompleted && status != model.PaymentFailed {
		return Invalid("status must be completed or failed")
	}
	p, err := s.payments.GetByCheckout(ctx, strings.TrimSpace(checkoutID))
	if err != nil {
		return err
	}
	log := s.log.WithFields(logrus.Fields{"checkout_id": p.CheckoutID, "status": status})

	var pkg *model.SubscriptionPackage
	if status == model.PaymentCompleted && p.Metadata[metaType] == metaTypeSub {
		pkgID, perr := strconv.ParseUint(p.Metadata[metaPackageID], 10, 64)
		if perr != nil {
			log.WithError(perr).Warn("subscription payment without package id")
		} else if pkg, err = s.subs.Package(ctx, pkgID); err != nil {
			return err
		}
	}

	return database.WithTx(ctx, s.payments.DB(), func(tx *sql.Tx) error {
		applied, err := s.payments.SetStatusTx(ctx, tx, p.CheckoutID, status)
		if err != nil {
			return err
		}
		if !applied {
			log.Info("payment webhook replay ignored")
			return nil
		}
		if pkg == nil {
			return nil
		}
		if _, err := s.subs.CreateTx(ctx, tx, p.UserID, pkg); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				log.Warn("paid subscription while another is active")
				return nil
			}
			return err
		}
		return nil
	})
}

// Transactions pages through the caller's payments.
func (s *PaymentService) Transactions(ctx context.Context, userID uint64, page, limit int) ([]model.Payment, model.Page, error) {
	return s.payments.ListForUser(ctx, userID, page, limit)
}

// Invoice returns one of the caller's payments.
func (s *PaymentService) Invoice(ctx context.Context, userID, paymentID uint64) (*model.Payment, error) {
	return s.payments.GetForUser(ctx, paymentID, userID)
}
