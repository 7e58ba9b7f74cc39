package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/service"
)

// BillingHandler serves /api/payments and /api/subscriptions.
type BillingHandler struct {
	Payments      *service.PaymentService
	Subscriptions *service.SubscriptionService
	Log           *logrus.Logger
}

func NewBillingHandler(p *service.PaymentService, s *service.SubscriptionService, log *logrus.Logger) *BillingHandler {
	return &BillingHandler{Payments: p, Subscriptions: s, Log: log}
}

// Methods handles GET /api/payments/methods.
func (h *BillingHandler) Methods(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Payments.Methods(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Checkout handles POST /api/payments/checkout.
func (h *BillingHandler) Checkout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var in service.CheckoutInput
	if err := bindJSON(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Payments.Checkout(ctx, uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, co)
}

// Webhook handles POST /api/payments/webhook from the gateway.
func (h *BillingHandler) Webhook(c echo.Context) error {
	var req struct {
		CheckoutID string `json:"checkout_id"`
		Status     string `json:"status"`
	}
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.CheckoutID == "" {
		return writeError(c, h.Log, service.Required("checkout_id"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Payments.Webhook(ctx, req.CheckoutID, req.Status); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Webhook processed"})
}

// Transactions handles GET /api/payments/transactions.
func (h *BillingHandler) Transactions(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Payments.Transactions(ctx, uid, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Invoice handles GET /api/payments/invoices/:id.
func (h *BillingHandler) Invoice(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Payments.Invoice(ctx, uid, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"invoice": p})
}

// Packages handles GET /api/subscriptions/packages.
func (h *BillingHandler) Packages(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Subscriptions.Packages(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// MySubscription handles GET /api/subscriptions/my-subscription.
func (h *BillingHandler) MySubscription(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	e, err := h.Subscriptions.Current(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Subscribe handles POST /api/subscriptions/subscribe.
func (h *BillingHandler) Subscribe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		PackageID     uint64 `json:"package_id"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.PackageID == 0 {
		return writeError(c, h.Log, service.Required("package_id"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Subscriptions.Subscribe(ctx, uid, req.PackageID, req.PaymentMethod)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if res.Subscription != nil {
		return c.JSON(http.StatusCreated, res)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /api/subscriptions/cancel.
func (h *BillingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Subscriptions.Cancel(ctx, uid); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Subscription cancelled"})
}

// History handles GET /api/subscriptions/history.
func (h *BillingHandler) History(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Subscriptions.History(ctx, uid, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}
