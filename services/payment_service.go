package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/models"
	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
	"github.com/yashrajoria/shopswift-api/providers"
	"github.com/yashrajoria/shopswift-api/repository"
	"go.uber.org/zap"
)

// PaymentService starts provider checkouts for orders and applies provider
// callbacks to the payment records.
type PaymentService interface {
	CreateCheckout(ctx context.Context, userID, orderID uint) (*models.CheckoutResponse, error)
	VerifyRazorpayPayment(ctx context.Context, userID uint, req models.RazorpayVerifyRequest) (*models.Payment, error)
	HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error
	HandlePolarWebhook(ctx context.Context, body []byte, headers http.Header) error
}

// RazorpayVerifier checks the signature returned by Razorpay Checkout.
type RazorpayVerifier interface {
	VerifyPaymentSignature(orderID, paymentID, signature string) error
}

type keyIDProvider interface {
	KeyID() string
}

type paymentServiceImpl struct {
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	users     repository.UserRepository
	providers map[string]providers.PaymentProvider
	razorpay  RazorpayVerifier
	events    eventPublisher
	metrics   MetricCounter
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService wires the configured providers by name. razorpay may be
// nil when Razorpay is not configured.
func NewPaymentService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	paymentProviders []providers.PaymentProvider,
	razorpay RazorpayVerifier,
	sns awspkg.SNSPublisher,
	topicArn string,
	metrics MetricCounter,
	logger *zap.Logger,
) PaymentService {
	byName := make(map[string]providers.PaymentProvider, len(paymentProviders))
	for _, p := range paymentProviders {
		byName[p.Name()] = p
	}
	return &paymentServiceImpl{
		orders:    orders,
		payments:  payments,
		users:     users,
		providers: byName,
		razorpay:  razorpay,
		events:    eventPublisher{sns: sns, topicArn: topicArn, logger: logger},
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCheckout returns the open payment for the order or starts a new
// one with the provider matching the order's payment method. A pending
// payment whose amount no longer matches the order is failed and replaced.
func (s *paymentServiceImpl) CreateCheckout(ctx context.Context, userID, orderID uint) (*models.CheckoutResponse, error) {
	order, err := s.orders.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NotFound("order %d not found", orderID)
		}
		return nil, apperrors.Internal("Failed to load order", err)
	}
	if order.Status != models.OrderStatusProcessing {
		return nil, apperrors.StateConflict("order %d is %s and cannot be paid", orderID, order.Status)
	}

	provider, ok := s.providers[order.PaymentMethod]
	if !ok {
		return nil, apperrors.ExternalService("Payment provider "+order.PaymentMethod+" is not configured", nil)
	}

	existing, err := s.payments.FindLatestByOrderID(ctx, orderID)
	switch {
	case err == nil && existing.Status == models.PaymentStatusPending &&
		(existing.Amount != order.TotalAmount || existing.Currency != order.Currency):
		// The order changed after this checkout was opened.
		s.markFailed(ctx, existing, "order total changed", nil)
	case err == nil && existing.Status != models.PaymentStatusFailed:
		return s.checkoutResponse(existing, provider), nil
	case err != nil && !repository.IsNotFound(err):
		return nil, apperrors.Internal("Failed to load payment", err)
	}

	var email string
	if s.users != nil {
		if u, err := s.users.FindByID(ctx, userID); err == nil {
			email = u.Email
		}
	}

	payment := &models.Payment{
		ID:       uuid.New(),
		OrderID:  order.ID,
		UserID:   userID,
		Provider: provider.Name(),
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Status:   models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Error("Failed to persist payment", zap.Uint("order_id", orderID), zap.Error(err))
		return nil, apperrors.Internal("Failed to create payment", err)
	}

	checkout, err := provider.CreateCheckout(ctx, providers.CheckoutParams{
		PaymentID:     payment.ID.String(),
		OrderID:       order.ID,
		UserID:        userID,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		CustomerEmail: email,
	})
	if err != nil {
		s.logger.Error("Provider checkout failed",
			zap.String("provider", provider.Name()),
			zap.Uint("order_id", orderID),
			zap.Error(err),
		)
		s.markFailed(ctx, payment, err.Error(), nil)
		return nil, apperrors.ExternalService("Payment provider error", err)
	}

	payment.ProviderRef = &checkout.ProviderRef
	updates := map[string]interface{}{"provider_ref": checkout.ProviderRef}
	if checkout.CheckoutURL != "" {
		payment.CheckoutURL = &checkout.CheckoutURL
		updates["checkout_url"] = checkout.CheckoutURL
	}
	if err := s.payments.Update(ctx, payment.ID, updates); err != nil {
		return nil, apperrors.Internal("Failed to save payment", err)
	}

	s.logger.Info("Checkout created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("provider", provider.Name()),
		zap.String("provider_ref", checkout.ProviderRef),
	)
	return s.checkoutResponse(payment, provider), nil
}

func (s *paymentServiceImpl) checkoutResponse(p *models.Payment, provider providers.PaymentProvider) *models.CheckoutResponse {
	resp := &models.CheckoutResponse{
		PaymentID: p.ID,
		Provider:  p.Provider,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
	}
	if p.ProviderRef != nil {
		resp.ProviderRef = *p.ProviderRef
	}
	if p.CheckoutURL != nil {
		resp.CheckoutURL = *p.CheckoutURL
	}
	if k, ok := provider.(keyIDProvider); ok {
		resp.KeyID = k.KeyID()
	}
	return resp
}

// VerifyRazorpayPayment confirms a browser-side Razorpay payment.
func (s *paymentServiceImpl) VerifyRazorpayPayment(ctx context.Context, userID uint, req models.RazorpayVerifyRequest) (*models.Payment, error) {
	if s.razorpay == nil {
		return nil, apperrors.ExternalService("Razorpay is not configured", nil)
	}
	payment, err := s.payments.FindByProviderRef(ctx, models.PaymentMethodRazorpay, req.RazorpayOrderID)
	if err != nil || payment.UserID != userID {
		if err == nil || repository.IsNotFound(err) {
			return nil, apperrors.NotFound("payment for %s not found", req.RazorpayOrderID)
		}
		return nil, apperrors.Internal("Failed to load payment", err)
	}
	if err := s.razorpay.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
		return nil, apperrors.Validation("invalid payment signature")
	}

	if models.IsTerminalPaymentStatus(payment.Status) {
		return payment, nil
	}
	if err := s.markSucceeded(ctx, payment, req.RazorpayPaymentID, nil); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentServiceImpl) HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) error {
	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", signature)
	return s.handleWebhook(ctx, models.PaymentMethodRazorpay, body, headers)
}

func (s *paymentServiceImpl) HandlePolarWebhook(ctx context.Context, body []byte, headers http.Header) error {
	return s.handleWebhook(ctx, models.PaymentMethodPolar, body, headers)
}

// handleWebhook verifies and applies one provider event. Events for unknown
// or already settled payments are acknowledged without changes so the
// provider stops retrying.
func (s *paymentServiceImpl) handleWebhook(ctx context.Context, name string, body []byte, headers http.Header) error {
	provider, ok := s.providers[name]
	if !ok {
		return apperrors.ExternalService("Payment provider "+name+" is not configured", nil)
	}

	event, err := provider.ParseWebhook(body, headers)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidSignature) {
			s.logger.Warn("Rejected webhook with invalid signature", zap.String("provider", name))
			return apperrors.Unauthorized("invalid webhook signature")
		}
		return apperrors.Validation("malformed %s webhook", name)
	}

	log := s.logger.With(zap.String("provider", name), zap.String("event", event.Type))
	if event.Kind == models.WebhookIgnored {
		log.Debug("Ignoring webhook event")
		return nil
	}

	payment, err := s.payments.FindByProviderRef(ctx, name, event.ProviderRef)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("Webhook for unknown payment", zap.String("provider_ref", event.ProviderRef))
			return nil
		}
		return apperrors.Internal("Failed to load payment", err)
	}
	if models.IsTerminalPaymentStatus(payment.Status) {
		log.Info("Payment already settled, skipping", zap.String("payment_id", payment.ID.String()), zap.String("status", payment.Status))
		return nil
	}

	switch event.Kind {
	case models.WebhookPaymentSucceeded:
		return s.markSucceeded(ctx, payment, event.ProviderPaymentID, event.Raw)
	case models.WebhookPaymentFailed:
		reason := event.FailureReason
		if reason == "" {
			reason = event.Type
		}
		s.markFailed(ctx, payment, reason, event.Raw)
	}
	return nil
}

func (s *paymentServiceImpl) markSucceeded(ctx context.Context, payment *models.Payment, providerPaymentID string, raw []byte) error {
	now := s.now().UTC()
	updates := map[string]interface{}{
		"status":       models.PaymentStatusSucceeded,
		"succeeded_at": now,
	}
	if providerPaymentID != "" {
		updates["provider_payment_id"] = providerPaymentID
		payment.ProviderPaymentID = &providerPaymentID
	}
	if len(raw) > 0 {
		updates["event_payload"] = string(raw)
	}
	if err := s.payments.Update(ctx, payment.ID, updates); err != nil {
		s.logger.Error("Failed to mark payment succeeded", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return apperrors.Internal("Failed to update payment", err)
	}
	payment.Status = models.PaymentStatusSucceeded
	payment.SucceededAt = &now

	s.logger.Info("Payment succeeded", zap.String("payment_id", payment.ID.String()), zap.Uint("order_id", payment.OrderID))
	recordCount(ctx, s.metrics, awspkg.MetricPaymentSucceeded, map[string]string{"Provider": payment.Provider})
	s.publishPaymentEvent(ctx, "payment_succeeded", payment)
	return nil
}

// markFailed is best effort; the caller has already decided the outcome.
func (s *paymentServiceImpl) markFailed(ctx context.Context, payment *models.Payment, reason string, raw []byte) {
	now := s.now().UTC()
	updates := map[string]interface{}{
		"status":         models.PaymentStatusFailed,
		"failure_reason": reason,
		"failed_at":      now,
	}
	if len(raw) > 0 {
		updates["event_payload"] = string(raw)
	}
	if err := s.payments.Update(ctx, payment.ID, updates); err != nil {
		s.logger.Error("Failed to mark payment failed", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return
	}
	payment.Status = models.PaymentStatusFailed
	payment.FailureReason = reason
	payment.FailedAt = &now

	recordCount(ctx, s.metrics, awspkg.MetricPaymentFailed, map[string]string{"Provider": payment.Provider})
	s.publishPaymentEvent(ctx, "payment_failed", payment)
}

func (s *paymentServiceImpl) publishPaymentEvent(ctx context.Context, eventType string, p *models.Payment) {
	s.events.publish(ctx, eventType, models.PaymentEvent{
		EventType: eventType,
		PaymentID: p.ID.String(),
		OrderID:   p.OrderID,
		UserID:    p.UserID,
		Provider:  p.Provider,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Timestamp: s.now().UTC(),
	})
}
