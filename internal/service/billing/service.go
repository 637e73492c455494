package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/config"
	"github.com/roni12291832/nexus-car/internal/storage"
)

var ErrNotConfigured = errors.New("billing: stripe não configurado")

// Statuses de assinatura que mantêm a conta ativa.
func accountActive(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}

type Service struct {
	tenants storage.TenantRepository
	cfg     config.StripeConfig
	siteURL string
	log     *zap.Logger
}

func NewService(tenants storage.TenantRepository, cfg config.StripeConfig, siteURL string, log *zap.Logger) *Service {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &Service{tenants: tenants, cfg: cfg, siteURL: siteURL, log: log}
}

// CreateCheckoutSession abre o checkout de assinatura com período de
// teste. O id do tenant vai no metadata para o webhook fechar o ciclo.
func (s *Service) CreateCheckoutSession(ctx context.Context, tenantID string) (string, error) {
	if s.cfg.SecretKey == "" || s.cfg.PriceID == "" {
		return "", ErrNotConfigured
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("billing: consultar conta: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail:     stripe.String(tenant.Email),
		ClientReferenceID: stripe.String(tenant.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(s.cfg.TrialDays)),
			Metadata:        map[string]string{"user_id": tenant.ID},
		},
		SuccessURL: stripe.String(s.siteURL + "/assinatura?status=sucesso"),
		CancelURL:  stripe.String(s.siteURL + "/assinatura?status=cancelado"),
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: criar checkout: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession abre o portal de gestão da assinatura.
func (s *Service) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if s.cfg.SecretKey == "" {
		return "", ErrNotConfigured
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.siteURL + "/assinatura"),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: criar portal: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook valida a assinatura do evento e aplica a mudança de
// assinatura na conta. Eventos desconhecidos são ignorados sem erro.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("billing: assinatura do webhook inválida: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("billing: decode checkout: %w", err)
		}
		return s.applyCheckout(ctx, sess)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("billing: decode subscription: %w", err)
		}
		return s.applySubscription(ctx, sub)

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("billing: decode invoice: %w", err)
		}
		s.log.Info("billing: fatura paga",
			zap.String("invoice", inv.ID), zap.String("customer", customerID(inv.Customer)))
		return nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("billing: decode invoice: %w", err)
		}
		s.log.Warn("billing: pagamento de fatura falhou",
			zap.String("invoice", inv.ID), zap.String("customer", customerID(inv.Customer)))
		return nil

	default:
		s.log.Debug("billing: evento ignorado", zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *Service) applyCheckout(ctx context.Context, sess stripe.CheckoutSession) error {
	tenantID := sess.ClientReferenceID
	if tenantID == "" {
		s.log.Warn("billing: checkout sem referência de conta", zap.String("session", sess.ID))
		return nil
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("billing: conta do checkout não encontrada: %w", err)
	}

	if sess.Subscription != nil {
		tenant.SubscriptionID = sess.Subscription.ID
	}
	tenant.Status = string(stripe.SubscriptionStatusTrialing)
	tenant.Ativo = true

	if err := s.tenants.UpsertSubscription(ctx, tenant); err != nil {
		return fmt.Errorf("billing: gravar assinatura: %w", err)
	}
	s.log.Info("billing: checkout concluído", zap.String("tenant_id", tenantID))
	return nil
}

func (s *Service) applySubscription(ctx context.Context, sub stripe.Subscription) error {
	tenantID := sub.Metadata["user_id"]
	if tenantID == "" {
		s.log.Warn("billing: assinatura sem metadata de conta", zap.String("subscription", sub.ID))
		return nil
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("billing: conta da assinatura não encontrada: %w", err)
	}

	tenant.SubscriptionID = sub.ID
	tenant.Status = string(sub.Status)
	tenant.Ativo = accountActive(sub.Status)
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		tenant.CurrentPeriodEnd = &end
	}

	if err := s.tenants.UpsertSubscription(ctx, tenant); err != nil {
		return fmt.Errorf("billing: gravar assinatura: %w", err)
	}
	s.log.Info("billing: assinatura atualizada",
		zap.String("tenant_id", tenantID),
		zap.String("status", string(sub.Status)),
		zap.Bool("ativo", tenant.Ativo))
	return nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
