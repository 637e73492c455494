package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

var ErrInvalidPhone = errors.New("lead: telefone inválido")

// Sufixo de JID que o gateway anexa aos números de WhatsApp.
const jidSuffix = "@s.whatsapp.net"

type Service struct {
	repo storage.LeadRepository
	log  *zap.Logger
}

func NewService(repo storage.LeadRepository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create normaliza o telefone para E.164 e persiste o lead. Etapa
// ausente vira "novo".
func (s *Service) Create(ctx context.Context, lead model.Lead) (model.Lead, error) {
	phone, err := NormalizePhone(lead.Phone)
	if err != nil {
		return model.Lead{}, err
	}
	lead.Phone = phone

	if lead.Stage == "" {
		lead.Stage = model.StageNew
	}
	if !lead.Stage.Valid() {
		return model.Lead{}, fmt.Errorf("lead: etapa inválida %q", lead.Stage)
	}

	created, err := s.repo.Create(ctx, lead)
	if err != nil {
		return model.Lead{}, fmt.Errorf("lead: criar: %w", err)
	}
	return created, nil
}

// CreateFromMessage registra o lead a partir de uma mensagem recebida no
// WhatsApp. O nome do perfil pode vir vazio; o telefone é obrigatório.
func (s *Service) CreateFromMessage(ctx context.Context, tenantID, profileName, jid string) (model.Lead, error) {
	name := strings.TrimSpace(profileName)
	if name == "" {
		name = "Contato WhatsApp"
	}

	lead, err := s.Create(ctx, model.Lead{
		TenantID: tenantID,
		Name:     name,
		Phone:    jid,
		Stage:    model.StageNew,
	})
	if err != nil {
		return model.Lead{}, err
	}

	s.log.Info("lead: criado a partir de mensagem",
		zap.String("tenant_id", tenantID), zap.String("lead_id", lead.ID))
	return lead, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (model.Lead, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string) ([]model.Lead, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

func (s *Service) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	if lead.Phone != "" {
		phone, err := NormalizePhone(lead.Phone)
		if err != nil {
			return model.Lead{}, err
		}
		lead.Phone = phone
	}
	if lead.Stage != "" && !lead.Stage.Valid() {
		return model.Lead{}, fmt.Errorf("lead: etapa inválida %q", lead.Stage)
	}

	updated, err := s.repo.Update(ctx, lead)
	if err != nil {
		return model.Lead{}, fmt.Errorf("lead: atualizar: %w", err)
	}
	return updated, nil
}

// NormalizePhone remove o sufixo de JID e converte para E.164, assumindo
// Brasil quando o número vem sem código de país.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, jidSuffix)
	if raw == "" {
		return "", ErrInvalidPhone
	}

	// JIDs chegam sem o "+"; um número só de dígitos longo o bastante já
	// inclui o código do país.
	candidate := raw
	if !strings.HasPrefix(candidate, "+") && len(onlyDigits(candidate)) > 11 {
		candidate = "+" + onlyDigits(candidate)
	}

	parsed, err := libphonenumber.Parse(candidate, "BR")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	if !libphonenumber.IsValidNumber(parsed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return libphonenumber.Format(parsed, libphonenumber.E164), nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
