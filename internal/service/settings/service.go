package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type Service struct {
	repo storage.SettingsRepository
	log  *zap.Logger
}

func NewService(repo storage.SettingsRepository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Get devolve as configurações da loja, com defaults quando o tenant
// ainda não salvou nada.
func (s *Service) Get(ctx context.Context, tenantID string) (model.StoreSettings, error) {
	settings, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return defaults(tenantID), nil
		}
		return model.StoreSettings{}, fmt.Errorf("settings: consultar: %w", err)
	}
	return settings, nil
}

// Save grava por upsert: uma linha por tenant, a última escrita vence.
func (s *Service) Save(ctx context.Context, settings model.StoreSettings) (model.StoreSettings, error) {
	if settings.TenantID == "" {
		return model.StoreSettings{}, fmt.Errorf("settings: tenant é obrigatório")
	}

	saved, err := s.repo.Upsert(ctx, settings)
	if err != nil {
		return model.StoreSettings{}, fmt.Errorf("settings: salvar: %w", err)
	}
	s.log.Debug("settings: atualizadas", zap.String("tenant_id", settings.TenantID))
	return saved, nil
}

func defaults(tenantID string) model.StoreSettings {
	return model.StoreSettings{
		TenantID:    tenantID,
		OpenTime:    "08:00",
		CloseTime:   "18:00",
		WeekendOpen: false,
	}
}
