package service

import (
	"context"
	"errors"
	"strings"

	"luxestore-backend/internal/config"
	"luxestore-backend/internal/domains/settings/model"
	"luxestore-backend/internal/domains/settings/repository"
	"luxestore-backend/internal/infrastructure/supplier"
	"luxestore-backend/internal/shared/utils"

	"github.com/rs/zerolog/log"
)

// SettingsService reads and updates integration credentials. Reads always
// return masked secrets; writes ignore masked values so a round-tripped read
// can be submitted back safely.
type SettingsService struct {
	repo repository.SettingsRepository
	cj   config.CJConfig
	fx   config.FXConfig
}

func NewSettingsService(repo repository.SettingsRepository, cj config.CJConfig, fx config.FXConfig) *SettingsService {
	return &SettingsService{repo: repo, cj: cj, fx: fx}
}

// raw returns stored settings overlaid on the environment defaults.
func (s *SettingsService) raw(ctx context.Context) (model.IntegrationSettings, error) {
	out := model.IntegrationSettings{
		CJEmail:            s.cj.Email,
		CJAPIKey:           s.cj.APIKey,
		ExchangeRateAPIKey: s.fx.APIKey,
	}

	stored, err := s.repo.Get(ctx, model.TypeIntegrations)
	if err != nil {
		if errors.Is(err, model.ErrSettingsNotFound) {
			return out, nil
		}
		return out, err
	}

	if stored.Data.CJEmail != "" {
		out.CJEmail = stored.Data.CJEmail
	}
	if stored.Data.CJAPIKey != "" {
		out.CJAPIKey = stored.Data.CJAPIKey
	}
	if stored.Data.ExchangeRateAPIKey != "" {
		out.ExchangeRateAPIKey = stored.Data.ExchangeRateAPIKey
	}
	return out, nil
}

// Get returns the integration settings with every secret masked.
func (s *SettingsService) Get(ctx context.Context) (*model.IntegrationSettings, error) {
	raw, err := s.raw(ctx)
	if err != nil {
		return nil, err
	}
	return &model.IntegrationSettings{
		CJEmail:            raw.CJEmail,
		CJAPIKey:           utils.MaskSecret(raw.CJAPIKey),
		ExchangeRateAPIKey: utils.MaskSecret(raw.ExchangeRateAPIKey),
	}, nil
}

// Update merges a partial settings change. Masked values ("abc***xyz") are
// treated as "unchanged" so clients can echo back what they read.
func (s *SettingsService) Update(ctx context.Context, update model.IntegrationUpdate) (*model.IntegrationSettings, error) {
	patch := make(map[string]any)
	if update.CJEmail != nil {
		patch["cj_email"] = strings.TrimSpace(*update.CJEmail)
	}
	if update.CJAPIKey != nil && !isMasked(*update.CJAPIKey) {
		patch["cj_api_key"] = strings.TrimSpace(*update.CJAPIKey)
	}
	if update.ExchangeRateAPIKey != nil && !isMasked(*update.ExchangeRateAPIKey) {
		patch["exchange_rate_api_key"] = strings.TrimSpace(*update.ExchangeRateAPIKey)
	}
	if len(patch) == 0 {
		return nil, model.ErrNoFieldsToUpdate
	}

	if err := s.repo.Merge(ctx, model.TypeIntegrations, patch); err != nil {
		return nil, err
	}
	log.Info().Int("fields", len(patch)).Msg("Integration settings updated")
	return s.Get(ctx)
}

func isMasked(value string) bool {
	return strings.Contains(value, "***")
}

// SupplierCredentials implements supplier.CredentialsSource: the client reads
// credentials per call, so settings changes take effect without a restart.
func (s *SettingsService) SupplierCredentials(ctx context.Context) (supplier.Credentials, error) {
	raw, err := s.raw(ctx)
	if err != nil {
		return supplier.Credentials{}, err
	}
	return supplier.Credentials{Email: raw.CJEmail, APIKey: raw.CJAPIKey}, nil
}
