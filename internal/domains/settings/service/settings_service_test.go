package service

import (
	"context"
	"testing"

	"luxestore-backend/internal/config"
	"luxestore-backend/internal/domains/settings/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettingsRepo struct {
	data map[string]any
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{data: make(map[string]any)}
}

func (f *fakeSettingsRepo) Get(_ context.Context, _ string) (*model.Settings, error) {
	if len(f.data) == 0 {
		return nil, model.ErrSettingsNotFound
	}
	s := &model.Settings{Type: model.TypeIntegrations}
	if v, ok := f.data["cj_email"].(string); ok {
		s.Data.CJEmail = v
	}
	if v, ok := f.data["cj_api_key"].(string); ok {
		s.Data.CJAPIKey = v
	}
	if v, ok := f.data["exchange_rate_api_key"].(string); ok {
		s.Data.ExchangeRateAPIKey = v
	}
	return s, nil
}

func (f *fakeSettingsRepo) Merge(_ context.Context, _ string, patch map[string]any) error {
	for k, v := range patch {
		f.data[k] = v
	}
	return nil
}

func newTestService(repo *fakeSettingsRepo) *SettingsService {
	return NewSettingsService(repo,
		config.CJConfig{Email: "env@example.com", APIKey: "env-api-key-12345"},
		config.FXConfig{APIKey: "free"},
	)
}

func TestGetMasksSecrets(t *testing.T) {
	svc := newTestService(newFakeSettingsRepo())

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", got.CJEmail)
	assert.Equal(t, "env***345", got.CJAPIKey)
	assert.Equal(t, "***", got.ExchangeRateAPIKey)
}

func TestUpdateOverridesEnvDefaults(t *testing.T) {
	repo := newFakeSettingsRepo()
	svc := newTestService(repo)

	email := "store@example.com"
	key := "fresh-cj-key-98765"
	got, err := svc.Update(context.Background(), model.IntegrationUpdate{
		CJEmail:  &email,
		CJAPIKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, "store@example.com", got.CJEmail)
	assert.Equal(t, "fre***765", got.CJAPIKey)

	// The supplier client sees the raw stored key, not the mask.
	creds, err := svc.SupplierCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-cj-key-98765", creds.APIKey)
	assert.Equal(t, "store@example.com", creds.Email)
}

func TestUpdateIgnoresMaskedValues(t *testing.T) {
	repo := newFakeSettingsRepo()
	repo.data["cj_api_key"] = "stored-key-12345"
	svc := newTestService(repo)

	masked := "sto***345"
	_, err := svc.Update(context.Background(), model.IntegrationUpdate{CJAPIKey: &masked})
	assert.ErrorIs(t, err, model.ErrNoFieldsToUpdate)
	assert.Equal(t, "stored-key-12345", repo.data["cj_api_key"])
}

func TestUpdateRequiresFields(t *testing.T) {
	svc := newTestService(newFakeSettingsRepo())
	_, err := svc.Update(context.Background(), model.IntegrationUpdate{})
	assert.ErrorIs(t, err, model.ErrNoFieldsToUpdate)
}
