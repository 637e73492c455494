package lead

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

type fakeLeadRepo struct {
	leads map[string]model.Lead
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[string]model.Lead)}
}

func (r *fakeLeadRepo) Create(_ context.Context, lead model.Lead) (model.Lead, error) {
	lead.ID = uuid.New().String()
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeLeadRepo) GetByID(_ context.Context, tenantID, id string) (model.Lead, error) {
	l, ok := r.leads[id]
	if !ok || l.TenantID != tenantID {
		return model.Lead{}, storage.ErrNotFound
	}
	return l, nil
}

func (r *fakeLeadRepo) ListByTenant(_ context.Context, tenantID string) ([]model.Lead, error) {
	var out []model.Lead
	for _, l := range r.leads {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) Update(_ context.Context, lead model.Lead) (model.Lead, error) {
	if _, ok := r.leads[lead.ID]; !ok {
		return model.Lead{}, storage.ErrNotFound
	}
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeLeadRepo) UpdateStage(_ context.Context, tenantID, id string, stage model.LeadStage) error {
	l, ok := r.leads[id]
	if !ok || l.TenantID != tenantID {
		return storage.ErrNotFound
	}
	l.Stage = stage
	r.leads[id] = l
	return nil
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "jid do gateway", in: "5511988887777@s.whatsapp.net", want: "+5511988887777"},
		{name: "e164 completo", in: "+5511988887777", want: "+5511988887777"},
		{name: "digitos com ddi", in: "5511988887777", want: "+5511988887777"},
		{name: "nacional sem ddi", in: "11988887777", want: "+5511988887777"},
		{name: "fixo nacional", in: "1133334444", want: "+551133334444"},
		{name: "vazio", in: "", wantErr: true},
		{name: "lixo", in: "abc", wantErr: true},
		{name: "curto demais", in: "123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateNormalizesPhoneAndDefaultsStage(t *testing.T) {
	repo := newFakeLeadRepo()
	svc := NewService(repo, zap.NewNop())

	created, err := svc.Create(context.Background(), model.Lead{
		TenantID: "tenant-1",
		Name:     "Maria",
		Phone:    "5511988887777@s.whatsapp.net",
	})
	require.NoError(t, err)
	assert.Equal(t, "+5511988887777", created.Phone)
	assert.Equal(t, model.StageNew, created.Stage)
}

func TestCreateRejectsInvalidStage(t *testing.T) {
	svc := NewService(newFakeLeadRepo(), zap.NewNop())

	_, err := svc.Create(context.Background(), model.Lead{
		TenantID: "tenant-1",
		Name:     "Maria",
		Phone:    "+5511988887777",
		Stage:    "qualquer-coisa",
	})
	assert.Error(t, err)
}

func TestCreateFromMessageFallsBackToDefaultName(t *testing.T) {
	repo := newFakeLeadRepo()
	svc := NewService(repo, zap.NewNop())

	created, err := svc.CreateFromMessage(context.Background(), "tenant-1", "  ", "5511988887777@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "Contato WhatsApp", created.Name)
	assert.Equal(t, "+5511988887777", created.Phone)
	assert.Equal(t, model.StageNew, created.Stage)
}
