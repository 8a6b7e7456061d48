package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

func TestLeadRepository_CreateAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	message := map[string]any{
		"text":  "hi",
		"tags":  []any{"warm", "inbound"},
		"score": 0.8,
	}
	lead, err := s.leads.Create(ctx, repository.CreateLeadInput{
		IAID:    ia.ID(),
		Name:    strPtr(" Ana "),
		Phone:   strPtr("+5511999990000"),
		Message: message,
		Resume:  strPtr("   "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", *lead.Name())
	assert.Nil(t, lead.Resume(), "blank optional fields are stored as NULL")

	found, err := s.leads.FindByID(ctx, lead.ID())
	require.NoError(t, err)
	assert.Equal(t, message, found.Message())
	assert.Equal(t, "+5511999990000", *found.Phone())

	listed, err := s.leads.FindByIAID(ctx, ia.ID())
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestLeadRepository_DuplicatePhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")
	other := s.createIA(t, "Other")

	in := repository.CreateLeadInput{
		IAID:    ia.ID(),
		Phone:   strPtr("+5511999990000"),
		Message: map[string]any{"text": "hi"},
	}
	_, err := s.leads.Create(ctx, in)
	require.NoError(t, err)

	_, err = s.leads.Create(ctx, in)
	assert.True(t, domainErrors.IsAlreadyExists(err), "got %v", err)

	// 唯一性是全局的，不区分 IA
	in.IAID = other.ID()
	_, err = s.leads.Create(ctx, in)
	assert.True(t, domainErrors.IsAlreadyExists(err), "got %v", err)

	assert.EqualValues(t, 1, s.count(t, &models.LeadModel{}, "phone = ?", "+5511999990000"))
}

func TestLeadRepository_NullPhonesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	for i := 0; i < 2; i++ {
		_, err := s.leads.Create(ctx, repository.CreateLeadInput{
			IAID:    ia.ID(),
			Message: map[string]any{"n": i},
		})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, s.count(t, &models.LeadModel{}, "phone IS NULL"))
}

// 绕过前置检查时，唯一索引冲突同样被翻译为 ALREADY_EXISTS
func TestLeadRepository_UniqueIndexTranslated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	phone := "+1-555-0142"
	_, err := s.leads.Create(ctx, repository.CreateLeadInput{IAID: ia.ID(), Phone: &phone, Message: map[string]any{}})
	require.NoError(t, err)

	raw := models.LeadModel{IAID: ia.ID(), Phone: &phone, Message: []byte(`{}`)}
	err = translateError(s.db.Create(&raw).Error, "lead")
	assert.True(t, domainErrors.IsAlreadyExists(err), "got %v", err)
}

func TestLeadRepository_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.leads.Create(ctx, repository.CreateLeadInput{IAID: 1})
	assert.True(t, domainErrors.IsInvalidInput(err), "missing message, got %v", err)

	_, err = s.leads.Create(ctx, repository.CreateLeadInput{IAID: 77, Message: map[string]any{"a": 1}})
	assert.True(t, domainErrors.IsNotFound(err), "unknown ia, got %v", err)
}

func TestLeadRepository_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	a, err := s.leads.Create(ctx, repository.CreateLeadInput{IAID: ia.ID(), Phone: strPtr("111"), Message: map[string]any{"v": 1}})
	require.NoError(t, err)
	b, err := s.leads.Create(ctx, repository.CreateLeadInput{IAID: ia.ID(), Phone: strPtr("222"), Message: map[string]any{"v": 2}})
	require.NoError(t, err)

	// 保持自己的号码不算冲突
	updated, err := s.leads.Update(ctx, a.ID(), repository.LeadPatch{
		Phone:   strPtr("111"),
		Message: map[string]any{"v": "changed"},
		Resume:  strPtr("called back"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": "changed"}, updated.Message())
	assert.Equal(t, "called back", *updated.Resume())
	assert.False(t, updated.UpdatedAt().Before(a.UpdatedAt()))

	_, err = s.leads.Update(ctx, b.ID(), repository.LeadPatch{Phone: strPtr("111")})
	assert.True(t, domainErrors.IsAlreadyExists(err), "got %v", err)

	// 空串清空可选字段
	cleared, err := s.leads.Update(ctx, b.ID(), repository.LeadPatch{Phone: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Phone())

	_, err = s.leads.Update(ctx, 999, repository.LeadPatch{Name: strPtr("x")})
	assert.True(t, domainErrors.IsNotFound(err))
}

func TestLeadRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	lead, err := s.leads.Create(ctx, repository.CreateLeadInput{IAID: ia.ID(), Message: map[string]any{}})
	require.NoError(t, err)

	require.NoError(t, s.leads.Delete(ctx, lead.ID()))
	assert.True(t, domainErrors.IsNotFound(s.leads.Delete(ctx, lead.ID())))
	_, err = s.leads.FindByID(ctx, lead.ID())
	assert.True(t, domainErrors.IsNotFound(err))
}
