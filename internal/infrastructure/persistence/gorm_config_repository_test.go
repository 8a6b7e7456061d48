package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

func TestConfigRepository_GetOrCreateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	first, err := s.configs.GetOrCreate(ctx, ia.ID())
	require.NoError(t, err)
	second, err := s.configs.GetOrCreate(ctx, ia.ID())
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.EqualValues(t, 1, s.count(t, &models.IAConfigModel{}, "ia_id = ?", ia.ID()))

	assert.Empty(t, first.Channel())
	assert.Empty(t, first.Provider())
	creds, err := first.Credentials(s.vault)
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestConfigRepository_GetOrCreateConcurrent(t *testing.T) {
	s := newTestStore(t)
	ia := s.createIA(t, "Bot")

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := s.configs.GetOrCreate(context.Background(), ia.ID())
			errs[i] = err
			if err == nil {
				ids[i] = cfg.ID()
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.EqualValues(t, 1, s.count(t, &models.IAConfigModel{}, "ia_id = ?", ia.ID()))
}

// 另一个调用方在查询与插入之间写入配置：返回其行，外层事务仍可继续写入
func TestConfigRepository_GetOrCreateLosesInsertRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")
	token, err := s.vault.Encrypt(map[string]string{"api_key": "winner"})
	require.NoError(t, err)

	raced := false
	err = s.db.Callback().Create().Before("gorm:create").Register("test:config_race", func(db *gorm.DB) {
		if raced || db.Statement.Schema == nil || db.Statement.Schema.Table != "ia_config" {
			return
		}
		raced = true
		now := time.Now().UTC()
		_, err := db.Statement.ConnPool.ExecContext(db.Statement.Context,
			"INSERT INTO ia_config (ia_id, channel, ai_api, encrypted_credentials, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			ia.ID(), "winner", "", token, 1, now, now)
		if err != nil {
			_ = db.AddError(err)
		}
	})
	require.NoError(t, err)

	var got, updated *entity.IAConfig
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if got, err = s.configs.GetOrCreate(ctx, ia.ID()); err != nil {
			return err
		}
		updated, err = s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Provider: strPtr("openai")})
		return err
	})
	require.NoError(t, err)
	require.True(t, raced)

	assert.Equal(t, "winner", got.Channel())
	assert.Equal(t, got.ID(), updated.ID())
	assert.Equal(t, "openai", updated.Provider())
	creds, err := updated.Credentials(s.vault)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "winner"}, creds)
	assert.EqualValues(t, 1, s.count(t, &models.IAConfigModel{}, "ia_id = ?", ia.ID()))
}

func TestConfigRepository_GetOrCreateUnknownIA(t *testing.T) {
	s := newTestStore(t)

	_, err := s.configs.GetOrCreate(context.Background(), 404)
	assert.True(t, domainErrors.IsNotFound(err), "got %v", err)
	assert.Zero(t, s.count(t, &models.IAConfigModel{}, "1 = 1"))
}

// createIA → GetOrCreate → Update → 读回凭据与写入时完全一致
func TestConfigRepository_UpdateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ia, err := s.ias.Create(ctx, repository.CreateIAInput{Name: "Bot1", PhoneNumber: "+10000"})
	require.NoError(t, err)
	cfg, err := s.configs.GetOrCreate(ctx, ia.ID())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	creds := map[string]string{"api_key": "X", "model": "gpt-4"}
	updated, err := s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{
		Channel:     strPtr("whatsapp"),
		Provider:    strPtr("openai"),
		Credentials: creds,
	})
	require.NoError(t, err)
	assert.Equal(t, cfg.ID(), updated.ID())
	assert.Equal(t, cfg.Version()+1, updated.Version())
	assert.True(t, updated.UpdatedAt().After(cfg.UpdatedAt()))
	assert.True(t, cfg.CreatedAt().Equal(updated.CreatedAt()))

	read, err := s.configs.FindByIAID(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", read.Channel())
	assert.Equal(t, "openai", read.Provider())
	got, err := read.Credentials(s.vault)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestConfigRepository_UpdateKeepsCredentialsWhenOmitted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")
	_, err := s.configs.GetOrCreate(ctx, ia.ID())
	require.NoError(t, err)

	_, err = s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Credentials: map[string]string{"api_key": "keep"}})
	require.NoError(t, err)
	_, err = s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Channel: strPtr("sms")})
	require.NoError(t, err)

	read, err := s.configs.FindByIAID(ctx, ia.ID())
	require.NoError(t, err)
	got, err := read.Credentials(s.vault)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "keep"}, got)
	assert.Equal(t, "sms", read.Channel())
}

func TestConfigRepository_UpdateErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	_, err := s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Channel: strPtr("sms")})
	assert.True(t, domainErrors.IsNotFound(err), "no config yet, got %v", err)

	_, err = s.configs.GetOrCreate(ctx, ia.ID())
	require.NoError(t, err)

	_, err = s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Channel: strPtr("sms"), ExpectedVersion: intPtr(7)})
	assert.True(t, domainErrors.IsConflict(err), "got %v", err)

	_, err = s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Provider: strPtr("  ")})
	assert.True(t, domainErrors.IsInvalidInput(err), "got %v", err)
}

func TestConfigRepository_TamperedTokenFailsDecrypt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ia := s.createIA(t, "Bot")

	_, err := s.configs.GetOrCreate(ctx, ia.ID())
	require.NoError(t, err)
	_, err = s.configs.Update(ctx, ia.ID(), repository.ConfigPatch{Credentials: map[string]string{"k": "v"}})
	require.NoError(t, err)

	// 直接改写密文模拟篡改
	require.NoError(t, s.db.Model(&models.IAConfigModel{}).
		Where("ia_id = ?", ia.ID()).
		Update("encrypted_credentials", "v1.AAAA").Error)

	read, err := s.configs.FindByIAID(ctx, ia.ID())
	require.NoError(t, err)
	_, err = read.Credentials(s.vault)
	assert.True(t, domainErrors.IsDecryption(err), "got %v", err)
}
