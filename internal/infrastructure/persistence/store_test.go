package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/config"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/vault"
)

// testStore 基于临时 SQLite 文件的仓储集合
type testStore struct {
	db      *gorm.DB
	tx      repository.TxManager
	vault   *vault.Vault
	ias     repository.IARepository
	prompts repository.PromptRepository
	configs repository.ConfigRepository
	leads   repository.LeadRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	db, err := NewDBConnection(&config.DatabaseConfig{
		Type:     "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	v, err := vault.New("test-secret")
	require.NoError(t, err)

	tx := NewTxManager(db)
	return &testStore{
		db:      db,
		tx:      tx,
		vault:   v,
		ias:     NewGormIARepository(db, tx, v),
		prompts: NewGormPromptRepository(db, tx),
		configs: NewGormConfigRepository(db, tx, v),
		leads:   NewGormLeadRepository(db, tx),
	}
}

func (s *testStore) createIA(t *testing.T, name string) *entity.IA {
	t.Helper()
	ia, err := s.ias.Create(context.Background(), repository.CreateIAInput{
		Name:        name,
		PhoneNumber: "+1-555-0100",
	})
	require.NoError(t, err)
	return ia
}

func (s *testStore) createPrompt(t *testing.T, iaID uint, text string, active bool) *entity.Prompt {
	t.Helper()
	p, err := s.prompts.Create(context.Background(), repository.CreatePromptInput{
		IAID:   iaID,
		Text:   text,
		Active: active,
	})
	require.NoError(t, err)
	return p
}

func (s *testStore) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

// failOn 注入 gorm 回调，使指定表上的操作失败
func failOn(t *testing.T, db *gorm.DB, op, table string) {
	t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == table {
			_ = tx.AddError(errors.New("injected failure"))
		}
	}

	var err error
	switch op {
	case "create":
		err = db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, fail)
	case "delete":
		err = db.Callback().Delete().Before("gorm:delete").Register("test:fail_"+table, fail)
	case "update":
		err = db.Callback().Update().Before("gorm:update").Register("test:fail_"+table, fail)
	default:
		t.Fatalf("unknown op %q", op)
	}
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
