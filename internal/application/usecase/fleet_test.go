package usecase_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/config"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/monitoring"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/persistence"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/vault"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// recordingPublisher 记录已发布事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type())
	}
	return out
}

type fixture struct {
	svc     *usecase.FleetService
	events  *recordingPublisher
	metrics *monitoring.Metrics
	vault   *vault.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := persistence.NewDBConnection(&config.DatabaseConfig{
		Type:     "sqlite",
		DSN:      filepath.Join(t.TempDir(), "fleet.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = persistence.Close(db) })

	v, err := vault.New("fleet-test-secret")
	require.NoError(t, err)

	tx := persistence.NewTxManager(db)
	events := &recordingPublisher{}
	metrics := monitoring.NewMetrics()

	svc := usecase.NewFleetService(usecase.FleetDeps{
		IAs:     persistence.NewGormIARepository(db, tx, v),
		Prompts: persistence.NewGormPromptRepository(db, tx),
		Configs: persistence.NewGormConfigRepository(db, tx, v),
		Leads:   persistence.NewGormLeadRepository(db, tx),
		Tx:      tx,
		Cipher:  v,
		Events:  events,
		Metrics: metrics,
	})
	return &fixture{svc: svc, events: events, metrics: metrics, vault: v}
}

func strPtr(s string) *string { return &s }

func TestFleetService_CreateIAPublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{
		Name:        "Bot1",
		PhoneNumber: "+10000",
		Config:      &repository.ConfigInput{Channel: "whatsapp", Provider: "openai", Credentials: map[string]string{"api_key": "X"}},
	})
	require.NoError(t, err)
	assert.NotZero(t, ia.ID())
	assert.Equal(t, []string{eventbus.EventTypeIACreated, eventbus.EventTypeConfigUpdated}, f.events.types())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("CreateIA", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues(eventbus.EventTypeIACreated)))
}

func TestFleetService_FailuresDoNotPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "", PhoneNumber: "1"})
	assert.True(t, domainErrors.IsInvalidInput(err))

	err = f.svc.DeleteIA(ctx, 99)
	assert.True(t, domainErrors.IsNotFound(err))

	err = f.svc.DeletePrompt(ctx, 99)
	assert.True(t, domainErrors.IsNotFound(err))

	assert.Empty(t, f.events.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OperationsTotal.WithLabelValues("DeleteIA", "NOT_FOUND")))
}

// createIA → getOrCreateConfig → updateConfig → 读回的凭据与写入完全一致
func TestFleetService_ConfigRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Bot1", PhoneNumber: "+10000"})
	require.NoError(t, err)
	_, err = f.svc.GetOrCreateConfig(ctx, ia.ID())
	require.NoError(t, err)

	creds := map[string]string{"api_key": "X", "model": "gpt-4"}
	_, err = f.svc.UpdateConfig(ctx, ia.ID(), repository.ConfigPatch{
		Channel:     strPtr("whatsapp"),
		Provider:    strPtr("openai"),
		Credentials: creds,
	})
	require.NoError(t, err)

	got, err := f.svc.RevealCredentials(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	cfg, err := f.svc.FindConfig(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", cfg.Channel())
}

func TestFleetService_UpsertConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Bot1", PhoneNumber: "+10000"})
	require.NoError(t, err)

	cfg, err := f.svc.UpsertConfig(ctx, ia.ID(), repository.ConfigPatch{
		Channel:     strPtr("whatsapp"),
		Credentials: map[string]string{"api_key": "X", "model": "gpt-4"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", cfg.Channel())
	assert.Equal(t, 2, cfg.Version())
	assert.Equal(t, []string{eventbus.EventTypeIACreated, eventbus.EventTypeConfigUpdated}, f.events.types())

	// 合并：只覆盖给出的键
	_, err = f.svc.UpsertConfig(ctx, ia.ID(), repository.ConfigPatch{
		Credentials: map[string]string{"model": "gpt-4o", "region": "eu"},
	}, true)
	require.NoError(t, err)
	got, err := f.svc.RevealCredentials(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "X", "model": "gpt-4o", "region": "eu"}, got)

	// 替换：凭据整体覆盖
	cfg, err = f.svc.UpsertConfig(ctx, ia.ID(), repository.ConfigPatch{
		Credentials: map[string]string{"api_key": "Y"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Version())
	got, err = f.svc.RevealCredentials(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "Y"}, got)
}

// 校验失败或版本冲突时不留下空配置
func TestFleetService_UpsertConfigRejectsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Bot1", PhoneNumber: "+10000"})
	require.NoError(t, err)

	_, err = f.svc.UpsertConfig(ctx, ia.ID(), repository.ConfigPatch{Channel: strPtr("   ")}, false)
	assert.True(t, domainErrors.IsInvalidInput(err), "got %v", err)

	stale := 5
	_, err = f.svc.UpsertConfig(ctx, ia.ID(), repository.ConfigPatch{Channel: strPtr("sms"), ExpectedVersion: &stale}, false)
	assert.True(t, domainErrors.IsConflict(err), "got %v", err)

	_, err = f.svc.FindConfig(ctx, ia.ID())
	assert.True(t, domainErrors.IsNotFound(err), "got %v", err)
	assert.Equal(t, []string{eventbus.EventTypeIACreated}, f.events.types())

	_, err = f.svc.UpsertConfig(ctx, 999, repository.ConfigPatch{Channel: strPtr("sms")}, false)
	assert.True(t, domainErrors.IsNotFound(err), "got %v", err)
}

// createIA 后立即 deleteIA：提示词为空，配置 NotFound
func TestFleetService_DeleteIA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Temp", PhoneNumber: "1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteIA(ctx, ia.ID()))

	prompts, err := f.svc.ListPromptsForIA(ctx, ia.ID())
	require.NoError(t, err)
	assert.Empty(t, prompts)
	_, err = f.svc.FindConfig(ctx, ia.ID())
	assert.True(t, domainErrors.IsNotFound(err))
	assert.Contains(t, f.events.types(), eventbus.EventTypeIADeleted)
}

func TestFleetService_LeadPhoneUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Bot", PhoneNumber: "1"})
	require.NoError(t, err)

	in := repository.CreateLeadInput{IAID: ia.ID(), Phone: strPtr("+5511999990000"), Message: map[string]any{"text": "hi"}}
	_, err = f.svc.CreateLead(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.CreateLead(ctx, in)
	assert.True(t, domainErrors.IsAlreadyExists(err), "got %v", err)

	leads, err := f.svc.ListLeadsForIA(ctx, ia.ID())
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	detail, err := f.svc.GetLeadDetail(ctx, leads[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "Bot", detail.IAName)
}

func TestFleetService_SetActivePrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Bot", PhoneNumber: "1"})
	require.NoError(t, err)

	first, err := f.svc.CreatePrompt(ctx, repository.CreatePromptInput{IAID: ia.ID(), Text: "one", Active: true})
	require.NoError(t, err)
	second, err := f.svc.CreatePrompt(ctx, repository.CreatePromptInput{IAID: ia.ID(), Text: "two"})
	require.NoError(t, err)

	_, err = f.svc.SetActivePrompt(ctx, ia.ID(), second.ID())
	require.NoError(t, err)

	loaded, err := f.svc.GetIA(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, second.ID(), loaded.ActivePrompt().ID())

	p, err := f.svc.GetPrompt(ctx, first.ID())
	require.NoError(t, err)
	assert.False(t, p.IsActive())
}

func TestFleetService_DashboardMasksCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withCfg, err := f.svc.CreateIA(ctx, repository.CreateIAInput{
		Name: "A", PhoneNumber: "1",
		Config: &repository.ConfigInput{Channel: "sms", Provider: "openai", Credentials: map[string]string{
			"api_key":  "sk-live-1234567890",
			"ai_model": "gpt-4o",
		}},
	})
	require.NoError(t, err)
	_, err = f.svc.CreatePrompt(ctx, repository.CreatePromptInput{IAID: withCfg.ID(), Text: "hello", Active: true})
	require.NoError(t, err)
	_, err = f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "B", PhoneNumber: "2"})
	require.NoError(t, err)

	rows, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Config)
	assert.Equal(t, "****7890", rows[0].Config.Credentials["api_key"])
	assert.Equal(t, "****", rows[0].Config.Credentials["ai_model"])
	assert.Equal(t, "hello", rows[0].ActivePrompt.Text())

	assert.Nil(t, rows[1].Config)
	assert.Nil(t, rows[1].ActivePrompt)
}

func TestFleetService_EditIA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Old", PhoneNumber: "1"})
	require.NoError(t, err)

	disabled := false
	edited, err := f.svc.EditIA(ctx, ia.ID(), usecase.EditIAInput{
		IAPatch:  repository.IAPatch{Name: strPtr("New"), Enabled: &disabled},
		Channel:  strPtr("whatsapp"),
		Provider: strPtr(" openai "),
		APIKey:   strPtr("  sk-abc  "),
		Model:    strPtr(" gpt-4o\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "New", edited.Name())
	assert.False(t, edited.Enabled())
	require.NotNil(t, edited.Config())
	assert.Equal(t, "openai", edited.Config().Provider())

	creds, err := f.svc.RevealCredentials(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "sk-abc", "ai_model": "gpt-4o"}, creds)

	// 第二次只改模型，api_key 保留
	_, err = f.svc.EditIA(ctx, ia.ID(), usecase.EditIAInput{Model: strPtr("gpt-4o-mini")})
	require.NoError(t, err)
	creds, err = f.svc.RevealCredentials(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "sk-abc", "ai_model": "gpt-4o-mini"}, creds)
}

func TestFleetService_EditIARejectsBlankChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ia, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Keep", PhoneNumber: "1"})
	require.NoError(t, err)

	// 配置字段校验失败时 IA 字段也不落库
	_, err = f.svc.EditIA(ctx, ia.ID(), usecase.EditIAInput{
		IAPatch: repository.IAPatch{Name: strPtr("Changed")},
		Channel: strPtr("   "),
	})
	require.Error(t, err)

	loaded, err := f.svc.GetIA(ctx, ia.ID())
	require.NoError(t, err)
	assert.Equal(t, "Keep", loaded.Name())
	assert.Nil(t, loaded.Config())
}

func TestFleetService_ListPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Alpha", PhoneNumber: "1"})
	require.NoError(t, err)
	b, err := f.svc.CreateIA(ctx, repository.CreateIAInput{Name: "Beta", PhoneNumber: "2"})
	require.NoError(t, err)
	_, err = f.svc.CreatePrompt(ctx, repository.CreatePromptInput{IAID: b.ID(), Text: "b"})
	require.NoError(t, err)
	_, err = f.svc.CreatePrompt(ctx, repository.CreatePromptInput{IAID: a.ID(), Text: "a"})
	require.NoError(t, err)

	rows, err := f.svc.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].IAName)
	assert.Equal(t, "Beta", rows[1].IAName)
}

func TestFleetService_Seed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file, err := usecase.ParseSeed(strings.NewReader(`
ias:
  - name: Sales
    phone_number: "+15550100"
    config:
      channel: whatsapp
      ai_api: openai
      credentials: {api_key: sk-1, ai_model: gpt-4o}
    prompts:
      - text: first
      - text: second
        active: true
  - name: Support
    phone_number: "+15550101"
    status: false
`))
	require.NoError(t, err)

	report, err := f.svc.Seed(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, usecase.SeedReport{IAs: 2, Prompts: 2}, report)

	ias, err := f.svc.ListIAs(ctx)
	require.NoError(t, err)
	require.Len(t, ias, 2)
	assert.Equal(t, "second", ias[0].ActivePrompt().Text())
	assert.False(t, ias[1].Enabled())

	creds, err := f.svc.RevealCredentials(ctx, ias[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "sk-1", creds["api_key"])
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "ias:\n  - name: x\n    colour: red\n"},
		{"two active prompts", "ias:\n  - name: x\n    prompts:\n      - {text: a, active: true}\n      - {text: b, active: true}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecase.ParseSeed(strings.NewReader(tt.doc))
			assert.True(t, domainErrors.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestFleetService_SeedStopsOnInvalidItem(t *testing.T) {
	f := newFixture(t)

	file := &usecase.SeedFile{IAs: []usecase.SeedIA{
		{Name: "Good", PhoneNumber: "1"},
		{Name: "Bad", PhoneNumber: "2", Prompts: []usecase.SeedPrompt{{Text: "  "}}},
	}}
	report, err := f.svc.Seed(context.Background(), file)
	require.Error(t, err)
	assert.True(t, domainErrors.IsInvalidInput(err), "got %v", err)
	assert.Equal(t, 1, report.IAs)

	ias, err := f.svc.ListIAs(context.Background())
	require.NoError(t, err)
	require.Len(t, ias, 1, "the failed item must roll back its IA row")
	assert.Equal(t, "Good", ias[0].Name())
}

func TestMaskSecret(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"short", "****"},
		{"12345678", "****"},
		{"123456789", "****6789"},
		{"sk-ünïcødé-key", "****-key"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usecase.MaskSecret(tt.in), tt.in)
	}
}
