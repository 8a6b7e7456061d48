package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// IASummary 看板中的一行：IA、当前激活提示词与脱敏后的配置
type IASummary struct {
	IA           *entity.IA
	ActivePrompt *entity.Prompt
	Config       *ConfigView
}

// ConfigView 配置及其脱敏凭据
type ConfigView struct {
	Config      *entity.IAConfig
	Credentials map[string]string
	// CredentialsError 非空表示密文无法解密（密钥更换或数据损坏）
	CredentialsError string
}

// PromptOverview 跨 IA 的提示词列表项
type PromptOverview struct {
	Prompt *entity.Prompt
	IAName string
}

// LeadDetail 单条线索及所属 IA 名称
type LeadDetail struct {
	Lead   *entity.Lead
	IAName string
}

// Dashboard 返回全部 IA 的概览
func (s *FleetService) Dashboard(ctx context.Context) (rows []IASummary, err error) {
	defer s.observe("Dashboard", time.Now(), &err)

	ias, err := s.ias.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	rows = make([]IASummary, 0, len(ias))
	for _, ia := range ias {
		rows = append(rows, s.Summarize(ia))
	}
	return rows, nil
}

// IADetail 返回单个 IA 的概览
func (s *FleetService) IADetail(ctx context.Context, id uint) (row *IASummary, err error) {
	defer s.observe("IADetail", time.Now(), &err)

	ia, err := s.ias.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := s.Summarize(ia)
	return &summary, nil
}

// Summarize 组装 IA 概览，配置凭据脱敏
func (s *FleetService) Summarize(ia *entity.IA) IASummary {
	row := IASummary{IA: ia, ActivePrompt: ia.ActivePrompt()}
	if cfg := ia.Config(); cfg != nil {
		row.Config = s.maskedView(cfg)
	}
	return row
}

// ConfigView 返回 IA 配置的脱敏视图
func (s *FleetService) ConfigView(ctx context.Context, iaID uint) (view *ConfigView, err error) {
	defer s.observe("ConfigView", time.Now(), &err)

	cfg, err := s.configs.FindByIAID(ctx, iaID)
	if err != nil {
		return nil, err
	}
	return s.maskedView(cfg), nil
}

// RevealCredentials 返回解密后的凭据明文，仅供本地 CLI 使用
func (s *FleetService) RevealCredentials(ctx context.Context, iaID uint) (creds map[string]string, err error) {
	defer s.observe("RevealCredentials", time.Now(), &err)

	cfg, err := s.configs.FindByIAID(ctx, iaID)
	if err != nil {
		return nil, err
	}
	return cfg.Credentials(s.cipher)
}

// ListPrompts 列出全部提示词及所属 IA 名称
func (s *FleetService) ListPrompts(ctx context.Context) (rows []PromptOverview, err error) {
	defer s.observe("ListPrompts", time.Now(), &err)

	ias, err := s.ias.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(ias))
	for _, ia := range ias {
		names[ia.ID()] = ia.Name()
	}

	prompts, err := s.prompts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	rows = make([]PromptOverview, 0, len(prompts))
	for _, p := range prompts {
		rows = append(rows, PromptOverview{Prompt: p, IAName: names[p.IAID()]})
	}
	return rows, nil
}

// GetLeadDetail 获取线索及所属 IA 名称
func (s *FleetService) GetLeadDetail(ctx context.Context, id uint) (detail *LeadDetail, err error) {
	defer s.observe("GetLeadDetail", time.Now(), &err)

	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ia, err := s.ias.FindByID(ctx, lead.IAID())
	if err != nil {
		return nil, err
	}
	return &LeadDetail{Lead: lead, IAName: ia.Name()}, nil
}

func (s *FleetService) maskedView(cfg *entity.IAConfig) *ConfigView {
	view := &ConfigView{Config: cfg}
	creds, err := cfg.Credentials(s.cipher)
	if err != nil {
		s.logger.Warn("Credentials cannot be decrypted",
			zap.Uint("ia_id", cfg.IAID()),
			zap.Error(err),
		)
		view.CredentialsError = "credentials cannot be decrypted"
		return view
	}
	view.Credentials = MaskCredentials(creds)
	return view
}

// MaskCredentials 对凭据值脱敏，只保留末尾 4 位
func MaskCredentials(creds map[string]string) map[string]string {
	masked := make(map[string]string, len(creds))
	for k, v := range creds {
		masked[k] = MaskSecret(v)
	}
	return masked
}

// MaskSecret 脱敏单个值；短于 9 个字符的值完全隐藏
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	r := []rune(v)
	if len(r) <= 8 {
		return "****"
	}
	return strings.Repeat("*", 4) + string(r[len(r)-4:])
}

// SortedKeys 返回凭据键的有序列表，便于稳定输出
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
