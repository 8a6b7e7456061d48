package handlers

import (
	"time"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/application/usecase"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// IAResponse IA 响应
type IAResponse struct {
	ID           uint             `json:"id"`
	Name         string           `json:"name"`
	PhoneNumber  string           `json:"phone_number"`
	Status       bool             `json:"status"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ActivePrompt *PromptResponse  `json:"active_prompt"`
	Prompts      []PromptResponse `json:"prompts"`
	Config       *ConfigResponse  `json:"config"`
}

// PromptResponse 提示词响应
type PromptResponse struct {
	ID        uint      `json:"id"`
	IAID      uint      `json:"ia_id"`
	IAName    string    `json:"ia_name,omitempty"`
	Text      string    `json:"text"`
	IsActive  bool      `json:"is_active"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConfigResponse 配置响应，凭据已脱敏
type ConfigResponse struct {
	ID               uint              `json:"id"`
	IAID             uint              `json:"ia_id"`
	Channel          string            `json:"channel"`
	AIAPI            string            `json:"ai_api"`
	Credentials      map[string]string `json:"credentials"`
	CredentialsError string            `json:"credentials_error,omitempty"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// LeadResponse 线索响应
type LeadResponse struct {
	ID        uint           `json:"id"`
	IAID      uint           `json:"ia_id"`
	IAName    string         `json:"ia_name,omitempty"`
	Name      *string        `json:"name"`
	Phone     *string        `json:"phone"`
	Message   map[string]any `json:"message"`
	Resume    *string        `json:"resume"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toIAResponse(row usecase.IASummary) IAResponse {
	ia := row.IA
	resp := IAResponse{
		ID:          ia.ID(),
		Name:        ia.Name(),
		PhoneNumber: ia.PhoneNumber(),
		Status:      ia.Enabled(),
		Version:     ia.Version(),
		CreatedAt:   ia.CreatedAt(),
		UpdatedAt:   ia.UpdatedAt(),
		Prompts:     make([]PromptResponse, 0, len(ia.Prompts())),
	}
	for _, p := range ia.Prompts() {
		resp.Prompts = append(resp.Prompts, toPromptResponse(p, ""))
	}
	if row.ActivePrompt != nil {
		active := toPromptResponse(row.ActivePrompt, "")
		resp.ActivePrompt = &active
	}
	if row.Config != nil {
		cfg := toConfigResponse(row.Config)
		resp.Config = &cfg
	}
	return resp
}

func toPromptResponse(p *entity.Prompt, iaName string) PromptResponse {
	return PromptResponse{
		ID:        p.ID(),
		IAID:      p.IAID(),
		IAName:    iaName,
		Text:      p.Text(),
		IsActive:  p.IsActive(),
		Version:   p.Version(),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

func toConfigResponse(view *usecase.ConfigView) ConfigResponse {
	cfg := view.Config
	creds := view.Credentials
	if creds == nil {
		creds = map[string]string{}
	}
	return ConfigResponse{
		ID:               cfg.ID(),
		IAID:             cfg.IAID(),
		Channel:          cfg.Channel(),
		AIAPI:            cfg.Provider(),
		Credentials:      creds,
		CredentialsError: view.CredentialsError,
		Version:          cfg.Version(),
		CreatedAt:        cfg.CreatedAt(),
		UpdatedAt:        cfg.UpdatedAt(),
	}
}

func toLeadResponse(l *entity.Lead, iaName string) LeadResponse {
	return LeadResponse{
		ID:        l.ID(),
		IAID:      l.IAID(),
		IAName:    iaName,
		Name:      l.Name(),
		Phone:     l.Phone(),
		Message:   l.Message(),
		Resume:    l.Resume(),
		CreatedAt: l.CreatedAt(),
		UpdatedAt: l.UpdatedAt(),
	}
}
