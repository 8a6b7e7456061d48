package entity

import (
	"strings"
	"time"
)

// IA 助手聚合根
// 一个 IA 拥有多个 Prompt、至多一个 IAConfig 以及多个 Lead，删除时级联删除全部子记录
type IA struct {
	id          uint
	name        string
	phoneNumber string
	enabled     bool
	version     int
	createdAt   time.Time
	updatedAt   time.Time

	prompts []*Prompt
	config  *IAConfig
	leads   []*Lead
}

// NewIA 创建新的助手（工厂方法）
func NewIA(name, phoneNumber string, enabled bool) (*IA, error) {
	name = strings.TrimSpace(name)
	phoneNumber = strings.TrimSpace(phoneNumber)
	if name == "" {
		return nil, ErrInvalidIAName
	}
	if phoneNumber == "" {
		return nil, ErrInvalidPhoneNumber
	}

	now := time.Now().UTC()
	return &IA{
		name:        name,
		phoneNumber: phoneNumber,
		enabled:     enabled,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructIA 重建助手（用于从持久化层恢复）
func ReconstructIA(
	id uint,
	name, phoneNumber string,
	enabled bool,
	version int,
	createdAt, updatedAt time.Time,
) *IA {
	return &IA{
		id:          id,
		name:        name,
		phoneNumber: phoneNumber,
		enabled:     enabled,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID 返回助手ID
func (a *IA) ID() uint {
	return a.id
}

// Name 返回助手名称
func (a *IA) Name() string {
	return a.name
}

// PhoneNumber 返回助手绑定的号码
func (a *IA) PhoneNumber() string {
	return a.phoneNumber
}

// Enabled 返回助手是否启用
func (a *IA) Enabled() bool {
	return a.enabled
}

// Status returns "enabled" or "disabled".
func (a *IA) Status() string {
	if a.enabled {
		return "enabled"
	}
	return "disabled"
}

// Version 返回乐观锁版本号
func (a *IA) Version() int {
	return a.version
}

// CreatedAt 返回创建时间
func (a *IA) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt 返回更新时间
func (a *IA) UpdatedAt() time.Time {
	return a.updatedAt
}

// Prompts 返回已加载的提示词列表（副本）
func (a *IA) Prompts() []*Prompt {
	prompts := make([]*Prompt, len(a.prompts))
	copy(prompts, a.prompts)
	return prompts
}

// Config 返回已加载的配置，未配置时返回 nil
func (a *IA) Config() *IAConfig {
	return a.config
}

// Leads 返回已加载的线索列表（副本）
func (a *IA) Leads() []*Lead {
	leads := make([]*Lead, len(a.leads))
	copy(leads, a.leads)
	return leads
}

// AttachPrompts 挂载提示词集合（持久化层预加载时使用）
func (a *IA) AttachPrompts(prompts []*Prompt) {
	a.prompts = prompts
}

// AttachConfig 挂载配置
func (a *IA) AttachConfig(config *IAConfig) {
	a.config = config
}

// AttachLeads 挂载线索集合
func (a *IA) AttachLeads(leads []*Lead) {
	a.leads = leads
}

// ActivePrompt 返回当前激活的提示词，没有激活项时返回 nil
func (a *IA) ActivePrompt() *Prompt {
	return a.ActivePromptWith(DefaultPromptSelector)
}

// ActivePromptWith 使用指定的选择策略解析激活提示词
func (a *IA) ActivePromptWith(selector PromptSelector) *Prompt {
	if selector == nil {
		selector = DefaultPromptSelector
	}
	return selector.SelectActive(a.prompts)
}
