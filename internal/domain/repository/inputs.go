package repository

// CreateIAInput 创建助手参数；Enabled 为 nil 时默认启用
type CreateIAInput struct {
	Name        string       `json:"name" validate:"notblank"`
	PhoneNumber string       `json:"phone_number" validate:"notblank"`
	Enabled     *bool        `json:"status,omitempty"`
	Config      *ConfigInput `json:"config,omitempty"`
}

// ConfigInput 初始配置参数，凭据按原样加密保存
type ConfigInput struct {
	Channel     string            `json:"channel" yaml:"channel" validate:"notblank"`
	Provider    string            `json:"ai_api" yaml:"ai_api" validate:"notblank"`
	Credentials map[string]string `json:"credentials" yaml:"credentials"`
}

// IsEnabled 返回创建时的启用状态，未指定时为 true
func (in CreateIAInput) IsEnabled() bool {
	return in.Enabled == nil || *in.Enabled
}

// IAPatch 助手部分更新，nil 字段保持不变。
// ExpectedVersion 非空时与当前版本不符返回 CONFLICT
type IAPatch struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,notblank"`
	PhoneNumber     *string `json:"phone_number,omitempty" validate:"omitempty,notblank"`
	Enabled         *bool   `json:"status,omitempty"`
	ExpectedVersion *int    `json:"version,omitempty" validate:"omitempty,min=1"`
}

// IsEmpty 判断补丁是否没有任何字段
func (p IAPatch) IsEmpty() bool {
	return p.Name == nil && p.PhoneNumber == nil && p.Enabled == nil
}

// CreatePromptInput 创建提示词参数
type CreatePromptInput struct {
	IAID   uint   `json:"ia_id" validate:"required"`
	Text   string `json:"text" validate:"notblank"`
	Active bool   `json:"is_active"`
}

// PromptPatch 提示词部分更新
type PromptPatch struct {
	Text            *string `json:"text,omitempty" validate:"omitempty,notblank"`
	Active          *bool   `json:"is_active,omitempty"`
	ExpectedVersion *int    `json:"version,omitempty" validate:"omitempty,min=1"`
}

// IsEmpty 判断补丁是否没有任何字段
func (p PromptPatch) IsEmpty() bool {
	return p.Text == nil && p.Active == nil
}

// ConfigPatch 配置部分更新；Credentials 为 nil 时保留原密文
type ConfigPatch struct {
	Channel         *string           `json:"channel,omitempty" validate:"omitempty,notblank"`
	Provider        *string           `json:"ai_api,omitempty" validate:"omitempty,notblank"`
	Credentials     map[string]string `json:"credentials,omitempty"`
	ExpectedVersion *int              `json:"version,omitempty" validate:"omitempty,min=1"`
}

// IsEmpty 判断补丁是否没有任何字段
func (p ConfigPatch) IsEmpty() bool {
	return p.Channel == nil && p.Provider == nil && p.Credentials == nil
}

// CreateLeadInput 创建线索参数
type CreateLeadInput struct {
	IAID    uint           `json:"ia_id" validate:"required"`
	Name    *string        `json:"name,omitempty"`
	Phone   *string        `json:"phone,omitempty"`
	Message map[string]any `json:"message" validate:"required"`
	Resume  *string        `json:"resume,omitempty"`
}

// LeadPatch 线索部分更新；可空字段传空串表示清空
type LeadPatch struct {
	Name    *string        `json:"name,omitempty"`
	Phone   *string        `json:"phone,omitempty"`
	Message map[string]any `json:"message,omitempty"`
	Resume  *string        `json:"resume,omitempty"`
}

// IsEmpty 判断补丁是否没有任何字段
func (p LeadPatch) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Message == nil && p.Resume == nil
}
