package entity

import "time"

// CredentialCipher 凭据加解密边界，由基础设施层的 Vault 实现
type CredentialCipher interface {
	Encrypt(fields map[string]string) (string, error)
	Decrypt(token string) (map[string]string, error)
}

// IAConfig 助手的渠道与 AI 服务商配置，凭据只以密文形式保存
type IAConfig struct {
	id                   uint
	iaID                 uint
	channel              string
	provider             string
	encryptedCredentials string
	version              int
	createdAt            time.Time
	updatedAt            time.Time
}

// ReconstructIAConfig 重建配置（用于从持久化层恢复）
func ReconstructIAConfig(
	id, iaID uint,
	channel, provider, encryptedCredentials string,
	version int,
	createdAt, updatedAt time.Time,
) *IAConfig {
	return &IAConfig{
		id:                   id,
		iaID:                 iaID,
		channel:              channel,
		provider:             provider,
		encryptedCredentials: encryptedCredentials,
		version:              version,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

func (c *IAConfig) ID() uint { return c.id }
func (c *IAConfig) IAID() uint { return c.iaID }
func (c *IAConfig) Channel() string { return c.channel }
func (c *IAConfig) Version() int { return c.version }
func (c *IAConfig) CreatedAt() time.Time { return c.createdAt }
func (c *IAConfig) UpdatedAt() time.Time { return c.updatedAt }

// Provider 返回外部 AI 服务商标识（如 openai）
func (c *IAConfig) Provider() string {
	return c.provider
}

// EncryptedCredentials 返回凭据密文
func (c *IAConfig) EncryptedCredentials() string {
	return c.encryptedCredentials
}

// Credentials 解密凭据（派生视图，不持久化）
// 新建的空配置没有密文，返回空 map
func (c *IAConfig) Credentials(cipher CredentialCipher) (map[string]string, error) {
	if c.encryptedCredentials == "" {
		return map[string]string{}, nil
	}
	return cipher.Decrypt(c.encryptedCredentials)
}
