// Package vault 凭据加解密。
//
// 凭据 map 先序列化为 JSON，再用 XChaCha20-Poly1305 加密；密钥由进程配置中的
// secret 经 HKDF-SHA256 派生，进程生命周期内不变。令牌格式：
//
//	v1.<base64url(nonce || ciphertext || tag)>
//
// 版本前缀同时作为附加认证数据，篡改、截断或换钥都会在 Open 时失败。
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

const (
	tokenPrefix = "v1."
	hkdfSalt    = "iafleet/vault"
	hkdfInfo    = "credentials/v1"
)

// ErrEmptySecret 未配置密钥
var ErrEmptySecret = errors.New("vault secret key is empty")

// Vault 凭据保险箱，构造后只读，可并发使用
type Vault struct {
	aead cipher.AEAD
}

// New 由进程级 secret 派生密钥并创建 Vault
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(hkdfSalt), []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init vault cipher: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt 加密凭据字段，返回可直接入库的令牌
func (v *Vault) Encrypt(fields map[string]string) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	plaintext, err := json.Marshal(fields)
	if err != nil {
		return "", domainErrors.NewInternalErrorWithCause("serialize credentials", err)
	}

	nonceSize := v.aead.NonceSize()
	buf := make([]byte, nonceSize, nonceSize+len(plaintext)+v.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", domainErrors.NewInternalErrorWithCause("generate nonce", err)
	}

	sealed := v.aead.Seal(buf, buf[:nonceSize], plaintext, []byte(tokenPrefix))
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密令牌；格式错误、密钥不符或被篡改时返回 DECRYPTION_FAILED
func (v *Vault) Decrypt(token string) (map[string]string, error) {
	encoded, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return nil, domainErrors.NewDecryptionError("unsupported credential token format", nil)
	}

	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domainErrors.NewDecryptionError("malformed credential token", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(sealed) < nonceSize+v.aead.Overhead() {
		return nil, domainErrors.NewDecryptionError("credential token too short", nil)
	}

	plaintext, err := v.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(tokenPrefix))
	if err != nil {
		return nil, domainErrors.NewDecryptionError("credential token failed authentication", err)
	}

	fields := map[string]string{}
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, domainErrors.NewDecryptionError("credential payload is not a field map", err)
	}
	if fields == nil {
		fields = map[string]string{}
	}
	return fields, nil
}
