package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AppName is the canonical application name
const AppName = "iafleet"

// HomeDir returns the user's configuration home: ~/.iafleet
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures ~/.iafleet/config.yaml exists.
// Existing files are never overwritten.
func Bootstrap(logger *zap.Logger) error {
	return bootstrapAt(HomeDir(), logger)
}

func bootstrapAt(root string, logger *zap.Logger) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", root, err)
	}

	path := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		logger.Debug("iafleet home directory OK", zap.String("home", root))
		return nil
	}

	content, err := RenderDefault()
	if err != nil {
		return err
	}
	// 配置文件可能写入密钥，仅限当前用户读写
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	logger.Info("iafleet bootstrap complete", zap.String("config", path))
	return nil
}

// RenderDefault renders the default configuration as commented YAML.
func RenderDefault() ([]byte, error) {
	var body bytes.Buffer
	enc := yaml.NewEncoder(&body)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("render default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render default config: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(defaultHeader)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

const defaultHeader = `# iafleet configuration / iafleet 配置文件
# Auto-generated on first launch, feel free to edit.
# Environment overrides: IAFLEET_<SECTION>_<KEY>, e.g. IAFLEET_SERVER_PORT=9090.
# Legacy variables DATABASE_URL and SECRET_KEY are honoured as well.
# vault.secret_key must be set before credentials can be stored.
`
