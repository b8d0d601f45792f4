package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
auth:
  jwt_secret: "0123456789abcdef-file"
hunt:
  sweep_interval: 2m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	t.Setenv("AURORA_SERVER_PORT", "9191")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("环境变量应覆盖配置文件，期望 9191，实际 %d", cfg.Server.Port)
	}
	if cfg.Hunt.SweepInterval != 2*time.Minute {
		t.Errorf("期望 sweep_interval=2m，实际 %v", cfg.Hunt.SweepInterval)
	}
	if cfg.Hunt.SweepLockTTL != time.Minute {
		t.Errorf("期望默认 sweep_lock_ttl=1m，实际 %v", cfg.Hunt.SweepLockTTL)
	}
	if cfg.Hunt.ExpirationWindow != 7*24*time.Hour || cfg.Hunt.RejectionThreshold != 3 {
		t.Errorf("期望默认有效期 7 天、拒绝阈值 3，实际 %v / %d", cfg.Hunt.ExpirationWindow, cfg.Hunt.RejectionThreshold)
	}
	if cfg.Database.Name != "aurora_addict" {
		t.Errorf("期望默认库名 aurora_addict，实际 %s", cfg.Database.Name)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8080},
			Auth:      AuthConfig{JWTSecret: "0123456789abcdef"},
			Hunt: HuntConfig{
				ExpirationWindow:   7 * 24 * time.Hour,
				RejectionThreshold: 3,
				SweepEnabled:       true,
				SweepInterval:      time.Minute,
			},
			RateLimit: RateLimitConfig{Enabled: true, Limit: 10, Window: time.Minute},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	cases := map[string]func(c *Config){
		"空密钥":     func(c *Config) { c.Auth.JWTSecret = "" },
		"密钥过短":    func(c *Config) { c.Auth.JWTSecret = "short" },
		"端口越界":    func(c *Config) { c.Server.Port = 70000 },
		"清理周期为0":  func(c *Config) { c.Hunt.SweepInterval = 0 },
		"拒绝阈值为0":  func(c *Config) { c.Hunt.RejectionThreshold = 0 },
		"限流窗口为0":  func(c *Config) { c.RateLimit.Window = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}
