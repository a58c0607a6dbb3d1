package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Optimizer.Mode != "cached_llm" || cfg.Optimizer.Goal != "balanced" {
		t.Errorf("unexpected optimizer defaults: %+v", cfg.Optimizer)
	}
	if cfg.Optimizer.DailyBudget != 1.0 || cfg.Optimizer.MonthlyBudget != 25.0 {
		t.Errorf("unexpected budget defaults: %+v", cfg.Optimizer)
	}
	if !cfg.Cache.Enabled || cfg.Cache.EvictionPolicy != "mixed" {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Audit.Enabled {
		t.Error("auditing should default off")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	content := `logging:
  level: debug
optimizer:
  mode: local_only
  goal: reduce_tokens
  daily_budget: 0.5
cache:
  enabled: false
  eviction_policy: lru
security:
  allowed_paths:
    - "/tmp/work"
audit:
  enabled: true
  retention_days: 7
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level: %s", cfg.Logging.Level)
	}
	if cfg.Optimizer.Mode != "local_only" || cfg.Optimizer.Goal != "reduce_tokens" {
		t.Errorf("optimizer not overridden: %+v", cfg.Optimizer)
	}
	if cfg.Optimizer.DailyBudget != 0.5 {
		t.Errorf("daily budget: %f", cfg.Optimizer.DailyBudget)
	}
	if cfg.Cache.Enabled || cfg.Cache.EvictionPolicy != "lru" {
		t.Errorf("cache not overridden: %+v", cfg.Cache)
	}
	if len(cfg.Security.AllowedPaths) != 1 || cfg.Security.AllowedPaths[0] != "/tmp/work" {
		t.Errorf("unexpected allowed paths: %#v", cfg.Security.AllowedPaths)
	}
	if !cfg.Audit.Enabled || cfg.Audit.RetentionDays != 7 {
		t.Errorf("audit not overridden: %+v", cfg.Audit)
	}
}

func TestSaveAndReload(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Optimizer.Model = "claude-haiku"
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config written with permissions %o", perm)
	}

	loaded, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Optimizer.Model != "claude-haiku" {
		t.Errorf("model not round-tripped: %s", loaded.Optimizer.Model)
	}
}

func TestConfigPathHonorsEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom-cql.yaml")
	if got := ConfigPath(); got != "/tmp/custom-cql.yaml" {
		t.Errorf("ConfigPath() = %s", got)
	}
}

func TestAuditDirDisabled(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AuditDir() != "" {
		t.Error("disabled audit should have no directory")
	}
	cfg.Audit.Enabled = true
	cfg.Audit.Dir = "/tmp/audit"
	if cfg.AuditDir() != "/tmp/audit" {
		t.Errorf("audit dir override ignored: %s", cfg.AuditDir())
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
CQL_TEST_ALPHA=first
CQL_TEST_BETA="quoted value"

not-a-pair
CQL_TEST_EXISTING=from-file
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CQL_TEST_EXISTING", "from-env")
	t.Setenv("CQL_TEST_ALPHA", "")
	os.Unsetenv("CQL_TEST_ALPHA")
	t.Setenv("CQL_TEST_BETA", "")
	os.Unsetenv("CQL_TEST_BETA")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("CQL_TEST_ALPHA"); got != "first" {
		t.Errorf("CQL_TEST_ALPHA = %q", got)
	}
	if got := os.Getenv("CQL_TEST_BETA"); got != "quoted value" {
		t.Errorf("CQL_TEST_BETA = %q", got)
	}
	if got := os.Getenv("CQL_TEST_EXISTING"); got != "from-env" {
		t.Errorf("existing variable overwritten: %q", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing env file should be a no-op: %v", err)
	}
}
