package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_UnknownDeployment(t *testing.T) {
	cfg := Defaults()
	cfg.General.Deployment = "pharmacy"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown deployment")
	}
}

func TestValidate_BothDeployments(t *testing.T) {
	for _, d := range []string{DeploymentBizAssist, DeploymentMediConnect} {
		cfg := Defaults()
		cfg.General.Deployment = d
		if err := Validate(cfg); err != nil {
			t.Fatalf("deployment %q should be valid: %v", d, err)
		}
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg = Defaults()
	cfg.Realtime.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_RealtimeInterval(t *testing.T) {
	cfg := Defaults()
	cfg.Realtime.MinIntervalSeconds = 10
	cfg.Realtime.MaxIntervalSeconds = 7
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when max interval < min interval")
	}
}

func TestValidate_GenerationTimeoutBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Generation.TimeoutSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for timeoutSeconds=0")
	}

	cfg.Generation.TimeoutSeconds = 3600
	if err := Validate(cfg); err != nil {
		t.Fatalf("timeoutSeconds=3600 should be valid: %v", err)
	}
}

func TestValidate_UnknownGenerationProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Generation.Provider = "missing"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown generation provider")
	}

	cfg = Defaults()
	cfg.Generation.Failover = []string{"missing"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown failover provider")
	}
}

func TestValidate_DatabaseDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Driver = "mysql"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "loud"
	cfg.Workflow.TimeoutSeconds = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"general.logLevel", "workflow.timeoutSeconds"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error, got: %s", want, msg)
		}
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.General.Deployment = DeploymentMediConnect
	original.Database.DSN = filepath.Join(dir, "test.db")

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.General.Deployment != DeploymentMediConnect {
		t.Fatalf("expected mediconnect, got %q", loaded.General.Deployment)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
general:
  deployment: mediconnect
  logLevel: debug
  logFormat: json
server:
  port: 4000
generation:
  provider: ollama
  timeoutSeconds: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.Deployment != DeploymentMediConnect {
		t.Errorf("expected mediconnect, got %q", cfg.General.Deployment)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Server.Port)
	}
	if cfg.Generation.TimeoutSeconds != 30 {
		t.Errorf("expected timeout 30, got %d", cfg.Generation.TimeoutSeconds)
	}
	// Unset sections keep their defaults.
	if cfg.Realtime.Port != 3001 {
		t.Errorf("expected default realtime port 3001, got %d", cfg.Realtime.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"generation": {"timeoutSeconds": 0}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgFile); err == nil {
		t.Fatal("expected validation error for timeoutSeconds=0")
	}
}

// --- Environment overrides ---

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("N8N_REMINDER_WEBHOOK_URL", "http://n8n/webhook/remind")
	t.Setenv("JWT_SECRET", "user-secret")
	t.Setenv("PATIENT_JWT_SECRET", "patient-secret")
	t.Setenv("WEBSOCKET_PORT", "4001")

	cfg := Defaults()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if cfg.Providers["ollama"].APIBase != "http://ollama:11434" {
		t.Errorf("expected ollama base from env, got %q", cfg.Providers["ollama"].APIBase)
	}
	if cfg.Workflow.ReminderWebhookURL != "http://n8n/webhook/remind" {
		t.Errorf("expected webhook url from env, got %q", cfg.Workflow.ReminderWebhookURL)
	}
	if cfg.Auth.JWTSecret != "user-secret" || cfg.Auth.PatientJWTSecret != "patient-secret" {
		t.Errorf("expected secrets from env, got %q / %q", cfg.Auth.JWTSecret, cfg.Auth.PatientJWTSecret)
	}
	if cfg.Realtime.Port != 4001 {
		t.Errorf("expected realtime port 4001, got %d", cfg.Realtime.Port)
	}
}

func TestApplyEnv_PostgresURLSelectsDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app:pw@localhost:5432/bizassist")

	cfg := Defaults()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	t.Setenv("WEBSOCKET_PORT", "not-a-number")
	if err := ApplyEnv(Defaults()); err == nil {
		t.Fatal("expected parse error for non-numeric port")
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "generation.provider")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "ollama" {
		t.Fatalf("expected 'ollama', got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "nonexistent.path"); err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestSetByPath_ValidPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "general.deployment", "mediconnect"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.General.Deployment != "mediconnect" {
		t.Fatalf("expected 'mediconnect', got %q", cfg.General.Deployment)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "realtime.enabled", "false"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if cfg.Realtime.Enabled {
		t.Fatal("expected realtime.enabled=false")
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "generation.timeoutSeconds", "45"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Generation.TimeoutSeconds != 45 {
		t.Fatalf("expected 45, got %d", cfg.Generation.TimeoutSeconds)
	}
}

func TestSetByPath_RejectsUnknownKey(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "server.hostname", "example.com"); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if err := SetByPath(cfg, "general", "x"); err == nil {
		t.Fatal("expected error for section path")
	}
}

func TestSetByPath_TypeMismatch(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "server.port", "eighty"); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
	if err := SetByPath(cfg, "metrics.enabled", "maybe"); err == nil {
		t.Fatal("expected error for non-bool value")
	}
}

func TestSetByPath_StringFieldKeepsDigits(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "mcp.serverName", "1234"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.MCP.ServerName != "1234" {
		t.Fatalf("expected '1234', got %q", cfg.MCP.ServerName)
	}
}

func TestSetByPath_CreatesProvider(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "providers.openai.apiKey", "sk-test"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sk-test" {
		t.Fatalf("expected new provider entry, got %+v", cfg.Providers["openai"])
	}
	if err := SetByPath(cfg, "generation.failover", "openai, ollama"); err != nil {
		t.Fatalf("set list: %v", err)
	}
	if len(cfg.Generation.Failover) != 2 || cfg.Generation.Failover[0] != "openai" {
		t.Fatalf("unexpected failover list %v", cfg.Generation.Failover)
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.JWTSecret = "super-secret-signing-key"
	cfg.Providers["openai"] = ProviderConfig{Enabled: true, APIKey: "sk-1234567890abcdefghijklmnop"}
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://app:hunter2@db:5432/bizassist"

	sanitized := Sanitize(cfg)

	if sanitized.Auth.JWTSecret == cfg.Auth.JWTSecret {
		t.Fatal("jwt secret should be masked")
	}
	if sanitized.Providers["openai"].APIKey == cfg.Providers["openai"].APIKey {
		t.Fatal("API key should be masked")
	}
	if sanitized.Database.DSN != "postgres://app:***@db:5432/bizassist" {
		t.Fatalf("expected masked DSN, got %q", sanitized.Database.DSN)
	}
	if cfg.Auth.JWTSecret != "super-secret-signing-key" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.PatientJWTSecret = "short"
	sanitized := Sanitize(cfg)
	if sanitized.Auth.PatientJWTSecret != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.Auth.PatientJWTSecret)
	}
}

// --- ListPaths ---

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, expected := range []string{"general.deployment", "server.port", "realtime.enabled"} {
		if _, ok := paths[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-abc123")
	result := ExpandEnvVars(`{"apiKey": "${TEST_API_KEY}"}`)
	expected := `{"apiKey": "sk-abc123"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`{"port": "${NONEXISTENT_VAR_12345:-8080}"}`)
	expected := `{"port": "8080"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	result := ExpandEnvVars(`"${TOTALLY_UNSET_VAR_XYZ}"`)
	expected := `"${TOTALLY_UNSET_VAR_XYZ}"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_EmptyVarUsesDefault(t *testing.T) {
	t.Setenv("EMPTY_VAR", "")
	result := ExpandEnvVars(`"${EMPTY_VAR:-fallback}"`)
	if result != `"fallback"` {
		t.Fatalf("expected %q, got %q", `"fallback"`, result)
	}
}
