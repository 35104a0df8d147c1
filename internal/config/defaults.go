package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Deployment: DeploymentBizAssist,
			LogLevel:   "info",
			LogFormat:  "text",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Realtime: RealtimeConfig{
			Enabled:            true,
			Port:               3001,
			Path:               "/",
			MinIntervalSeconds: 7,
			MaxIntervalSeconds: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "~/.bizassist/bizassist.db",
		},
		Auth: AuthConfig{
			TokenTTLMinutes:      60,
			PatientTokenTTLHours: 24 * 7,
		},
		Generation: GenerationConfig{
			Provider:           "ollama",
			TimeoutSeconds:     120,
			RateLimitPerMinute: 30,
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled: true,
				APIBase: "http://localhost:11434",
			},
		},
		Workflow: WorkflowConfig{
			TimeoutSeconds: 15,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		MCP: MCPConfig{
			ServerName: "bizassist",
		},
	}
}
