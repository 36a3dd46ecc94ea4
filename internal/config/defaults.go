package config

import "time"

// Default returns a Config populated with sensible defaults. Load unmarshals
// file/environment values on top of this, so any field left unset in the
// config file or environment keeps its default.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Server: ServerConfig{
			Address:         ":8080",
			PathPrefix:      "/api",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBytes: 10 << 20,
		},
		Descriptors: DescriptorsConfig{
			Root:          "./endpoints",
			WatchInterval: 0,
			DebounceDelay: 250 * time.Millisecond,
		},
		Environments: map[string]EnvironmentConfig{},
		TokenStore: TokenStoreConfig{
			Type: DatabaseSQLite,
			DSN:  "./data/portway.db",
		},
		Management: ManagementConfig{
			LockoutThreshold: 5,
			LockoutDuration:  15 * time.Minute,
		},
		Proxy: ProxyConfig{
			DialTimeout:         10 * time.Second,
			ResponseTimeout:     30 * time.Second,
			MaxProxyBufferBytes: 10 << 20,
		},
		Files: FilesConfig{
			Backend: "filesystem",
			Root:    "./data/files",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
	}
}
