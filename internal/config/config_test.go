package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
source:
  host: 10.0.0.1
  port: 3306
  username: monitor
  password: secret
target:
  host: 10.0.0.2
  port: 3306
  username: monitor
  password: secret
monitor:
  databases: [erp, " crm "]
  refreshInterval: 2
  sourceInterval: 3
  ignoredTablePrefixes: ["tmp_", "act_"]
`

func TestLoadConfigValid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
	if got := cfg.Monitor.Databases[1]; got != "crm" {
		t.Errorf("databases not trimmed: %q", got)
	}
	if cfg.Monitor.QueryTimeout != 30 {
		t.Errorf("queryTimeout default = %d, want 30", cfg.Monitor.QueryTimeout)
	}
	if cfg.Monitor.MaxTablesDisplay != 500 {
		t.Errorf("maxTablesDisplay default = %d, want 500", cfg.Monitor.MaxTablesDisplay)
	}
}

func TestLoadConfigMissingPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"no databases": `
source: {host: a, port: 3306, username: u}
target: {host: b, port: 3306, username: u}
monitor: {databases: []}
`,
		"missing target host": `
source: {host: a, port: 3306, username: u}
target: {port: 3306, username: u}
monitor: {databases: [erp]}
`,
		"bad source interval": `
source: {host: a, port: 3306, username: u}
target: {host: b, port: 3306, username: u}
monitor: {databases: [erp], sourceInterval: -1}
`,
		"bad port": `
source: {host: a, port: 99999, username: u}
target: {host: b, port: 3306, username: u}
monitor: {databases: [erp]}
`,
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected validation error, got nil", name)
		}
	}
}

func TestEndpointDSN(t *testing.T) {
	ep := EndpointConfig{Host: "db.local", Port: 3307, Username: "u", Password: "p"}
	want := "u:p@tcp(db.local:3307)/erp?charset=utf8mb4&timeout=5s"
	if got := ep.DSN("erp"); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
