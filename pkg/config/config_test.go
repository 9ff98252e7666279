// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
jobstore:
  type: "postgres"
  dsn: "postgres://localhost/synapse"
history:
  type: "redis"
  window_size: 20
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.JobStore.Type != "postgres" {
		t.Errorf("JobStore.Type: got %q", cfg.JobStore.Type)
	}
	if cfg.History.WindowSize != 20 {
		t.Errorf("History.WindowSize: got %d", cfg.History.WindowSize)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "min.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: \"info\"\n"), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("default API.Port: got %d", cfg.API.Port)
	}
	if cfg.History.WindowSize != 50 {
		t.Errorf("default History.WindowSize: got %d", cfg.History.WindowSize)
	}
	if cfg.Worker.Concurrency != 2 {
		t.Errorf("default Worker.Concurrency: got %d", cfg.Worker.Concurrency)
	}
	if cfg.Queue.Type != "memory" {
		t.Errorf("default Queue.Type: got %q", cfg.Queue.Type)
	}
	if cfg.Secrets.Provider != "env" {
		t.Errorf("default Secrets.Provider: got %q", cfg.Secrets.Provider)
	}
}

func TestLoadConfig_EnvVarAPIKey(t *testing.T) {
	dir := t.TempDir()
	yaml := `
model:
  llm:
    priority: ["groq", "gemini"]
    providers:
      groq:
        api_key: "${TEST_SYNAPSE_GROQ_KEY}"
        base_url: "https://api.groq.com/openai/v1"
`
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("TEST_SYNAPSE_GROQ_KEY", "gsk-test")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Model.LLM.Providers["groq"].APIKey; got != "gsk-test" {
		t.Errorf("provider api_key from env: got %q", got)
	}
	if len(cfg.Model.LLM.Priority) != 2 || cfg.Model.LLM.Priority[0] != "groq" {
		t.Errorf("priority: got %v", cfg.Model.LLM.Priority)
	}
}
