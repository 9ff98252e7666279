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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体（API 与 Worker 共用，各取所需）
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	JobStore JobStoreConfig `mapstructure:"jobstore"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Redis    RedisConfig    `mapstructure:"redis"`
	History  HistoryConfig  `mapstructure:"history"`
	Lock     LockConfig     `mapstructure:"lock"`
	Model    ModelConfig    `mapstructure:"model"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// APIConfig API（网关进程）配置
type APIConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Timeout string `mapstructure:"timeout"`
}

// WorkerConfig Worker 进程配置
type WorkerConfig struct {
	Concurrency int      `mapstructure:"concurrency"`  // 每个队列的消费并发数，<=0 默认 2
	Queues      []string `mapstructure:"queues"`       // 监听的队列列表；空则监听 cpu_light + cpu_heavy
	RetryDelay  string   `mapstructure:"retry_delay"`  // 任务失败后的等待时间，如 "1s"
	PollTimeout string   `mapstructure:"poll_timeout"` // BRPOP 阻塞超时，如 "5s"
}

// JobStoreConfig 任务持久化存储配置
type JobStoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Type string `mapstructure:"type"` // memory | redis
}

// RedisConfig Redis 连接配置（relay、lock、volatile state、history 共用一个客户端）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// HistoryConfig 会话滑动窗口缓存配置
type HistoryConfig struct {
	Type       string `mapstructure:"type"`        // memory | redis
	WindowSize int    `mapstructure:"window_size"` // <=0 默认 50
}

// LockConfig 分布式锁配置
type LockConfig struct {
	Type        string `mapstructure:"type"`         // memory | redis
	HoldTimeout string `mapstructure:"hold_timeout"` // 持有超时（自动释放），空默认 60s
	WaitTimeout string `mapstructure:"wait_timeout"` // 获取等待上限，空默认 5s
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM LLMConfig `mapstructure:"llm"`
}

// LLMConfig LLM 模型配置；Priority 决定多 Provider 选择顺序（先可用者先用）
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Priority  []string                  `mapstructure:"priority"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey    string `mapstructure:"api_key"`    // 支持 ${ENV_VAR} 形式
	APIKeyRef string `mapstructure:"api_key_ref"` // secrets store 中的 key，优先于 api_key
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
}

// ToolsConfig 工具服务器配置
type ToolsConfig struct {
	Servers map[string]ToolServerConfig `mapstructure:"servers"`
	Retries int                         `mapstructure:"retries"` // 每次调用的额外重试次数，<=0 默认 2
	Delay   string                      `mapstructure:"delay"`   // 重试间隔，空默认 1s
}

// ToolServerConfig 单个工具服务器（外部 RPC 边界）
type ToolServerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Config   map[string]string `mapstructure:"config"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetEnvPrefix("SYNAPSE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	applyDefaults(&config)
	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.API.Port == 0 {
		config.API.Port = 8080
	}
	if config.Redis.Addr == "" {
		config.Redis.Addr = "localhost:6379"
	}
	if config.History.WindowSize <= 0 {
		config.History.WindowSize = 50
	}
	if config.Worker.Concurrency <= 0 {
		config.Worker.Concurrency = 2
	}
	if config.JobStore.Type == "" {
		config.JobStore.Type = "memory"
	}
	if config.Queue.Type == "" {
		config.Queue.Type = "memory"
	}
	if config.Secrets.Provider == "" {
		config.Secrets.Provider = "env"
	}
}

// replaceEnvVars 替换配置中 ${ENV_VAR} 形式的 API Key
func replaceEnvVars(config *Config) error {
	for provider, providerConfig := range config.Model.LLM.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.LLM.Providers[provider] = providerConfig
			}
		}
	}
	return nil
}

// LoadAPIConfig 加载 API（网关）配置
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置
func LoadWorkerConfig() (*Config, error) {
	return LoadConfig("configs/worker.yaml")
}
