package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigFromFile 验证 YAML 中的各段配置能被正确解析并补齐默认值
func TestLoadConfigFromFile(t *testing.T) {
	configPath := writeTempConfig(t, `
server:
  address: ":9090"
embedding:
  provider: "Aliyun"
  api_key: "sk-test"
matching:
  chunk_size: 500
  default_top_n: 20
qdrant:
  endpoint: "http://qdrant:6333"
`)

	config, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err, "加载配置不应返回错误")

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, "aliyun", config.Embedding.Provider, "provider 应被规范为小写")
	assert.Equal(t, "text-embedding-v3", config.Embedding.Model)
	assert.Equal(t, 1024, config.Embedding.Dimensions)
	assert.Equal(t, 500, config.Matching.ChunkSize)
	assert.Equal(t, 100, config.Matching.ChunkOverlap, "未配置 overlap 时按 size 的 1/5 取值")
	assert.Equal(t, 20, config.Matching.DefaultTopN)
	assert.Equal(t, 5, config.Matching.DefaultAskK)
	assert.Equal(t, "resume_chunks", config.Qdrant.Collection)
	assert.Equal(t, 1024, config.Qdrant.Dimension, "Qdrant 维度默认跟随 embedding")
	assert.Equal(t, "rag.events", config.RabbitMQ.EventsExchange)
}

// TestLoadConfigDefaultsToHashEmbedder 验证未配置 provider 时使用哈希向量化
func TestLoadConfigDefaultsToHashEmbedder(t *testing.T) {
	config, err := LoadConfigFromFileOnly(writeTempConfig(t, "logger:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "hash", config.Embedding.Provider)
	assert.Equal(t, 384, config.Embedding.Dimensions)
	assert.Equal(t, "debug", config.Logger.Level)
	assert.Empty(t, config.Qdrant.Collection, "未配置 Qdrant 时不填充集合名")
}

// TestLoadConfigEnvOverride 验证环境变量覆盖
func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ALIYUN_API_KEY", "sk-from-env")
	t.Setenv("RAG_SERVER_ADDRESS", ":7070")
	t.Setenv("RAG_TRACING_ENABLED", "true")

	config, err := LoadConfig(writeTempConfig(t, "embedding:\n  api_key: sk-from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", config.Embedding.APIKey)
	assert.Equal(t, ":7070", config.Server.Address)
	assert.True(t, config.Tracing.Enabled)
}

// TestLoadConfigErrors 验证文件缺失和语法错误
func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfigFromFileOnly("")
	assert.Error(t, err)

	_, err = LoadConfigFromFileOnly(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFromFileOnly(writeTempConfig(t, "server: [unclosed"))
	assert.Error(t, err, "非法 YAML 应返回错误")
}

// TestCreateSampleConfig 验证示例配置可以写出并重新加载
func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))
	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")

	config, err := LoadConfigFromFileOnly(path)
	require.NoError(t, err)
	assert.Equal(t, "rag_resume", config.MySQL.Database)
	assert.Equal(t, "resume-originals", config.MinIO.OriginalsBucket)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("5s", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("bogus", time.Second))
}
