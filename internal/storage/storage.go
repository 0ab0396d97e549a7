package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
// MySQL 是唯一必需的组件，其余组件初始化失败时降级为 nil
type Storage struct {
	// 关系型数据库
	MySQL *MySQL

	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 向量数据库
	Qdrant *Qdrant

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error
	var initErrors []string

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	componentLogger := log.New(io.Discard, "", 0)
	if cfg.Logger.Level == "debug" {
		componentLogger = logger.Std("[storage] ")
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO, componentLogger)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, componentLogger)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if cfg.Qdrant.Endpoint != "" {
		s.Qdrant, err = NewQdrant(&cfg.Qdrant)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Qdrant: %v", err))
		}
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Printf("Redis未配置, 跳过初始化.")
	}

	if len(initErrors) > 0 {
		log.Printf("警告: 以下存储组件初始化失败，相关功能将降级: %s", strings.Join(initErrors, "; "))
	}
	return s, nil
}

// HealthChecks 返回已初始化组件的探活函数，未初始化的组件不出现在结果中
func (s *Storage) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{}
	if s.MySQL != nil {
		checks["mysql"] = s.MySQL.Ping
	}
	if s.Redis != nil {
		checks["redis"] = s.Redis.Ping
	}
	if s.Qdrant != nil {
		checks["qdrant"] = func(ctx context.Context) error {
			_, err := s.Qdrant.CountPoints(ctx)
			return err
		}
	}
	if s.MinIO != nil {
		checks["minio"] = s.MinIO.Ping
	}
	if s.RabbitMQ != nil {
		checks["rabbitmq"] = s.RabbitMQ.Ping
	}
	return checks
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Printf("关闭MySQL连接失败: %v", err)
		}
	}
}
