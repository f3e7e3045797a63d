package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions redis 配置选项
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	Key      string        // 存放配置的键
	Hash     bool          // 为 true 时 Key 是 hash，每个 field 是一个配置路径
	Optional bool          // 键不存在时返回空配置
	Timeout  time.Duration // 读取超时时间（默认 5 秒）
}

// redisReader RedisSource 用到的命令，*redis.Client 和 redis.UniversalClient 都满足
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisSource redis 配置源。
// 默认 Key 存放一个 JSON 或 YAML 文档；Hash 模式下每个 field（a:b:c 形式）对应一个值。
type RedisSource struct {
	Options RedisOptions

	// Client 不为空时直接使用，不再创建客户端
	Client redisReader
}

func (s *RedisSource) Name() string {
	return fmt.Sprintf("Redis(%s/%d:%s)", s.Options.Addr, s.Options.DB, s.Options.Key)
}

func (s *RedisSource) Load() (map[string]any, error) {
	if s.Options.Key == "" {
		return nil, errors.New("redis source requires a key")
	}

	client := s.Client
	if client == nil {
		c := redis.NewClient(&redis.Options{
			Addr:     s.Options.Addr,
			Username: s.Options.Username,
			Password: s.Options.Password,
			DB:       s.Options.DB,
		})
		defer c.Close()
		client = c
	}

	timeout := s.Options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.Options.Hash {
		return s.loadHash(ctx, client)
	}
	return s.loadDocument(ctx, client)
}

func (s *RedisSource) loadDocument(ctx context.Context, client redisReader) (map[string]any, error) {
	raw, err := client.Get(ctx, s.Options.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		if s.Options.Optional {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("redis key %s not found", s.Options.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config from redis: %w", err)
	}

	m, ok := decodeDocument(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("redis key %s does not hold a document object", s.Options.Key)
	}
	return m, nil
}

func (s *RedisSource) loadHash(ctx context.Context, client redisReader) (map[string]any, error) {
	fields, err := client.HGetAll(ctx, s.Options.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get config from redis: %w", err)
	}
	if len(fields) == 0 && !s.Options.Optional {
		return nil, fmt.Errorf("redis key %s not found", s.Options.Key)
	}

	result := make(map[string]any)
	for field, value := range fields {
		setNestedValue(result, field, decodeDocument([]byte(value)))
	}
	return result, nil
}
