package catalog

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	xerrors "ai-git/internal/errors"
)

// FileCache 把模型列表保存为 JSON 文件。
type FileCache struct {
	path string
}

// NewFileCache 创建文件缓存。
func NewFileCache(path string) (*FileCache, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "模型缓存路径为空")
	}
	return &FileCache{path: path}, nil
}

// Load 实现 Cache。
func (c *FileCache) Load(context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取模型缓存失败")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "模型缓存已损坏")
	}
	return &snap, nil
}

// Save 实现 Cache，先写临时文件再重命名。
func (c *FileCache) Save(_ context.Context, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建缓存目录失败")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化模型缓存失败: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入模型缓存失败")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入模型缓存失败")
	}
	return nil
}

// RedisCacheConfig 描述 Redis 缓存的连接参数。
type RedisCacheConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisCache 把模型列表保存在 Redis 字符串键中，便于多台机器共享。
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache 创建 Redis 缓存并检查连通性。
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "Redis address 不能为空")
	}
	key := cfg.Key
	if key == "" {
		key = "ai-git:openrouter:models"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return &RedisCache{client: client, key: key}, nil
}

// Load 实现 Cache。
func (c *RedisCache) Load(ctx context.Context) (*Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取 Redis 模型缓存失败")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "Redis 模型缓存已损坏")
	}
	return &snap, nil
}

// Save 实现 Cache。过期由 Catalog 依据 FetchedAt 判断，键本身不设 TTL。
func (c *RedisCache) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化模型缓存失败: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入 Redis 模型缓存失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
