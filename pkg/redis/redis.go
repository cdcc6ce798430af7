package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/24Tech-io/nursepor-stable-sub005/config"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/event"
)

// Client Redis 客户端封装
// 承担四类职责：报名视图缓存（写后主动失效）、广播频道投递（PUB/SUB）、
// Token 黑名单、接口速率限制。均允许降级：Redis 不可用时引擎功能不受影响。
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 报名视图缓存 ──
//
// 缓存契约：命令服务在每次成功变更后调用 InvalidateView 主动失效；
// TTL 只作兜底，业务逻辑不依赖 TTL 过期。

const viewCachePrefix = "enrollview:"

// GetView 读取学生报名视图缓存；未命中或反序列化失败返回 false
func (c *Client) GetView(ctx context.Context, studentID string, dest interface{}) bool {
	raw, err := c.rdb.Get(ctx, viewCachePrefix+studentID).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("视图缓存反序列化失败，按未命中处理", zap.Error(err))
		return false
	}
	return true
}

// SetView 写入学生报名视图缓存
func (c *Client) SetView(ctx context.Context, studentID string, view interface{}, ttl time.Duration) {
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, viewCachePrefix+studentID, raw, ttl).Err(); err != nil {
		c.logger.Warn("视图缓存写入失败", zap.Error(err))
	}
}

// InvalidateView 失效学生报名视图缓存
func (c *Client) InvalidateView(ctx context.Context, studentID string) {
	if err := c.rdb.Del(ctx, viewCachePrefix+studentID).Err(); err != nil {
		c.logger.Warn("视图缓存失效失败", zap.String("student_id", studentID), zap.Error(err))
	}
}

// ── 广播投递（实现 event.Sink）──

const broadcastPrefix = "broadcast:"

// Push 将事件发布到 Redis 频道，由表现层订阅后推送给在线客户端
func (c *Client) Push(ctx context.Context, channel string, e event.Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, broadcastPrefix+channel, raw).Err()
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数器：窗口内首次请求时设置过期时间，
// 计数超过 limit 返回 false
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
