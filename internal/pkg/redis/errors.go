package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrNotInitialized 客户端未创建或已关闭
var ErrNotInitialized = errors.New("redis: client not initialized")

// IsNil 判断是否是 Key 不存在错误；缓存读取据此区分未命中与故障
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
