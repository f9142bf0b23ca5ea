package xlimit

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

//go:embed lua/sliding_log.lua
var slidingLogSource string

var (
	slidingLogScript     *redis.Script
	slidingLogScriptOnce sync.Once
)

func getSlidingLogScript() *redis.Script {
	slidingLogScriptOnce.Do(func() {
		slidingLogScript = redis.NewScript(slidingLogSource)
	})
	return slidingLogScript
}

// WarmupScripts 预先将 Lua 脚本加载到 Redis，避免首次检查时的 NOSCRIPT 回退。
// 失败不影响后续使用。
func WarmupScripts(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return ErrNilClient
	}
	if err := getSlidingLogScript().Load(ctx, client).Err(); err != nil {
		return fmt.Errorf("xlimit: load sliding log script: %w", err)
	}
	return nil
}
