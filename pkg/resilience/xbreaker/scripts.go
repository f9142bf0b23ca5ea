package xbreaker

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/acquire.lua
	acquireSource string
	//go:embed lua/release.lua
	releaseSource string
)

var (
	acquireScript *redis.Script
	releaseScript *redis.Script
	scriptsOnce   sync.Once
)

func initScripts() {
	scriptsOnce.Do(func() {
		acquireScript = redis.NewScript(acquireSource)
		releaseScript = redis.NewScript(releaseSource)
	})
}

func getAcquireScript() *redis.Script {
	initScripts()
	return acquireScript
}

func getReleaseScript() *redis.Script {
	initScripts()
	return releaseScript
}

// WarmupScripts 预先将共享状态使用的 Lua 脚本加载到 Redis。失败不影响后续使用。
func WarmupScripts(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return ErrNilClient
	}
	var errs []error
	if err := getAcquireScript().Load(ctx, client).Err(); err != nil {
		errs = append(errs, fmt.Errorf("xbreaker: load acquire script: %w", err))
	}
	if err := getReleaseScript().Load(ctx, client).Err(); err != nil {
		errs = append(errs, fmt.Errorf("xbreaker: load release script: %w", err))
	}
	return errors.Join(errs...)
}
