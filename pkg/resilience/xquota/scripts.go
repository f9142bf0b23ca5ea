package xquota

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

//go:embed lua/consume.lua
var consumeSource string

var (
	consumeScript     *redis.Script
	consumeScriptOnce sync.Once
)

func getConsumeScript() *redis.Script {
	consumeScriptOnce.Do(func() {
		consumeScript = redis.NewScript(consumeSource)
	})
	return consumeScript
}

// WarmupScripts 预先将 Lua 脚本加载到 Redis。
func WarmupScripts(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return ErrNilClient
	}
	if err := getConsumeScript().Load(ctx, client).Err(); err != nil {
		return fmt.Errorf("xquota: load consume script: %w", err)
	}
	return nil
}
