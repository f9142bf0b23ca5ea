// xshieldctl 是 xshield 的服务端与管理命令行。
//
// 用法:
//
//	xshieldctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-a, --admin    管理 API 地址 (默认: http://127.0.0.1:9091)
//	-t, --timeout  命令超时时间 (默认: 10s)
//
// 命令:
//
//	serve -c <file>             启动准入控制服务
//	ratelimit reset <id>        重置限流标识符
//	quota usage <tenant>        查看租户配额用量
//	quota reset <tenant>        重置租户配额
//	circuits [name]             查看熔断器状态
//
// 退出码:
//
//	0: 成功
//	1: 命令执行失败
//	2: 参数错误
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

const (
	defaultAdminAddr = "http://127.0.0.1:9091"
	defaultTimeout   = 10 * time.Second
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xshieldctl",
		Usage:   "多租户限流、配额与熔断服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "admin",
				Aliases: []string{"a"},
				Usage:   "管理 API 地址",
				Value:   defaultAdminAddr,
				Sources: cli.EnvVars("XSHIELD_ADMIN"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands: []*cli.Command{
			createServeCommand(),
			createRateLimitCommand(),
			createQuotaCommand(),
			createCircuitsCommand(),
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，由 run() 统一映射退出码。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp()
	app.Writer = stdout
	app.ErrWriter = stderr
	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
