package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xshield/pkg/observability/xlog"
	"github.com/omeyang/xshield/pkg/resilience/xadmin"
	"github.com/omeyang/xshield/pkg/resilience/xretry"
)

// adminCall 管理命令的公共流程：解析参数、创建客户端、带超时执行、输出结果。
func adminCall(argName string, optional bool, fn func(ctx context.Context, c *xadmin.Client, arg string) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		arg := cmd.Args().First()
		if arg == "" && !optional {
			return &usageError{msg: fmt.Sprintf("missing <%s>", argName)}
		}
		if cmd.Args().Len() > 1 {
			return &usageError{msg: fmt.Sprintf("unexpected arguments: %v", cmd.Args().Tail())}
		}

		client, err := newAdminClient(cmd.String("admin"))
		if err != nil {
			return &usageError{msg: err.Error()}
		}
		ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
		defer cancel()

		out, err := fn(ctx, client, arg)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func newAdminClient(addr string) (*xadmin.Client, error) {
	policy := xretry.NewPolicy("xshield-admin",
		xretry.WithMaxAttempts(3),
		xretry.WithBaseDelay(200*time.Millisecond),
		xretry.WithLogger(xlog.Nop()),
	)
	return xadmin.NewClient(addr, xadmin.WithRetry(policy))
}

type resetResult struct {
	Reset string `json:"reset"`
}

func createRateLimitCommand() *cli.Command {
	return &cli.Command{
		Name:  "ratelimit",
		Usage: "限流管理",
		Commands: []*cli.Command{
			{
				Name:      "reset",
				Usage:     "清除标识符的限流记录",
				ArgsUsage: "<identifier>",
				Action: adminCall("identifier", false, func(ctx context.Context, c *xadmin.Client, id string) (any, error) {
					if err := c.ResetRateLimit(ctx, id); err != nil {
						return nil, err
					}
					return resetResult{Reset: id}, nil
				}),
			},
		},
	}
}

func createQuotaCommand() *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "租户配额管理",
		Commands: []*cli.Command{
			{
				Name:      "usage",
				Usage:     "查看当前窗口用量",
				ArgsUsage: "<tenant>",
				Action: adminCall("tenant", false, func(ctx context.Context, c *xadmin.Client, tenant string) (any, error) {
					return c.QuotaUsage(ctx, tenant)
				}),
			},
			{
				Name:      "reset",
				Usage:     "清零当前窗口用量",
				ArgsUsage: "<tenant>",
				Action: adminCall("tenant", false, func(ctx context.Context, c *xadmin.Client, tenant string) (any, error) {
					if err := c.ResetQuota(ctx, tenant); err != nil {
						return nil, err
					}
					return resetResult{Reset: tenant}, nil
				}),
			},
		},
	}
}

func createCircuitsCommand() *cli.Command {
	return &cli.Command{
		Name:      "circuits",
		Usage:     "查看熔断器状态，省略 name 时列出全部",
		ArgsUsage: "[name]",
		Action: adminCall("name", true, func(ctx context.Context, c *xadmin.Client, name string) (any, error) {
			if name == "" {
				return c.Circuits(ctx)
			}
			return c.CircuitState(ctx, name)
		}),
	}
}
