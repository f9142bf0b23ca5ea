package xquota

// Limits 各周期的配额上限。<= 0 表示该周期不限制（仍计数）。
type Limits struct {
	PerMinute int64 `koanf:"per_minute" json:"per_minute"`
	PerHour   int64 `koanf:"per_hour" json:"per_hour"`
	PerDay    int64 `koanf:"per_day" json:"per_day"`
	PerMonth  int64 `koanf:"per_month" json:"per_month"`
}

// Of 返回周期 p 的上限。
func (l Limits) Of(p Period) int64 {
	switch p {
	case Minute:
		return l.PerMinute
	case Hour:
		return l.PerHour
	case Day:
		return l.PerDay
	case Month:
		return l.PerMonth
	}
	return 0
}

// Enforced 是否至少有一个周期启用了限制。
func (l Limits) Enforced() bool {
	return l.PerMinute > 0 || l.PerHour > 0 || l.PerDay > 0 || l.PerMonth > 0
}

// Resolver 返回租户的配额；ok 为 false 表示该租户不受配额限制。
type Resolver func(tenantID string) (limits Limits, ok bool)

// StaticResolver 基于固定配置的 Resolver：overrides 中的租户使用覆盖值，其余使用 defaults。
func StaticResolver(defaults Limits, overrides map[string]Limits) Resolver {
	copied := make(map[string]Limits, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	return func(tenantID string) (Limits, bool) {
		l, ok := copied[tenantID]
		if !ok {
			l = defaults
		}
		return l, l.Enforced()
	}
}
