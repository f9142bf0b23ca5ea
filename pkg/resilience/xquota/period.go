package xquota

import "time"

// Period 配额周期。
type Period string

const (
	Minute Period = "minute"
	Hour   Period = "hour"
	Day    Period = "day"
	Month  Period = "month"
)

// Periods 所有周期，按长度升序。
var Periods = []Period{Minute, Hour, Day, Month}

// window 某一周期在某一时刻所处的固定窗口。
type window struct {
	period Period
	id     string
	start  time.Time
	end    time.Time
}

// ttl 窗口长度。日与月的长度随夏令时与月份天数变化。
func (w window) ttl() time.Duration {
	return w.end.Sub(w.start)
}

// windowAt 返回 now 在 loc 时区下所处的 p 周期窗口。
func windowAt(p Period, now time.Time, loc *time.Location) window {
	t := now.In(loc)
	y, mo, d := t.Date()
	w := window{period: p}
	switch p {
	case Minute:
		w.start = time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, loc)
		w.end = w.start.Add(time.Minute)
		w.id = w.start.Format("200601021504")
	case Hour:
		w.start = time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
		w.end = w.start.Add(time.Hour)
		w.id = w.start.Format("2006010215")
	case Day:
		w.start = time.Date(y, mo, d, 0, 0, 0, 0, loc)
		w.end = w.start.AddDate(0, 0, 1)
		w.id = w.start.Format("20060102")
	default:
		w.start = time.Date(y, mo, 1, 0, 0, 0, 0, loc)
		w.end = w.start.AddDate(0, 1, 0)
		w.id = w.start.Format("200601")
	}
	return w
}

// maxTTL 周期的最大可能长度。
func maxTTL(p Period) time.Duration {
	switch p {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 25 * time.Hour
	default:
		return 31 * 24 * time.Hour
	}
}
