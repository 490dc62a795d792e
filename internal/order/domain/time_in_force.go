package domain

import (
	"time"
)

// TimeInForceType 有效期类型，显式枚举而非按类型名反射解析
type TimeInForceType int8

const (
	TIFGoodTilCanceled TimeInForceType = 0 // 撤销前有效
	TIFDay             TimeInForceType = 1 // 当日有效
	TIFGoodTilDate     TimeInForceType = 2 // 指定日期前有效
)

// tifNames 有效期类型名映射
var tifNames = map[TimeInForceType]string{
	TIFGoodTilCanceled: "GOOD_TIL_CANCELED",
	TIFDay:             "DAY",
	TIFGoodTilDate:     "GOOD_TIL_DATE",
}

func (t TimeInForceType) String() string {
	if name, ok := tifNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// TimeInForce 订单有效期规则
type TimeInForce struct {
	Type TimeInForceType
	// 到期时刻，仅 GOOD_TIL_DATE 使用
	Expiry time.Time
}

// GoodTilCanceled 撤销前有效
func GoodTilCanceled() *TimeInForce {
	return &TimeInForce{Type: TIFGoodTilCanceled}
}

// Day 当日有效
func Day() *TimeInForce {
	return &TimeInForce{Type: TIFDay}
}

// GoodTilDate 指定日期前有效
func GoodTilDate(expiry time.Time) *TimeInForce {
	return &TimeInForce{Type: TIFGoodTilDate, Expiry: expiry.UTC()}
}

// Clone 拷贝
func (t *TimeInForce) Clone() *TimeInForce {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// IsExpired 给定订单在 utcTime 时刻是否已过期
func (t *TimeInForce) IsExpired(o *Order, utcTime time.Time) bool {
	if t == nil {
		return false
	}
	switch t.Type {
	case TIFDay:
		return utcTime.UTC().After(endOfDay(o.Time))
	case TIFGoodTilDate:
		return utcTime.UTC().After(t.Expiry)
	default:
		return false
	}
}

// DecodeTimeInForce 按名称还原有效期规则
// 无法识别的名称返回 nil（历史行为：静默降级；调用方应记录 WARN，见仓储层）
func DecodeTimeInForce(name string, expiryEpoch int64) *TimeInForce {
	switch name {
	case tifNames[TIFGoodTilCanceled]:
		return GoodTilCanceled()
	case tifNames[TIFDay]:
		return Day()
	case tifNames[TIFGoodTilDate]:
		return GoodTilDate(time.Unix(expiryEpoch, 0).UTC())
	default:
		return nil
	}
}

func endOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}
