package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestOrderCrossesZero(t *testing.T) {
	cases := []struct {
		name     string
		holding  int64
		order    int64
		expected bool
	}{
		{"减仓不穿越", 100, -50, false},
		{"多头穿越到空头", 100, -150, true},
		{"空头穿越到多头", -100, 150, true},
		{"空头减仓不穿越", -100, 50, false},
		{"零持仓开仓不穿越", 0, 100, false},
		{"恰好平到零不穿越", 100, -100, false},
		{"同向加仓不穿越", 100, 50, false},
		{"空头同向加仓不穿越", -100, -50, false},
		{"零订单不穿越", 100, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := OrderCrossesZero(decimal.NewFromInt(tc.holding), decimal.NewFromInt(tc.order))
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestOrderCrossesZeroProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		holding := decimal.NewFromInt(rapid.Int64Range(-10000, 10000).Draw(t, "holding"))
		order := decimal.NewFromInt(rapid.Int64Range(-10000, 10000).Draw(t, "order"))

		got := OrderCrossesZero(holding, order)
		next := holding.Add(order)

		// 穿越当且仅当前后符号严格相反
		expected := holding.Sign() != 0 && next.Sign() != 0 && holding.Sign() != next.Sign()
		if got != expected {
			t.Fatalf("holding=%s order=%s: got %v, want %v", holding, order, got, expected)
		}

		// 拆单：先平仓一段 + 剩余一段应恰好等于原订单
		if got {
			closing := ClosingQuantity(holding)
			remaining := order.Sub(closing)
			if !closing.Add(remaining).Equal(order) {
				t.Fatalf("decomposition must preserve total quantity")
			}
			// 剩余一段与成交后持仓同向
			if remaining.Sign() != next.Sign() {
				t.Fatalf("opening leg must match the post-fill direction")
			}
		}
	})
}
