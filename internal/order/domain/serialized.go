package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SerializedOrder 订单的扁平化持久形态
// 时间戳统一为 unix 秒（UTC），往返转换须还原出等价订单
type SerializedOrder struct {
	ID              int64           `json:"id"`
	Symbol          string          `json:"symbol"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	Quantity        decimal.Decimal `json:"quantity"`
	FilledQuantity  decimal.Decimal `json:"filled_quantity"`
	Price           decimal.Decimal `json:"price"`
	PriceCurrency   string          `json:"price_currency"`
	LimitPrice      decimal.Decimal `json:"limit_price"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	TriggerPrice    decimal.Decimal `json:"trigger_price"`
	CreatedTime     int64           `json:"created_time"`
	LastFillTime    *int64          `json:"last_fill_time,omitempty"`
	LastUpdateTime  *int64          `json:"last_update_time,omitempty"`
	CanceledTime    *int64          `json:"canceled_time,omitempty"`
	Tag             string          `json:"tag"`
	BrokerIDs       []string        `json:"broker_ids,omitempty"`
	ContingentID    int64           `json:"contingent_id"`
	TimeInForceType string          `json:"time_in_force_type"`
	TIFExpiry       int64           `json:"time_in_force_expiry,omitempty"`
	SubmissionBid   decimal.Decimal `json:"submission_bid"`
	SubmissionAsk   decimal.Decimal `json:"submission_ask"`
	SubmissionLast  decimal.Decimal `json:"submission_last"`
}

// Serialize 扁平化订单
func (o *Order) Serialize() *SerializedOrder {
	s := &SerializedOrder{
		ID:             o.ID,
		Symbol:         o.Symbol,
		Type:           o.Type.String(),
		Status:         o.Status.String(),
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Price:          o.Price,
		PriceCurrency:  o.PriceCurrency,
		LimitPrice:     o.LimitPrice,
		StopPrice:      o.StopPrice,
		TriggerPrice:   o.TriggerPrice,
		CreatedTime:    o.Time.UTC().Unix(),
		Tag:            o.Tag,
		ContingentID:   o.ContingentID,
	}

	if o.LastFillTime != nil {
		v := o.LastFillTime.UTC().Unix()
		s.LastFillTime = &v
	}
	if o.LastUpdateTime != nil {
		v := o.LastUpdateTime.UTC().Unix()
		s.LastUpdateTime = &v
	}
	if o.CanceledTime != nil {
		v := o.CanceledTime.UTC().Unix()
		s.CanceledTime = &v
	}
	if len(o.BrokerIDs) > 0 {
		s.BrokerIDs = make([]string, len(o.BrokerIDs))
		copy(s.BrokerIDs, o.BrokerIDs)
	}

	tif := o.Properties.EffectiveTimeInForce()
	s.TimeInForceType = tif.Type.String()
	if tif.Type == TIFGoodTilDate {
		s.TIFExpiry = tif.Expiry.Unix()
	}

	if o.SubmissionData != nil {
		s.SubmissionBid = o.SubmissionData.BidPrice
		s.SubmissionAsk = o.SubmissionData.AskPrice
		s.SubmissionLast = o.SubmissionData.LastPrice
	}

	return s
}

// FromSerialized 从扁平化记录重建订单
// 订单类型无法识别返回 ErrInvalidOrderType；有效期类型无法识别时
// 降级为 nil（既有行为，调用方记录 WARN，不在此处纠正）
func FromSerialized(s *SerializedOrder) (*Order, error) {
	orderType, err := ParseOrderType(s.Type)
	if err != nil {
		return nil, err
	}

	status, err := parseOrderStatus(s.Status)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:             s.ID,
		Symbol:         s.Symbol,
		Quantity:       s.Quantity,
		FilledQuantity: s.FilledQuantity,
		Type:           orderType,
		Status:         status,
		Price:          s.Price,
		PriceCurrency:  s.PriceCurrency,
		LimitPrice:     s.LimitPrice,
		StopPrice:      s.StopPrice,
		TriggerPrice:   s.TriggerPrice,
		Time:           time.Unix(s.CreatedTime, 0).UTC(),
		Tag:            s.Tag,
		ContingentID:   s.ContingentID,
		Properties: &OrderProperties{
			TimeInForce: DecodeTimeInForce(s.TimeInForceType, s.TIFExpiry),
		},
		SubmissionData: &SubmissionData{
			BidPrice:  s.SubmissionBid,
			AskPrice:  s.SubmissionAsk,
			LastPrice: s.SubmissionLast,
		},
	}

	if s.LastFillTime != nil {
		t := time.Unix(*s.LastFillTime, 0).UTC()
		o.LastFillTime = &t
	}
	if s.LastUpdateTime != nil {
		t := time.Unix(*s.LastUpdateTime, 0).UTC()
		o.LastUpdateTime = &t
	}
	if s.CanceledTime != nil {
		t := time.Unix(*s.CanceledTime, 0).UTC()
		o.CanceledTime = &t
	}
	if len(s.BrokerIDs) > 0 {
		o.BrokerIDs = make([]string, len(s.BrokerIDs))
		copy(o.BrokerIDs, s.BrokerIDs)
	}

	return o, nil
}

func parseOrderStatus(name string) (OrderStatus, error) {
	for _, st := range []OrderStatus{StatusNew, StatusSubmitted, StatusPartiallyFilled, StatusFilled, StatusCanceled, StatusInvalid} {
		if st.String() == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown order status name: %s", name)
}
