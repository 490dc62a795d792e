package application

// ReserveFundsRequest Saga 正向/补偿分支的请求体，
// 金额走字符串避免二进制浮点误差。
type ReserveFundsRequest struct {
	OrderID     int64  `json:"order_id"`
	Symbol      string `json:"symbol"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	FeeCurrency string `json:"fee_currency"`
}
