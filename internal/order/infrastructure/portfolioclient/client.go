// Package portfolioclient 提供 portfolio 服务的 HTTP 客户端，
// order 服务提交前用它查询当前持仓做穿仓判定。
package portfolioclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Client portfolio 服务客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

type holdingPayload struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
}

type holdingResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    holdingPayload `json:"data"`
}

// HoldingQuantity 查询证券当前带符号持仓数量
func (c *Client) HoldingQuantity(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/v1/portfolio/holdings/%s", c.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("portfolio service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("portfolio service returned status %d", resp.StatusCode)
	}

	var body holdingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode holding response: %w", err)
	}
	if body.Code != 0 {
		return decimal.Zero, fmt.Errorf("portfolio service error: %s", body.Message)
	}
	if body.Data.Quantity == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(body.Data.Quantity)
}
