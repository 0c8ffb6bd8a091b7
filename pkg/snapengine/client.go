package snapengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client：吸附引擎契约的 HTTP 客户端
// 约束：调用方设置超时与错误降级，单次请求默认 3 秒超时
type Client struct {
	endpoint string
	hc       *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), hc: &http.Client{Timeout: 3 * time.Second}}
}

// Health：心跳检测，非 200 视为不可用
func (c *Client) Health(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

// Snap：发起一次吸附查询
func (c *Client) Snap(ctx context.Context, q Request) (*Response, error) {
	v := url.Values{}
	v.Set("x", formatCoord(q.X))
	v.Set("y", formatCoord(q.Y))
	v.Set("tolerance", formatCoord(q.Tolerance))
	v.Set("vertices", strconv.FormatBool(q.Vertices))
	v.Set("segments", strconv.FormatBool(q.Segments))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/snap?"+v.Encode(), nil)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("snap status %d", resp.StatusCode)
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
