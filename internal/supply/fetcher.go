package supply

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"
)

// DefaultEndpoint is the Etherscan statistics API.
const DefaultEndpoint = "https://api.etherscan.io/api"

// ErrDegraded is returned by callers that refuse to continue without a supply figure.
var ErrDegraded = errors.New("external supply degraded")

// Config configures the statistics API client.
type Config struct {
	Endpoint string
	APIKey   string
	Contract common.Address
	Timeout  time.Duration
}

// Result is the outcome of one supply request. OK is false when the API
// answered but did not yield a usable figure; Total is then meaningless.
type Result struct {
	Total      uint64
	OK         bool
	StatusCode int
	Reason     string
}

// Fetcher reads a token's total supply from a block-explorer statistics API.
type Fetcher struct {
	cfg    Config
	cli    *gentleman.Client
	logger *zap.Logger
}

func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cli := gentleman.New().URL(cfg.Endpoint)
	if cfg.Timeout > 0 {
		cli.Use(timeout.Request(cfg.Timeout))
	}
	return &Fetcher{cfg: cfg, cli: cli, logger: logger}
}

// Fetch issues one tokensupply request. Transport failures are returned as
// errors; a response that cannot be used is reported with OK=false.
func (f *Fetcher) Fetch(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	req := f.cli.Request()
	req.Context.SetCancelContext(ctx)
	req.Method("GET")
	req.AddQuery("module", "stats")
	req.AddQuery("action", "tokensupply")
	req.AddQuery("contractaddress", f.cfg.Contract.Hex())
	if f.cfg.APIKey != "" {
		req.AddQuery("apikey", f.cfg.APIKey)
	}

	resp, err := req.Send()
	if err != nil {
		return Result{}, fmt.Errorf("token supply request: %w", err)
	}

	if !resp.Ok {
		res := Result{StatusCode: resp.StatusCode, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
		f.logger.Warn("token supply request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(resp.String(), 256)),
		)
		return res, nil
	}

	res := parseBody(resp.Bytes())
	res.StatusCode = resp.StatusCode
	if !res.OK {
		f.logger.Warn("token supply response unusable", zap.String("reason", res.Reason))
	}
	return res, nil
}

func parseBody(body []byte) Result {
	if !gjson.ValidBytes(body) {
		return Result{Reason: "invalid json body"}
	}

	parsed := gjson.ParseBytes(body)
	result := parsed.Get("result")
	if status := parsed.Get("status"); status.Exists() && status.String() == "0" {
		return Result{Reason: fmt.Sprintf("api error: %s: %s", parsed.Get("message").String(), result.String())}
	}

	var text string
	switch result.Type {
	case gjson.Number:
		text = result.Raw
	case gjson.String:
		text = strings.TrimSpace(result.Str)
	default:
		return Result{Reason: "missing numeric result"}
	}

	total, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return Result{Reason: fmt.Sprintf("non-integer result %q", text)}
	}
	return Result{Total: total, OK: true}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
