package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/internal/metrics"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

const (
	opInitialize = "initialize"
	opVerify     = "verify"

	paystackSuccess = "success"
)

// PaystackConfig 网关参数
type PaystackConfig struct {
	SecretKey    string
	BaseURL      string
	Timeout      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
}

// Paystack REST API 客户端
type Paystack struct {
	secretKey string
	baseURL   string
	timeout   time.Duration
	client    *http.Client
	breaker   *CircuitBreaker
}

func NewPaystack(cfg PaystackConfig) *Paystack {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	return &Paystack{
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		timeout:   cfg.Timeout,
		client:    &http.Client{Timeout: cfg.Timeout},
		breaker:   NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
	}
}

// Breaker 熔断器，供指标导出状态
func (p *Paystack) Breaker() *CircuitBreaker { return p.breaker }

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Amount      int64    `json:"amount"`
	Email       string   `json:"email"`
	Reference   string   `json:"reference"`
	Currency    string   `json:"currency"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	ID              json.Number `json:"id"`
	Status          string      `json:"status"`
	Reference       string      `json:"reference"`
	Amount          int64       `json:"amount"`
	Currency        string      `json:"currency"`
	GatewayResponse string      `json:"gateway_response"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := initializeBody{
		Amount:      req.AmountMinor,
		Email:       req.Email,
		Reference:   req.Reference,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	var data initializeData
	if err := p.call(ctx, opInitialize, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" {
		return nil, p.fail(opInitialize, errors.New("response has no authorization_url"))
	}
	return &InitializeResult{
		RedirectURL: data.AuthorizationURL,
		Reference:   data.Reference,
		AccessCode:  data.AccessCode,
	}, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if reference == "" {
		return nil, p.fail(opVerify, errors.New("empty reference"))
	}

	var data verifyData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.call(ctx, opVerify, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &VerifyResult{
		Succeeded:     data.Status == paystackSuccess,
		TransactionID: data.ID.String(),
		Reference:     data.Reference,
		RawStatus:     data.Status,
		AmountMinor:   data.Amount,
	}, nil
}

func (p *Paystack) call(ctx context.Context, op, method, path string, in, out interface{}) error {
	if p.secretKey == "" {
		return p.fail(op, errors.New("secret key not configured"))
	}

	err := p.breaker.Execute(func() error {
		return p.do(ctx, op, method, path, in, out)
	}, func(err error) bool {
		return errors.Is(err, ErrUnavailable)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return p.fail(op, err)
	}
	return err
}

func (p *Paystack) do(ctx context.Context, op, method, path string, in, out interface{}) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := otel.Tracer("payment").Start(ctx, "paystack."+op)
	span.SetAttributes(attribute.String("http.method", method), attribute.String("paystack.path", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return p.fail(op, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return p.fail(op, err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return p.fail(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return p.fail(op, fmt.Errorf("read body: %w", err))
	}
	logger.Debug("paystack call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.fail(op, fmt.Errorf("http %d: %s", resp.StatusCode, snippet(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return p.fail(op, fmt.Errorf("decode envelope: %w", err))
	}
	if !env.Status {
		return p.fail(op, fmt.Errorf("status=false: %s", env.Message))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return p.fail(op, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

func (p *Paystack) fail(op string, err error) error {
	metrics.GatewayError(op)
	return unavailable(op, err)
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..." + strconv.Itoa(len(b)-max) + " more bytes"
	}
	return string(b)
}
