package acquiring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAPIURL  = "https://securepay.tinkoff.ru/v2"
	DefaultTimeout = 30 * time.Second

	opInit        = "Init"
	opGetState    = "GetState"
	opCharge      = "Charge"
	opCancel      = "Cancel"
	opGetCardList = "GetCardList"

	maxFailureMessageLength = 200
)

// ErrNoResponse is returned when the gateway could not be reached at all.
// Any answer with a body, even a non-2xx one, is decoded into a Response instead.
var ErrNoResponse = errors.New("no response from gateway")

// Config carries the terminal credentials. It is passed explicitly to
// NewClient; nothing is read from the environment here.
type Config struct {
	TerminalKey string
	Password    string
	APIURL      string
	Timeout     time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock overrides time.Now, used for RedirectDueDate checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client talks to the acquiring gateway. Every request carries TerminalKey
// and a Token computed by GenerateToken.
type Client struct {
	terminalKey string
	password    string
	apiURL      string
	httpClient  *http.Client
	logger      *logrus.Logger
	now         func() time.Time
}

func NewClient(cfg Config, logger *logrus.Logger, opts ...Option) (*Client, error) {
	if cfg.TerminalKey == "" {
		return nil, errors.New("acquiring: terminal key is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("acquiring: password is required")
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Client{
		terminalKey: cfg.TerminalKey,
		password:    cfg.Password,
		apiURL:      apiURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Init validates req and registers the payment with the gateway.
func (c *Client) Init(ctx context.Context, req PaymentRequest) (*Response, error) {
	body, err := NormalizeInit(req, c.now())
	if err != nil {
		c.logger.WithFields(logrus.Fields{"order_id": req.OrderID, "error": err}).Error("Payment initialization rejected by validation")
		return nil, err
	}
	return c.call(ctx, opInit, body)
}

// GetState returns the current payment status.
func (c *Client) GetState(ctx context.Context, opts GetStateOptions) (*Response, error) {
	if err := validatePaymentID(opts.PaymentID); err != nil {
		return nil, err
	}
	c.warnOnMalformedIP(opGetState, opts.IP)

	return c.call(ctx, opGetState, getStateBody{PaymentID: opts.PaymentID, IP: opts.IP})
}

// CheckPayment is an alias of GetState.
func (c *Client) CheckPayment(ctx context.Context, opts GetStateOptions) (*Response, error) {
	return c.GetState(ctx, opts)
}

// Charge performs a recurring charge against a stored card (RebillId).
func (c *Client) Charge(ctx context.Context, opts ChargeOptions) (*Response, error) {
	if err := validatePaymentID(opts.PaymentID); err != nil {
		return nil, err
	}
	if opts.RebillID == "" {
		return nil, invalid("RebillId", "RebillId is required")
	}
	c.warnOnMalformedIP(opCharge, opts.IP)

	if opts.SendEmail && opts.InfoEmail == "" {
		return nil, invalid("InfoEmail", "InfoEmail is required when SendEmail is true")
	}
	if opts.InfoEmail != "" && !emailPattern.MatchString(opts.InfoEmail) {
		return nil, invalid("InfoEmail", "Invalid InfoEmail format")
	}

	return c.call(ctx, opCharge, chargeBody{
		PaymentID: opts.PaymentID,
		RebillID:  opts.RebillID,
		IP:        opts.IP,
		SendEmail: opts.SendEmail,
		InfoEmail: opts.InfoEmail,
	})
}

// RecurrentPayment is an alias of Charge.
func (c *Client) RecurrentPayment(ctx context.Context, opts ChargeOptions) (*Response, error) {
	return c.Charge(ctx, opts)
}

// Cancel reverses or refunds a payment, fully or partially when Amount is set.
func (c *Client) Cancel(ctx context.Context, opts CancelOptions) (*Response, error) {
	if opts.PaymentID == "" {
		return nil, invalid("PaymentId", "PaymentId is required")
	}

	return c.call(ctx, opCancel, cancelBody{
		PaymentID:         opts.PaymentID,
		Amount:            opts.Amount,
		IP:                opts.IP,
		Receipt:           opts.Receipt,
		ExternalRequestID: opts.ExternalRequestID,
	})
}

// GetCardList lists the cards saved for a customer.
func (c *Client) GetCardList(ctx context.Context, opts CardListOptions) (*CardListResponse, error) {
	if opts.CustomerKey == "" {
		return nil, invalid("CustomerKey", "CustomerKey is required")
	}

	body, status, err := c.post(ctx, opGetCardList, cardListBody{
		CustomerKey: opts.CustomerKey,
		SavedCard:   opts.SavedCard,
		IP:          opts.IP,
	})
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cards []Card
		if err := json.Unmarshal(trimmed, &cards); err != nil {
			return nil, fmt.Errorf("%s: decode card list: %w", opGetCardList, err)
		}
		return &CardListResponse{Success: true, Cards: cards, HTTPStatus: status}, nil
	}

	resp, err := decodeResponse(opGetCardList, trimmed, status)
	if err != nil {
		return nil, err
	}
	return &CardListResponse{
		Success:    resp.Success,
		ErrorCode:  resp.ErrorCode.String(),
		Message:    resp.Message,
		Details:    resp.Details,
		HTTPStatus: status,
	}, nil
}

func (c *Client) call(ctx context.Context, operation string, payload interface{}) (*Response, error) {
	body, status, err := c.post(ctx, operation, payload)
	if err != nil {
		return nil, err
	}
	return decodeResponse(operation, body, status)
}

// post signs payload and sends it. A non-2xx answer is handed back as if it
// succeeded at the transport level; decodeResponse turns it into a failure.
func (c *Client) post(ctx context.Context, operation string, payload interface{}) ([]byte, int, error) {
	fields, err := Flatten(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", operation, err)
	}
	fields["TerminalKey"] = c.terminalKey
	fields[tokenField] = GenerateToken(fields, c.password)

	reqBody, err := json.Marshal(fields)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: marshal body: %w", operation, err)
	}

	url := c.apiURL + "/" + operation
	c.logger.WithFields(logrus.Fields{"operation": operation, "url": url, "body": string(reqBody)}).Debug("Gateway request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"operation": operation, "error": err}).Error("No response from gateway")
		return nil, 0, fmt.Errorf("%s: %w: %v", operation, ErrNoResponse, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"operation": operation, "error": err}).Error("Failed to read gateway response")
		return nil, resp.StatusCode, fmt.Errorf("%s: %w: read body: %v", operation, ErrNoResponse, err)
	}

	if !isHTTPSuccess(resp.StatusCode) {
		c.logger.WithFields(logrus.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
			"body":      string(respBody),
		}).Error("Gateway request failed")
	} else {
		c.logger.WithFields(logrus.Fields{"operation": operation, "status": resp.StatusCode, "body": string(respBody)}).Debug("Gateway response")
	}

	return respBody, resp.StatusCode, nil
}

// decodeResponse decodes a gateway answer. A non-2xx answer that is not a
// gateway JSON object (an empty body, a proxy's HTML error page) still
// becomes an unsuccessful Response carrying the HTTP status.
func decodeResponse(operation string, body []byte, status int) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		if !isHTTPSuccess(status) {
			return failedResponse(body, status), nil
		}
		return nil, fmt.Errorf("%s: decode response (HTTP %d): %w", operation, status, err)
	}
	if err := json.Unmarshal(body, &resp.Raw); err != nil {
		return nil, fmt.Errorf("%s: decode response (HTTP %d): %w", operation, status, err)
	}
	resp.HTTPStatus = status
	return &resp, nil
}

func failedResponse(body []byte, status int) *Response {
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(status)
	}
	if utf8.RuneCountInString(message) > maxFailureMessageLength {
		message = string([]rune(message)[:maxFailureMessageLength])
	}
	return &Response{
		Success:    false,
		ErrorCode:  FlexString(strconv.Itoa(status)),
		Message:    message,
		HTTPStatus: status,
	}
}

func isHTTPSuccess(status int) bool {
	return status >= 200 && status < 300
}

func validatePaymentID(paymentID string) error {
	if paymentID == "" {
		return invalid("PaymentId", "PaymentId is required")
	}
	if utf8.RuneCountInString(paymentID) > maxPaymentIDLength {
		return invalid("PaymentId", "PaymentId cannot exceed %d characters", maxPaymentIDLength)
	}
	return nil
}

// warnOnMalformedIP only logs: a bad client IP never blocks a request.
func (c *Client) warnOnMalformedIP(operation, ip string) {
	if ip != "" && net.ParseIP(ip) == nil {
		c.logger.WithFields(logrus.Fields{"operation": operation, "ip": ip}).Warn("Invalid IP format provided")
	}
}
