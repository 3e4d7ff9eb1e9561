// Package numbers wraps the third-party virtual number rental API with a
// bounded retry loop, a per-attempt timeout and payload normalization.
package numbers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/tidwall/gjson"
)

// Provider actions.
const (
	ActionServices = "services"
	ActionPurchase = "purchase"
	ActionNumbers  = "numbers"
	ActionSMS      = "sms"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	maxPayloadBytes = 4 << 20
)

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

type Gateway struct {
	cfg    Config
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewGateway(cfg Config, httpClient *http.Client) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Gateway{cfg: cfg, client: httpClient, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryDelay is the wait before retry k (k >= 1): base × k.
func RetryDelay(base time.Duration, k int) time.Duration {
	return base * time.Duration(k)
}

// Call performs action with params, retrying failed attempts sequentially.
// After MaxAttempts failures it returns a provider failure carrying the
// last error's message.
func (g *Gateway) Call(ctx context.Context, action string, params url.Values) (gjson.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.sleep(ctx, RetryDelay(g.cfg.BaseDelay, attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		result, err := g.attempt(ctx, action, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Printf("Virtual number %s attempt %d/%d failed: %v", action, attempt, g.cfg.MaxAttempts, err)
	}
	return gjson.Result{}, domain.WrapError(domain.KindProviderFailure, lastErr.Error(), lastErr)
}

func (g *Gateway) attempt(ctx context.Context, action string, params url.Values) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", g.cfg.APIKey)
	query.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", redactKey(err, g.cfg.APIKey))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return gjson.Result{}, fmt.Errorf("request timed out after %s", g.cfg.Timeout)
		}
		return gjson.Result{}, fmt.Errorf("request failed: %w", redactKey(err, g.cfg.APIKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("provider returned malformed JSON")
	}

	result := gjson.ParseBytes(body)
	if msg, failed := providerError(result); failed {
		return gjson.Result{}, errors.New(msg)
	}
	return result, nil
}

// providerError detects error envelopes returned with a 2xx status.
func providerError(result gjson.Result) (string, bool) {
	if !result.IsObject() {
		return "", false
	}
	success := result.Get("success")
	status := strings.ToLower(result.Get("status").String())
	if (success.Exists() && !success.Bool()) || status == "error" || status == "failed" {
		msg := firstString(result, "message", "error", "msg")
		if msg == "" {
			msg = "provider reported failure"
		}
		return msg, true
	}
	return "", false
}

// redactKey keeps the api key out of error messages surfaced to users.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	return errors.New(strings.ReplaceAll(msg, key, "REDACTED"))
}

// items returns the entity list of a payload: a top-level array, or the
// array under "data".
func items(result gjson.Result) []gjson.Result {
	if data := result.Get("data"); data.Exists() {
		result = data
	}
	if result.IsArray() {
		return result.Array()
	}
	if result.IsObject() {
		return []gjson.Result{result}
	}
	return nil
}

// single returns the entity object of a payload, unwrapping "data".
func single(result gjson.Result) gjson.Result {
	if data := result.Get("data"); data.Exists() {
		result = data
	}
	if result.IsArray() {
		arr := result.Array()
		if len(arr) == 0 {
			return gjson.Result{}
		}
		return arr[0]
	}
	return result
}

// ListServices fetches the current offerings.
func (g *Gateway) ListServices(ctx context.Context) ([]domain.Offering, error) {
	result, err := g.Call(ctx, ActionServices, nil)
	if err != nil {
		return nil, err
	}
	var offerings []domain.Offering
	for _, raw := range items(result) {
		o := NormalizeOffering(raw)
		if o.ServiceID == "" {
			continue
		}
		offerings = append(offerings, o)
	}
	return offerings, nil
}

// PurchaseResult is a successful purchase and the balance after debiting it.
type PurchaseResult struct {
	Lease   domain.Lease `json:"lease"`
	Price   int64        `json:"price"`
	Balance int          `json:"credits"`
}

// Purchase rents a number for offering, debiting balance by its price. On
// any failure balance is untouched.
func (g *Gateway) Purchase(ctx context.Context, offering domain.Offering, balance int) (PurchaseResult, error) {
	if strings.TrimSpace(offering.ServiceID) == "" {
		return PurchaseResult{}, domain.NewError(domain.KindValidationFailure, "service id is required")
	}
	if offering.Price < 0 {
		return PurchaseResult{}, domain.NewError(domain.KindValidationFailure, "invalid price")
	}
	if int64(balance) < offering.Price {
		return PurchaseResult{}, domain.NewError(domain.KindInsufficientCredits,
			fmt.Sprintf("purchase needs %d credits, have %d", offering.Price, balance))
	}

	result, err := g.Call(ctx, ActionPurchase, url.Values{"service": {offering.ServiceID}})
	if err != nil {
		return PurchaseResult{}, err
	}
	lease := NormalizeLease(single(result))
	if lease.ID == "" && lease.Number == "" {
		return PurchaseResult{}, domain.NewError(domain.KindProviderFailure, "provider returned no lease")
	}
	if lease.ServiceID == "" {
		lease.ServiceID = offering.ServiceID
	}
	return PurchaseResult{
		Lease:   lease,
		Price:   offering.Price,
		Balance: balance - int(offering.Price),
	}, nil
}

// ListNumbers fetches the rented numbers.
func (g *Gateway) ListNumbers(ctx context.Context) ([]domain.Lease, error) {
	result, err := g.Call(ctx, ActionNumbers, nil)
	if err != nil {
		return nil, err
	}
	var leases []domain.Lease
	for _, raw := range items(result) {
		l := NormalizeLease(raw)
		if l.ID == "" && l.Number == "" {
			continue
		}
		leases = append(leases, l)
	}
	return leases, nil
}

// ListSMS fetches the messages received on leaseID.
func (g *Gateway) ListSMS(ctx context.Context, leaseID string) ([]domain.SMS, error) {
	if strings.TrimSpace(leaseID) == "" {
		return nil, domain.NewError(domain.KindValidationFailure, "lease id is required")
	}
	result, err := g.Call(ctx, ActionSMS, url.Values{"id": {leaseID}})
	if err != nil {
		return nil, err
	}
	var messages []domain.SMS
	for _, raw := range items(result) {
		sms := NormalizeSMS(raw)
		if sms.Text == "" {
			continue
		}
		if sms.LeaseID == "" {
			sms.LeaseID = leaseID
		}
		messages = append(messages, sms)
	}
	return messages, nil
}

// FindOffering returns the offering with serviceID from offerings.
func FindOffering(offerings []domain.Offering, serviceID string) (domain.Offering, bool) {
	for _, o := range offerings {
		if o.ServiceID == serviceID {
			return o, true
		}
	}
	return domain.Offering{}, false
}
