package fawaterk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/altayar/travel-payments/internal/payment/application"
	"github.com/altayar/travel-payments/internal/payment/domain"
)

// maxErrBody caps how much of a provider error response is kept for
// diagnostics.
const maxErrBody = 512

type Config struct {
	BaseURL         string
	APIKey          string // bearer credential for outbound calls
	VendorKey       string // shared secret for webhook signatures
	DefaultMethodID int
	// ForceCurrency overrides the request currency when set. The provider's
	// v2 API rejects some currencies on hosted checkout.
	ForceCurrency string
	Timeout       time.Duration
}

type Client struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	if cfg.DefaultMethodID == 0 {
		cfg.DefaultMethodID = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		log: log,
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
	}
}

// buildPayload assembles the provider body. Optional customer fields must not
// be blank: the provider rejects empty phone and address values outright.
func (c *Client) buildPayload(req application.InvoiceRequest) map[string]any {
	methodID := req.MethodID
	if methodID == 0 {
		methodID = c.cfg.DefaultMethodID
	}
	currency := req.Currency
	if c.cfg.ForceCurrency != "" {
		currency = c.cfg.ForceCurrency
	}

	phone := req.Customer.Phone
	if phone == "" {
		phone = "01000000000"
	}
	first := req.Customer.FirstName
	if first == "" {
		first = "Customer"
	}
	last := req.Customer.LastName
	if last == "" {
		last = "User"
	}

	items := req.CartItems
	if len(items) == 0 {
		items = []application.LineItem{{Name: "Payment", Price: req.Amount, Quantity: 1}}
	}
	total := decimal.Zero
	cartItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(qty))))
		cartItems = append(cartItems, map[string]any{
			"name":     it.Name,
			"price":    it.Price.String(),
			"quantity": qty,
		})
	}

	payload := map[string]any{
		"payment_method_id": methodID,
		"cartTotal":         total.String(),
		"currency":          currency,
		"customer": map[string]any{
			"first_name":         first,
			"last_name":          last,
			"email":              req.Customer.Email,
			"phone":              phone,
			"address":            "N/A",
			"customer_unique_id": req.Customer.ID,
		},
		"redirectionUrls": map[string]any{
			"successUrl": req.SuccessURL,
			"failUrl":    req.FailURL,
			"pendingUrl": req.FailURL,
		},
		"cartItems": cartItems,
	}
	if req.SaveCard {
		payload["save_card"] = true
	}
	return payload
}

// CreateInvoice opens a hosted-checkout invoice and returns the redirect URL.
func (c *Client) CreateInvoice(ctx context.Context, req application.InvoiceRequest) (application.Invoice, error) {
	payload := c.buildPayload(req)

	raw, err := c.post(ctx, "/invoiceInitPay", payload)
	if err != nil {
		return application.Invoice{}, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Data) == 0 {
		return application.Invoice{}, &domain.GatewayError{StatusCode: http.StatusOK, Body: truncate(string(raw))}
	}

	var data struct {
		InvoiceID  json.Number `json:"invoice_id"`
		InvoiceKey string      `json:"invoice_key"`
		URL        string      `json:"url"`
		RedirectTo string      `json:"redirectTo"`
		FawryCode  string      `json:"fawry_code"`
		ExpireDate string      `json:"expire_date"`
		PaymentData struct {
			RedirectTo string `json:"redirectTo"`
			FawryCode  string `json:"fawryCode"`
			ExpireDate string `json:"expireDate"`
		} `json:"payment_data"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return application.Invoice{}, &domain.GatewayError{StatusCode: http.StatusOK, Body: truncate(string(raw))}
	}

	// The redirect URL shows up in one of three places depending on method.
	url := data.URL
	if url == "" {
		url = data.PaymentData.RedirectTo
	}
	if url == "" {
		url = data.RedirectTo
	}
	if url == "" {
		return application.Invoice{}, &domain.GatewayError{
			StatusCode: http.StatusOK,
			Message:    "no payment url in provider response",
			Body:       truncate(string(raw)),
		}
	}

	fawry := data.FawryCode
	if fawry == "" {
		fawry = data.PaymentData.FawryCode
	}
	expires := data.ExpireDate
	if expires == "" {
		expires = data.PaymentData.ExpireDate
	}

	return application.Invoice{
		InvoiceID:  data.InvoiceID.String(),
		InvoiceKey: data.InvoiceKey,
		URL:        url,
		FawryCode:  fawry,
		ExpiresAt:  expires,
		Raw:        raw,
	}, nil
}

// CreateCardTokenURL opens a hosted card-entry session. The user id rides
// along as the provider-side customer key so the token webhook can be
// attributed later.
func (c *Client) CreateCardTokenURL(ctx context.Context, cust application.Customer, redirectURL string) (string, error) {
	first := cust.FirstName
	if first == "" {
		first = "Valued"
	}
	last := cust.LastName
	if last == "" {
		last = "Customer"
	}
	phone := cust.Phone
	if phone == "" {
		phone = "01000000000"
	}

	payload := map[string]any{
		"customer": map[string]any{
			"first_name":         first,
			"last_name":          last,
			"email":              cust.Email,
			"phone":              phone,
			"address":            "N/A",
			"customer_unique_id": cust.ID,
		},
		"redirectionUrls": map[string]any{
			"successUrl": redirectURL,
			"failUrl":    redirectURL,
		},
		"currency": c.cfg.ForceCurrency,
	}

	raw, err := c.post(ctx, "/createCardTokenScreen", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Data struct {
			URL         string `json:"url"`
			PaymentData struct {
				RedirectTo string `json:"redirectTo"`
			} `json:"payment_data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", &domain.GatewayError{StatusCode: http.StatusOK, Body: truncate(string(raw))}
	}
	if result.Data.URL != "" {
		return result.Data.URL, nil
	}
	if result.Data.PaymentData.RedirectTo != "" {
		return result.Data.PaymentData.RedirectTo, nil
	}
	return "", &domain.GatewayError{
		StatusCode: http.StatusOK,
		Message:    "no tokenization url in provider response",
		Body:       truncate(string(raw)),
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fawaterk request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fawaterk response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &domain.GatewayError{StatusCode: resp.StatusCode, Body: truncate(string(raw))}
		// The provider usually wraps errors as {"message": "..."}.
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &msg) == nil && msg.Message != "" {
			gwErr.Message = msg.Message
		}
		c.log.Error("fawaterk call failed", "path", path, "status", resp.StatusCode, "body", gwErr.Body)
		return nil, gwErr
	}
	return raw, nil
}

func truncate(s string) string {
	if len(s) > maxErrBody {
		return s[:maxErrBody]
	}
	return s
}
