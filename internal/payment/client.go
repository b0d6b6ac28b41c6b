package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Intent — объект платёжного намерения на стороне провайдера,
// соотносится с заказом один к одному через его идентификатор.
type Intent struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ClientSecret string          `json:"client_secret"`
	Status       string          `json:"status"`
}

// IntentCreator — то, что нужно сервису заказов от платёжного провайдера.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error)
}

// Client — HTTP-клиент платёжного провайдера.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreateIntent создаёт платёжное намерение у провайдера.
// Каждый запрос снабжается ключом идемпотентности, чтобы сетевой повтор
// не породил второй платёж.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error) {
	body, err := json.Marshal(createIntentRequest{Amount: amount, Currency: currency})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}
	return &intent, nil
}
