package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/THuebbe/yardsign/internal/app"
	"github.com/THuebbe/yardsign/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client calls the external rendering service that turns an order snapshot
// into a pick ticket, order summary, or pickup checklist. All failures wrap
// domain.ErrUpstream; the caller decides whether they matter.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type generateRequest struct {
	Kind   string        `json:"kind"`
	Tenant tenantPayload `json:"tenant"`
	Order  orderPayload  `json:"order"`
	Items  []linePayload `json:"items"`
}

type tenantPayload struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type orderPayload struct {
	OrderNumber    string    `json:"order_number"`
	InternalNumber string    `json:"internal_number"`
	CustomerName   string    `json:"customer_name"`
	EventDate      time.Time `json:"event_date"`
	EventAddress   string    `json:"event_address,omitempty"`
	TotalCents     int       `json:"total_cents"`
}

type linePayload struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type generateResponse struct {
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Generate implements app.DocumentGenerator.
func (c *Client) Generate(ctx context.Context, kind domain.DocumentKind, snap app.OrderSnapshot) (domain.Document, error) {
	req := generateRequest{
		Kind: string(kind),
		Tenant: tenantPayload{
			Name:         snap.Tenant.Name,
			Abbreviation: snap.Tenant.Abbreviation,
		},
		Order: orderPayload{
			OrderNumber:    snap.Order.OrderNumber,
			InternalNumber: snap.Order.InternalNumber,
			CustomerName:   snap.Order.Customer.Name,
			EventDate:      snap.Order.Customer.EventDate,
			EventAddress:   snap.Order.Customer.EventAddress,
			TotalCents:     snap.Order.TotalCents,
		},
	}
	for _, it := range snap.Items {
		req.Items = append(req.Items, linePayload{ItemID: it.ItemID, Quantity: it.Quantity})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode document request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return domain.Document{}, fmt.Errorf("build document request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.Document{}, fmt.Errorf("document service: %v: %w", err, domain.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.Document{}, fmt.Errorf("document service returned %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Document{}, fmt.Errorf("decode document response: %v: %w", err, domain.ErrUpstream)
	}

	return domain.Document{
		Kind:        kind,
		URL:         out.URL,
		Filename:    out.Filename,
		GeneratedAt: out.GeneratedAt,
	}, nil
}
