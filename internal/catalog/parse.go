package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/killmongerinheret/vinted-watch/internal/model"
)

// Item is the catalog API's own item shape, distinct from model.Item:
// it carries the raw wire fields before a query id is known. The worker
// attaches QueryID when handing items to the ingestion pipeline.
type Item struct {
	ID          string
	Title       string
	Price       string
	Currency    string
	PublishedTS int64
	PhotoURL    string
	BrandTitle  string
	SizeTitle   *string
}

// ToModel attaches the owning query id, producing a model.Item ready for
// the ingestion pipeline.
func (it Item) ToModel(queryID int64) model.Item {
	return model.Item{
		ID:          it.ID,
		Title:       it.Title,
		Price:       it.Price,
		Currency:    it.Currency,
		PublishedTS: it.PublishedTS,
		PhotoURL:    it.PhotoURL,
		BrandTitle:  it.BrandTitle,
		QueryID:     queryID,
		SizeTitle:   it.SizeTitle,
	}
}

type apiResponse struct {
	Items []apiItem `json:"items"`
}

type apiItem struct {
	ID    json.RawMessage `json:"id"`
	Title string          `json:"title"`
	Price struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currency_code"`
	} `json:"price"`
	CreatedAtTS  json.Number `json:"created_at_ts"`
	RawTimestamp json.Number `json:"raw_timestamp"`
	Photo        *struct {
		URL string `json:"url"`
	} `json:"photo"`
	BrandTitle string  `json:"brand_title"`
	SizeTitle  *string `json:"size_title"`
}

// ParseItems decodes a catalog API response body into Items. host is
// used only for error context.
func ParseItems(body []byte, host string) ([]Item, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", host, err)
	}

	items := make([]Item, 0, len(resp.Items))
	for _, raw := range resp.Items {
		item, err := fromAPIItem(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func fromAPIItem(raw apiItem) (Item, error) {
	// The id arrives as either a JSON string or a bare number.
	var id string
	if err := json.Unmarshal(raw.ID, &id); err != nil {
		id = string(raw.ID)
	}

	price, err := fixedPoint(raw.Price.Amount)
	if err != nil {
		return Item{}, fmt.Errorf("item %s: price: %w", id, err)
	}

	ts, err := publishedTimestamp(raw)
	if err != nil {
		return Item{}, fmt.Errorf("item %s: timestamp: %w", id, err)
	}

	photoURL := ""
	if raw.Photo != nil {
		photoURL = raw.Photo.URL
	}

	return Item{
		ID:          id,
		Title:       raw.Title,
		Price:       price,
		Currency:    raw.Price.CurrencyCode,
		PublishedTS: ts,
		PhotoURL:    photoURL,
		BrandTitle:  raw.BrandTitle,
		SizeTitle:   raw.SizeTitle,
	}, nil
}

// fixedPoint normalizes a decimal-string price to two fractional
// digits: "12" -> "12.00", "12.5" -> "12.50", "12.349" -> "12.34".
func fixedPoint(amount string) (string, error) {
	if amount == "" {
		return "0.00", nil
	}

	neg := strings.HasPrefix(amount, "-")
	if neg {
		amount = amount[1:]
	}

	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}
	if _, err := strconv.ParseUint(whole, 10, 64); err != nil {
		return "", fmt.Errorf("invalid amount %q", amount)
	}

	for len(frac) < 2 {
		frac += "0"
	}
	frac = frac[:2]

	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out, nil
}

// publishedTimestamp prefers created_at_ts, falling back to the numeric
// raw_timestamp field.
func publishedTimestamp(raw apiItem) (int64, error) {
	if raw.CreatedAtTS.String() != "" {
		if ts, err := raw.CreatedAtTS.Int64(); err == nil {
			return ts, nil
		}
	}
	if raw.RawTimestamp.String() != "" {
		return raw.RawTimestamp.Int64()
	}
	return 0, fmt.Errorf("no usable timestamp field")
}
