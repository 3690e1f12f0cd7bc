package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// StockRecord is the normalized result of a stock query. Mock marks a
// synthetic placeholder produced when the upstream body could not be parsed;
// FromHTML marks records recovered (or stubbed) from an HTML body. Callers
// must branch on Mock instead of trusting every record equally.
type StockRecord struct {
	Success     bool    `json:"success"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Description string  `json:"description,omitempty"`
	Mock        bool    `json:"mock,omitempty"`
	FromHTML    bool    `json:"from_html,omitempty"`
}

// BuyRecord is the normalized result of a buy call.
type BuyRecord struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id,omitempty"`
	Description string `json:"description,omitempty"`
	Mock        bool   `json:"mock,omitempty"`
	FromHTML    bool   `json:"from_html,omitempty"`
}

// DeliveredItem is a single delivered good (an account line, a key).
type DeliveredItem struct {
	Product string `json:"product"`
}

// GoodsRecord is the normalized result of a fulfillment query.
type GoodsRecord struct {
	Success     bool            `json:"success"`
	Items       []DeliveredItem `json:"data,omitempty"`
	Description string          `json:"description,omitempty"`
	Mock        bool            `json:"mock,omitempty"`
	FromHTML    bool            `json:"from_html,omitempty"`
}

// StillProcessing reports whether the upstream answered "Order in processing!",
// which consumes a poll attempt instead of aborting the loop.
func (g *GoodsRecord) StillProcessing() bool {
	return !g.Success && strings.Contains(strings.ToLower(g.Description), "processing")
}

// boolish accepts the upstream's mixed success encodings: true, "true", "false".
type boolish bool

func (b *boolish) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*b = false
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = boolish(strings.EqualFold(s, "true"))
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = boolish(v)
	return nil
}

// numberish accepts numbers sent either as JSON numbers or numeric strings.
type numberish float64

func (n *numberish) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = numberish(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = numberish(f)
	return nil
}

type wireStock struct {
	Success     boolish   `json:"success"`
	Name        string    `json:"name"`
	Price       numberish `json:"price"`
	Stock       numberish `json:"stock"`
	Description string    `json:"description"`
}

type wireBuy struct {
	Success     boolish `json:"success"`
	OrderID     string  `json:"order_id"`
	Description string  `json:"description"`
}

type wireGoods struct {
	Success     boolish         `json:"success"`
	Data        []DeliveredItem `json:"data"`
	Description string          `json:"description"`
}

// allOriginsEnvelope is the {contents, status} wrapper returned by the
// allorigins get?url= endpoint.
type allOriginsEnvelope struct {
	Contents string `json:"contents"`
	Status   struct {
		URL      string `json:"url"`
		HTTPCode int    `json:"http_code"`
	} `json:"status"`
}
