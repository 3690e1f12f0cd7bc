package upstream

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// The upstream occasionally serves HTML error or challenge pages where JSON is
// expected. Classification happens on both the content type and the body.
var htmlPattern = regexp.MustCompile(`(?i)<!doctype\s+html|<html[\s>]|<head[\s>]|<body[\s>]`)

func looksLikeHTML(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	return htmlPattern.Match(body)
}

// Best-effort extraction of stock fields out of an HTML page, keyed by the
// field class names the upstream storefront renders.
var (
	htmlNamePattern  = regexp.MustCompile(`class="[^"]*product-name[^"]*"[^>]*>\s*([^<]+)`)
	htmlPricePattern = regexp.MustCompile(`class="[^"]*product-price[^"]*"[^>]*>\s*([0-9.,]+)`)
	htmlStockPattern = regexp.MustCompile(`class="[^"]*product-stock[^"]*"[^>]*>\s*([0-9]+)`)
)

func normalizeStock(body []byte, contentType string, allOrigins bool) *StockRecord {
	// The envelope unwrap must run before the HTML sniff: a real allorigins
	// envelope carries literal markup inside the contents string, so sniffing
	// the raw body would match the envelope itself and hide extractable pages.
	if allOrigins {
		inner, ok := unwrapAllOrigins(body)
		if !ok {
			if looksLikeHTML(body, contentType) {
				return stockFromHTML(body)
			}
			return placeholderStock(false)
		}
		if looksLikeHTML(inner, "") {
			return stockFromHTML(inner)
		}
		body = inner
	} else if looksLikeHTML(body, contentType) {
		return stockFromHTML(body)
	}

	var w wireStock
	if err := json.Unmarshal(body, &w); err != nil {
		return placeholderStock(false)
	}

	return &StockRecord{
		Success:     bool(w.Success),
		Name:        w.Name,
		Price:       float64(w.Price),
		Stock:       int(w.Stock),
		Description: w.Description,
	}
}

func normalizeBuy(body []byte, contentType string, allOrigins bool) *BuyRecord {
	if allOrigins {
		inner, ok := unwrapAllOrigins(body)
		if !ok {
			return placeholderBuy(looksLikeHTML(body, contentType))
		}
		if looksLikeHTML(inner, "") {
			return placeholderBuy(true)
		}
		body = inner
	} else if looksLikeHTML(body, contentType) {
		return placeholderBuy(true)
	}

	var w wireBuy
	if err := json.Unmarshal(body, &w); err != nil {
		return placeholderBuy(false)
	}

	return &BuyRecord{
		Success:     bool(w.Success),
		OrderID:     w.OrderID,
		Description: w.Description,
	}
}

func normalizeGoods(body []byte, contentType string, allOrigins bool) *GoodsRecord {
	if allOrigins {
		inner, ok := unwrapAllOrigins(body)
		if !ok {
			return placeholderGoods(looksLikeHTML(body, contentType))
		}
		if looksLikeHTML(inner, "") {
			return placeholderGoods(true)
		}
		body = inner
	} else if looksLikeHTML(body, contentType) {
		return placeholderGoods(true)
	}

	var w wireGoods
	if err := json.Unmarshal(body, &w); err != nil {
		return placeholderGoods(false)
	}

	return &GoodsRecord{
		Success:     bool(w.Success),
		Items:       w.Data,
		Description: w.Description,
	}
}

// unwrapAllOrigins extracts the proxied body out of the {contents, status}
// envelope. The inner contents may itself be JSON or HTML.
func unwrapAllOrigins(body []byte) ([]byte, bool) {
	var env allOriginsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Contents == "" {
		return nil, false
	}
	return []byte(env.Contents), true
}

func stockFromHTML(body []byte) *StockRecord {
	rec := &StockRecord{FromHTML: true}

	if m := htmlNamePattern.FindSubmatch(body); m != nil {
		rec.Name = strings.TrimSpace(string(m[1]))
	}
	if m := htmlPricePattern.FindSubmatch(body); m != nil {
		raw := strings.ReplaceAll(string(m[1]), ",", "")
		if price, err := strconv.ParseFloat(raw, 64); err == nil {
			rec.Price = price
		}
	}
	if m := htmlStockPattern.FindSubmatch(body); m != nil {
		if stock, err := strconv.Atoi(string(m[1])); err == nil {
			rec.Stock = stock
		}
	}

	// Nothing usable extracted: fall back to the tagged placeholder.
	if rec.Name == "" {
		return placeholderStock(true)
	}

	rec.Success = true
	return rec
}

func placeholderStock(fromHTML bool) *StockRecord {
	return &StockRecord{
		Success:     false,
		Name:        "Unknown product",
		Description: "upstream response could not be parsed",
		Mock:        true,
		FromHTML:    fromHTML,
	}
}

func placeholderBuy(fromHTML bool) *BuyRecord {
	return &BuyRecord{
		Success:     false,
		Description: "upstream response could not be parsed",
		Mock:        true,
		FromHTML:    fromHTML,
	}
}

func placeholderGoods(fromHTML bool) *GoodsRecord {
	return &GoodsRecord{
		Success:     false,
		Description: "upstream response could not be parsed",
		Mock:        true,
		FromHTML:    fromHTML,
	}
}
