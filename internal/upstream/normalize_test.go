package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStockDirectJSON(t *testing.T) {
	body := []byte(`{"success":true,"name":"Gmail USA","price":25000,"stock":134}`)

	rec := normalizeStock(body, "application/json", false)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.False(t, rec.FromHTML)
	require.Equal(t, "Gmail USA", rec.Name)
	require.Equal(t, 25000.0, rec.Price)
	require.Equal(t, 134, rec.Stock)
}

func TestNormalizeStockStringEncodedFields(t *testing.T) {
	// The upstream mixes types freely: booleans and numbers arrive as strings.
	body := []byte(`{"success":"true","name":"Hotmail Trusted","price":"12500.50","stock":"42"}`)

	rec := normalizeStock(body, "application/json", false)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.Equal(t, 12500.50, rec.Price)
	require.Equal(t, 42, rec.Stock)
}

func TestNormalizeStockHTMLWithoutFields(t *testing.T) {
	body := []byte(`<!DOCTYPE html><html><body><h1>Access denied</h1></body></html>`)

	rec := normalizeStock(body, "text/html; charset=utf-8", false)

	require.False(t, rec.Success)
	require.True(t, rec.Mock)
	require.True(t, rec.FromHTML)
	require.Equal(t, "Unknown product", rec.Name)
}

func TestNormalizeStockHTMLWithProductMarkup(t *testing.T) {
	body := []byte(`<html><body>
		<div class="item product-name">Gmail USA</div>
		<span class="item product-price">25,000</span>
		<span class="item product-stock">134</span>
	</body></html>`)

	rec := normalizeStock(body, "text/html", false)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.True(t, rec.FromHTML)
	require.Equal(t, "Gmail USA", rec.Name)
	require.Equal(t, 25000.0, rec.Price)
	require.Equal(t, 134, rec.Stock)
}

func TestNormalizeStockGarbageBody(t *testing.T) {
	rec := normalizeStock([]byte(`not json at all`), "application/json", false)

	require.False(t, rec.Success)
	require.True(t, rec.Mock)
	require.False(t, rec.FromHTML)
	require.Equal(t, "upstream response could not be parsed", rec.Description)
}

func TestNormalizeStockAllOriginsHTMLContentsExtracted(t *testing.T) {
	// The proxy does not escape angle brackets inside contents, so the raw
	// envelope itself matches the HTML pattern. The unwrap must happen first
	// or the extractable page inside would be lost to the placeholder.
	envelope := []byte(`{"contents":"<html><body>` +
		`<div class=\"item product-name\">Gmail USA</div>` +
		`<span class=\"item product-price\">25,000</span>` +
		`<span class=\"item product-stock\">134</span>` +
		`</body></html>","status":{"url":"https://taphoammo.net/api/getStock","http_code":200}}`)

	rec := normalizeStock(envelope, "application/json", true)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.True(t, rec.FromHTML)
	require.Equal(t, "Gmail USA", rec.Name)
	require.Equal(t, 25000.0, rec.Price)
	require.Equal(t, 134, rec.Stock)
}

func TestNormalizeStockAllOriginsJSONContents(t *testing.T) {
	envelope := []byte(`{"contents":"{\"success\":true,\"name\":\"Gmail USA\",\"price\":25000,\"stock\":134}","status":{"http_code":200}}`)

	rec := normalizeStock(envelope, "application/json", true)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.False(t, rec.FromHTML)
	require.Equal(t, 134, rec.Stock)
}

func TestNormalizeBuyAllOriginsEnvelope(t *testing.T) {
	inner := `{"success":"true","order_id":"ORD-7781"}`
	envelope, err := json.Marshal(map[string]any{
		"contents": inner,
		"status":   map[string]any{"url": "https://taphoammo.net/api/buyProducts", "http_code": 200},
	})
	require.NoError(t, err)

	rec := normalizeBuy(envelope, "application/json", true)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.Equal(t, "ORD-7781", rec.OrderID)
}

func TestNormalizeBuyAllOriginsHTMLContents(t *testing.T) {
	envelope, err := json.Marshal(map[string]any{
		"contents": `<html><body>Cloudflare challenge</body></html>`,
		"status":   map[string]any{"http_code": 403},
	})
	require.NoError(t, err)

	rec := normalizeBuy(envelope, "application/json", true)

	require.False(t, rec.Success)
	require.True(t, rec.Mock)
	require.True(t, rec.FromHTML)
}

func TestNormalizeBuyAllOriginsEmptyContents(t *testing.T) {
	rec := normalizeBuy([]byte(`{"contents":"","status":{"http_code":500}}`), "application/json", true)

	require.False(t, rec.Success)
	require.True(t, rec.Mock)
	require.False(t, rec.FromHTML)
}

func TestNormalizeGoodsAllOriginsContentsWithMarkup(t *testing.T) {
	// Delivered goods whose contents mention markup must still parse as JSON
	// once unwrapped, not be mistaken for an HTML page.
	envelope := []byte(`{"contents":"{\"success\":true,\"data\":[{\"product\":\"<b>user1:pass1</b>\"}]}","status":{"http_code":200}}`)

	rec := normalizeGoods(envelope, "application/json", true)

	require.True(t, rec.Success)
	require.False(t, rec.Mock)
	require.Len(t, rec.Items, 1)
}

func TestNormalizeGoodsDelivered(t *testing.T) {
	body := []byte(`{"success":true,"data":[{"product":"user1:pass1"},{"product":"user2:pass2"}]}`)

	rec := normalizeGoods(body, "application/json", false)

	require.True(t, rec.Success)
	require.Len(t, rec.Items, 2)
	require.Equal(t, "user1:pass1", rec.Items[0].Product)
}

func TestGoodsStillProcessing(t *testing.T) {
	rec := normalizeGoods([]byte(`{"success":false,"description":"Order in processing!"}`), "application/json", false)

	require.False(t, rec.Success)
	require.False(t, rec.Mock)
	require.True(t, rec.StillProcessing())

	rejected := normalizeGoods([]byte(`{"success":false,"description":"Order not found"}`), "application/json", false)
	require.False(t, rejected.StillProcessing())
}
