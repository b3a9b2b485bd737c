// Package rates предоставляет клиент внешних источников курса доллара:
// ежедневного рыночного и ежемесячного таможенного.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const fetchTimeout = 10 * time.Second

// Client инкапсулирует HTTP-взаимодействие с источниками курсов.
// Любой сетевой сбой или неожиданный формат ответа не приводит к ошибке:
// клиент пишет предупреждение в лог и сообщает, что курс неизвестен.
type Client struct {
	primaryURL  string
	fallbackURL string
	customsURL  string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient создаёт клиент источников курса с указанными адресами.
func NewClient(primaryURL, fallbackURL, customsURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		customsURL:  customsURL,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		logger: logger,
	}
}

// primaryResponse описывает ответ основного источника рыночного курса.
type primaryResponse struct {
	Serie []struct {
		Valor float64 `json:"valor"`
		Fecha string  `json:"fecha"`
	} `json:"serie"`
}

// fallbackResponse описывает ответ резервного источника: значение курса
// закодировано строкой с запятой в роли десятичного разделителя.
type fallbackResponse struct {
	Valor string `json:"Valor"`
	Fecha string `json:"Fecha"`
}

// MarketRate возвращает текущий рыночный курс USD→CLP и дату котировки.
// Сначала опрашивается основной источник, при любом сбое — резервный.
// Если недоступны оба, ok равен false; вызывающий код обязан трактовать
// это как «курс неизвестен», а не как фатальную ошибку.
func (c *Client) MarketRate(ctx context.Context) (rate float64, asOf string, ok bool) {
	rate, asOf, err := c.marketRatePrimary(ctx)
	if err == nil {
		return rate, asOf, true
	}
	c.logger.Warn("primary market rate source failed", zap.Error(err))

	rate, asOf, err = c.marketRateFallback(ctx)
	if err == nil {
		return rate, asOf, true
	}
	c.logger.Warn("fallback market rate source failed", zap.Error(err))

	return 0, "", false
}

func (c *Client) marketRatePrimary(ctx context.Context) (float64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.primaryURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result primaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Serie) == 0 {
		return 0, "", fmt.Errorf("empty serie in response")
	}

	return result.Serie[0].Valor, result.Serie[0].Fecha, nil
}

func (c *Client) marketRateFallback(ctx context.Context) (float64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fallbackURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result fallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, "", fmt.Errorf("decode response: %w", err)
	}

	if result.Valor == "" {
		return 0, "", fmt.Errorf("missing Valor in response")
	}

	rate, err := ParseCommaDecimal(result.Valor)
	if err != nil {
		return 0, "", err
	}

	return rate, result.Fecha, nil
}

// CustomsRate возвращает таможенный курс USD→CLP за текущий месяц,
// извлекая его из опубликованной HTML-таблицы. Резервного источника нет:
// при любом сбое ok равен false.
func (c *Client) CustomsRate(ctx context.Context) (rate float64, ok bool) {
	rate, err := c.customsRate(ctx, time.Now())
	if err != nil {
		c.logger.Warn("customs rate fetch failed", zap.Error(err))
		return 0, false
	}
	return rate, true
}

func (c *Client) customsRate(ctx context.Context, now time.Time) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.customsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	table := findRateTable(doc)
	if table == nil {
		return 0, fmt.Errorf("rate table not found in page")
	}

	month := SpanishMonth(now)
	for _, row := range tableRows(table) {
		cells := rowCells(row)
		if len(cells) < 4 {
			continue
		}
		if !strings.EqualFold(nodeText(cells[1]), month) {
			continue
		}
		return ParseLatinNumber(nodeText(cells[2]))
	}

	return 0, fmt.Errorf("no rate row for month %s", month)
}

// rateTableAttrs — атрибуты, по которым страница источника маркирует
// таблицу с курсами.
var rateTableAttrs = map[string]string{
	"cellpadding": "2",
	"cellspacing": "2",
	"border":      "1",
	"align":       "left",
}

func findRateTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" && matchesRateTable(n) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findRateTable(child); found != nil {
			return found
		}
	}
	return nil
}

func matchesRateTable(n *html.Node) bool {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	for k, v := range rateTableAttrs {
		if attrs[k] != v {
			return false
		}
	}
	return true
}

func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, n)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(table)
	return rows
}

func rowCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for child := row.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == "td" {
			cells = append(cells, child)
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
