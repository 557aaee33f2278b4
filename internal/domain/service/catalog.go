package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// Catalog excerpt defaults.
const (
	DefaultMaxCatalogItems = 8
	DefaultMaxCatalogChars = 2500
)

// searchStopwords are tokens too generic to filter the catalog by.
var searchStopwords = toSet(
	"the", "and", "for", "you", "your", "have", "has", "what", "which", "this", "that", "one",
	"how", "much", "price", "prices", "cost", "buy", "order", "want", "need", "please", "any",
	"available", "stock", "size", "sizes", "color", "colors", "with", "there", "show", "me",
	"عايز", "عايزة", "عندكم", "فيه", "بكام", "كام", "سعر", "ممكن", "لو", "سمحت", "ده", "دي",
)

// CatalogExcerpt renders the slice of the catalog a prompt needs.
type CatalogExcerpt struct {
	products repository.ProductRepository
	currency string
	ttl      time.Duration
	clock    Clock

	group    singleflight.Group
	mu       sync.Mutex
	featured []*entity.Product
	cachedAt time.Time
}

// NewCatalogExcerpt 创建商品摘录器. ttl <= 0 reads the featured list from
// the store on every call; a positive ttl serves it from memory and its
// stock counts may lag the store by up to ttl.
func NewCatalogExcerpt(products repository.ProductRepository, currency string, ttl time.Duration, clock Clock) *CatalogExcerpt {
	if ttl < 0 {
		ttl = 0
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CatalogExcerpt{products: products, currency: currency, ttl: ttl, clock: clock}
}

// Render returns catalog lines scoped to text, capped at maxItems products
// and maxChars characters. A single match renders as a detailed summary.
func (c *CatalogExcerpt) Render(ctx context.Context, text string, maxItems, maxChars int) (string, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxCatalogItems
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxCatalogChars
	}

	var matches []*entity.Product
	if keywords := SearchKeywords(text); len(keywords) > 0 {
		found, err := c.products.Search(ctx, keywords, maxItems)
		if err != nil {
			return "", err
		}
		matches = found
	}

	if len(matches) == 1 {
		return truncateRunes(c.summary(matches[0]), maxChars), nil
	}
	if len(matches) == 0 {
		featured, err := c.Featured(ctx, maxItems)
		if err != nil {
			return "", err
		}
		matches = featured
	}

	var b strings.Builder
	used := 0 // runes
	for i, p := range matches {
		if i >= maxItems {
			break
		}
		line := c.line(p) + "\n"
		n := utf8.RuneCountInString(line)
		if used+n > maxChars {
			break
		}
		b.WriteString(line)
		used += n
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Featured returns the featured-first default list. Concurrent reads share
// one store query; with a positive TTL the result is also kept that long.
func (c *CatalogExcerpt) Featured(ctx context.Context, limit int) ([]*entity.Product, error) {
	c.mu.Lock()
	if c.ttl > 0 && c.featured != nil && c.clock.Now().Sub(c.cachedAt) < c.ttl {
		cached := c.featured
		c.mu.Unlock()
		return headProducts(cached, limit), nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("featured", func() (interface{}, error) {
		list, err := c.products.Featured(ctx, DefaultMaxCatalogItems*2)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.featured = list
		c.cachedAt = c.clock.Now()
		c.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return headProducts(v.([]*entity.Product), limit), nil
}

func (c *CatalogExcerpt) price(p *entity.Product) string {
	unit := p.UnitPrice()
	if p.Discounted() {
		pct := p.DiscountPercent
		if pct <= 0 && p.Price > 0 {
			pct = (1 - unit.Float64()/p.Price) * 100
		}
		return fmt.Sprintf("%s (was %s, %.0f%% off)",
			unit.Format(c.currency), valueobject.NewMoney(p.Price).Format(c.currency), pct)
	}
	return unit.Format(c.currency)
}

func (c *CatalogExcerpt) stock(p *entity.Product) string {
	if !p.InStock() {
		return "out of stock"
	}
	return fmt.Sprintf("in stock (%d)", p.Stock)
}

func (c *CatalogExcerpt) line(p *entity.Product) string {
	return fmt.Sprintf("- %s: %s, %s", p.Name, c.price(p), c.stock(p))
}

func (c *CatalogExcerpt) summary(p *entity.Product) string {
	lines := []string{
		"Product: " + p.Name,
		"Price: " + c.price(p),
		"Availability: " + c.stock(p),
	}
	if p.Description != "" {
		lines = append(lines, "Description: "+p.Description)
	}
	if p.Category != "" {
		lines = append(lines, "Category: "+p.Category)
	}
	if len(p.Sizes) > 0 {
		lines = append(lines, "Sizes: "+strings.Join(p.Sizes, ", "))
	}
	if len(p.Colors) > 0 {
		lines = append(lines, "Colors: "+strings.Join(p.Colors, ", "))
	}
	return strings.Join(lines, "\n")
}

// SearchKeywords extracts catalog search terms from customer text.
func SearchKeywords(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range tokenize(NormalizeDigits(text)) {
		tok = stripArabicArticle(tok)
		if len([]rune(tok)) < 3 || inSet(tok, searchStopwords) || seen[tok] {
			continue
		}
		if _, isNumber := parseSmallInt(tok); isNumber {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		// plural English nouns also match the singular name
		if singular, ok := strings.CutSuffix(tok, "s"); ok && len(singular) >= 3 && !seen[singular] {
			seen[singular] = true
			out = append(out, singular)
		}
	}
	return out
}

func headProducts(list []*entity.Product, limit int) []*entity.Product {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func parseSmallInt(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, s != ""
}
