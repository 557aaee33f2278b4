package persistence

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
)

// catalogFile 商品种子文件格式
type catalogFile struct {
	Products []catalogProduct `yaml:"products"`
}

type catalogProduct struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Category        string   `yaml:"category"`
	Price           float64  `yaml:"price"`
	SalePrice       *float64 `yaml:"sale_price"`
	DiscountPercent float64  `yaml:"discount_percent"`
	Stock           int      `yaml:"stock"`
	Featured        bool     `yaml:"featured"`
	Sizes           []string `yaml:"sizes"`
	Colors          []string `yaml:"colors"`
}

// ParseCatalog 解析 YAML 商品列表
func ParseCatalog(data []byte) ([]*entity.Product, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Products))
	products := make([]*entity.Product, 0, len(file.Products))
	for i, p := range file.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry %d: name is required", i+1)
		}
		if p.Price < 0 || p.Stock < 0 {
			return nil, fmt.Errorf("catalog entry %q: price and stock must not be negative", name)
		}
		if p.DiscountPercent < 0 || p.DiscountPercent >= 100 {
			return nil, fmt.Errorf("catalog entry %q: discount_percent must be in [0, 100)", name)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("catalog entry %q: duplicate name", name)
		}
		seen[key] = true

		products = append(products, &entity.Product{
			Name:            name,
			Description:     strings.TrimSpace(p.Description),
			Category:        strings.TrimSpace(p.Category),
			Price:           p.Price,
			SalePrice:       p.SalePrice,
			DiscountPercent: p.DiscountPercent,
			Stock:           p.Stock,
			Featured:        p.Featured,
			Sizes:           p.Sizes,
			Colors:          p.Colors,
		})
	}
	return products, nil
}

// LoadCatalogFile reads and parses a catalog seed file.
func LoadCatalogFile(path string) ([]*entity.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// SeedCatalog upserts every product by name and returns how many were written.
func SeedCatalog(ctx context.Context, repo repository.ProductRepository, products []*entity.Product) (int, error) {
	for i, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("seed %q: %w", p.Name, err)
		}
	}
	return len(products), nil
}
