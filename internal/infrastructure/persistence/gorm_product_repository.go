package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatcommerce/gateway/pkg/errors"
)

// GormProductRepository GORM 实现的商品仓储
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository 创建 GORM 商品仓储
func NewGormProductRepository(db *gorm.DB) repository.ProductRepository {
	return &GormProductRepository{db: db}
}

// FindByName 名称匹配, 描述兜底
func (r *GormProductRepository) FindByName(ctx context.Context, name string) (*entity.Product, error) {
	term := strings.ToLower(strings.TrimSpace(name))
	if term == "" {
		return nil, domainErrors.NewProductNotFoundError(name)
	}

	attempts := []struct {
		where string
		arg   string
	}{
		{"LOWER(name) = ?", term},
		{"LOWER(name) LIKE ? ESCAPE '\\'", containsPattern(term)},
		{"LOWER(description) LIKE ? ESCAPE '\\'", containsPattern(term)},
	}
	for _, a := range attempts {
		var model models.ProductModel
		err := r.db.WithContext(ctx).
			Where(a.where, a.arg).
			Order("featured desc").
			Order("name asc").
			First(&model).Error
		if err == nil {
			return toProductEntity(&model), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewInternalErrorWithCause("failed to find product", err)
		}
	}
	return nil, domainErrors.NewProductNotFoundError(name)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching term literally anywhere.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// Search 关键词检索
func (r *GormProductRepository) Search(ctx context.Context, keywords []string, limit int) ([]*entity.Product, error) {
	var clauses []string
	var args []interface{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		pattern := containsPattern(kw)
		clauses = append(clauses, "LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\' OR LOWER(category) LIKE ? ESCAPE '\\'")
		args = append(args, pattern, pattern, pattern)
	}
	if len(clauses) == 0 {
		return []*entity.Product{}, nil
	}

	var rows []models.ProductModel
	q := r.db.WithContext(ctx).
		Where(strings.Join(clauses, " OR "), args...).
		Order("featured desc").
		Order("name asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to search products", err)
	}
	return toProductEntities(rows), nil
}

// Featured 默认商品列表
func (r *GormProductRepository) Featured(ctx context.Context, limit int) ([]*entity.Product, error) {
	var rows []models.ProductModel
	q := r.db.WithContext(ctx).
		Order("featured desc").
		Order("(stock > 0) desc").
		Order("name asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list featured products", err)
	}
	return toProductEntities(rows), nil
}

// ListNames 返回全部商品名
func (r *GormProductRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Order("name asc").
		Pluck("name", &names).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list product names", err)
	}
	return names, nil
}

// Upsert 按名称写入商品
func (r *GormProductRepository) Upsert(ctx context.Context, product *entity.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	model := toProductModel(product)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"description", "category", "price", "sale_price", "discount_percent",
				"stock", "featured", "sizes", "colors", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to upsert product", err)
	}
	return nil
}

func toProductModel(p *entity.Product) *models.ProductModel {
	return &models.ProductModel{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		Price:           p.Price,
		SalePrice:       p.SalePrice,
		DiscountPercent: p.DiscountPercent,
		Stock:           p.Stock,
		Featured:        p.Featured,
		Sizes:           joinList(p.Sizes),
		Colors:          joinList(p.Colors),
	}
}

func toProductEntity(m *models.ProductModel) *entity.Product {
	return &entity.Product{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Category:        m.Category,
		Price:           m.Price,
		SalePrice:       m.SalePrice,
		DiscountPercent: m.DiscountPercent,
		Stock:           m.Stock,
		Featured:        m.Featured,
		Sizes:           splitList(m.Sizes),
		Colors:          splitList(m.Colors),
	}
}

func toProductEntities(rows []models.ProductModel) []*entity.Product {
	out := make([]*entity.Product, 0, len(rows))
	for i := range rows {
		out = append(out, toProductEntity(&rows[i]))
	}
	return out
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
