package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/repository"
	"github.com/chatcommerce/gateway/pkg/errors"
)

// MemoryConversationRepository 内存会话仓储
type MemoryConversationRepository struct {
	mu       sync.Mutex
	byID     map[string]*entity.Conversation
	bySender map[string]string // channel \x00 sender → id
}

// NewMemoryConversationRepository 创建内存会话仓储
func NewMemoryConversationRepository() repository.ConversationRepository {
	return &MemoryConversationRepository{
		byID:     make(map[string]*entity.Conversation),
		bySender: make(map[string]string),
	}
}

func (r *MemoryConversationRepository) FindOrCreate(ctx context.Context, channelID, senderID string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := channelID + "\x00" + senderID
	if id, ok := r.bySender[key]; ok {
		return snapshotConversation(r.byID[id]), nil
	}
	conv, err := entity.NewConversation(uuid.NewString(), channelID, senderID)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	r.byID[conv.ID()] = conv
	r.bySender[key] = conv.ID()
	return snapshotConversation(conv), nil
}

func (r *MemoryConversationRepository) FindByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("conversation not found")
	}
	return snapshotConversation(conv), nil
}

func (r *MemoryConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.byID[id]; ok {
		conv.Touch(at)
	}
	return nil
}

// snapshotConversation copies conv so callers never share the stored value
// that Touch updates. Must be called with the repository lock held.
func snapshotConversation(conv *entity.Conversation) *entity.Conversation {
	return entity.ReconstructConversation(conv.ID(), conv.ChannelID(), conv.SenderID(), conv.CreatedAt(), conv.LastActivityAt())
}

// MemoryCatalog 内存商品与订单仓储; one lock makes PlaceOrder atomic.
type MemoryCatalog struct {
	mu       sync.Mutex
	products map[string]*entity.Product
	orders   map[string]*entity.Order
	items    map[string][]*entity.OrderItem
}

// NewMemoryCatalog 创建内存目录
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[string]*entity.Product),
		orders:   make(map[string]*entity.Order),
		items:    make(map[string][]*entity.OrderItem),
	}
}

// Products 商品仓储视图
func (c *MemoryCatalog) Products() repository.ProductRepository { return (*memoryProducts)(c) }

// Orders 订单仓储视图
func (c *MemoryCatalog) Orders() repository.OrderRepository { return (*memoryOrders)(c) }

// Stock 返回商品当前库存 (测试辅助)
func (c *MemoryCatalog) Stock(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[productID]; ok {
		return p.Stock
	}
	return 0
}

// OrderCount 返回订单数 (测试辅助)
func (c *MemoryCatalog) OrderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}

type memoryProducts MemoryCatalog

func (p *memoryProducts) sorted() []*entity.Product {
	out := make([]*entity.Product, 0, len(p.products))
	for _, prod := range p.products {
		cp := *prod
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Featured != out[j].Featured {
			return out[i].Featured
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (p *memoryProducts) FindByName(ctx context.Context, name string) (*entity.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(name))
	if term == "" {
		return nil, errors.NewProductNotFoundError(name)
	}
	all := p.sorted()
	for _, prod := range all {
		if strings.ToLower(prod.Name) == term {
			return prod, nil
		}
	}
	for _, prod := range all {
		if strings.Contains(strings.ToLower(prod.Name), term) {
			return prod, nil
		}
	}
	for _, prod := range all {
		if strings.Contains(strings.ToLower(prod.Description), term) {
			return prod, nil
		}
	}
	return nil, errors.NewProductNotFoundError(name)
}

func (p *memoryProducts) Search(ctx context.Context, keywords []string, limit int) ([]*entity.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*entity.Product, 0)
	for _, prod := range p.sorted() {
		for _, kw := range keywords {
			if prod.Matches(kw) || (kw != "" && strings.Contains(strings.ToLower(prod.Category), strings.ToLower(kw))) {
				out = append(out, prod)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (p *memoryProducts) Featured(ctx context.Context, limit int) ([]*entity.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := p.sorted()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (p *memoryProducts) ListNames(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.products))
	for _, prod := range p.products {
		names = append(names, prod.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *memoryProducts) Upsert(ctx context.Context, product *entity.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, existing := range p.products {
		if existing.Name == product.Name {
			product.ID = id
		}
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	cp := *product
	p.products[cp.ID] = &cp
	return nil
}

type memoryOrders MemoryCatalog

func (o *memoryOrders) PlaceOrder(ctx context.Context, order *entity.Order, item *entity.OrderItem) error {
	if order == nil || item == nil {
		return errors.NewOrderPersistenceError(entity.ErrEmptyOrderItem)
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	prod, ok := o.products[item.ProductID]
	if !ok || prod.Stock < item.Quantity {
		return errors.NewOutOfStockError(item.ProductName, item.Quantity)
	}
	prod.Stock -= item.Quantity
	o.orders[order.ID] = order
	o.items[order.ID] = []*entity.OrderItem{item}
	return nil
}

func (o *memoryOrders) FindByNumber(ctx context.Context, number string) (*entity.Order, []*entity.OrderItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, order := range o.orders {
		if order.Number == number {
			return order, o.items[id], nil
		}
	}
	return nil, nil, errors.NewNotFoundError("order not found")
}

func (o *memoryOrders) Delete(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.orders[id]; !ok {
		return errors.NewNotFoundError("order not found")
	}
	delete(o.orders, id)
	delete(o.items, id)
	return nil
}

// MemoryChannelRepository 内存渠道仓储
type MemoryChannelRepository struct {
	mu       sync.RWMutex
	channels map[string]*entity.Channel
}

// NewMemoryChannelRepository 创建内存渠道仓储
func NewMemoryChannelRepository() *MemoryChannelRepository {
	return &MemoryChannelRepository{channels: make(map[string]*entity.Channel)}
}

func (r *MemoryChannelRepository) FindByID(ctx context.Context, id string) (*entity.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	if !ok {
		return nil, errors.NewNotFoundError("channel not found")
	}
	cp := *ch
	return &cp, nil
}

func (r *MemoryChannelRepository) Save(ctx context.Context, ch *entity.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ch
	r.channels[ch.ID] = &cp
	return nil
}
