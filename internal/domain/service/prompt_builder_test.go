package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/internal/domain/entity"
	"github.com/chatcommerce/gateway/internal/domain/valueobject"
	"github.com/chatcommerce/gateway/internal/infrastructure/persistence"
)

type staticPersona string

func (p staticPersona) Persona() string { return string(p) }

func newTestCatalog(t *testing.T, products ...*entity.Product) *persistence.MemoryCatalog {
	t.Helper()
	catalog := persistence.NewMemoryCatalog()
	for _, p := range products {
		require.NoError(t, catalog.Products().Upsert(context.Background(), p))
	}
	return catalog
}

func sneaker() *entity.Product {
	return &entity.Product{
		Name:            "Product X",
		Description:     "White leather sneaker",
		Category:        "shoes",
		Price:           350,
		DiscountPercent: 30,
		Stock:           10,
		Featured:        true,
		Sizes:           []string{"40", "41"},
		Colors:          []string{"red", "black"},
	}
}

func newTestBuilder(t *testing.T, products ...*entity.Product) *PromptBuilder {
	catalog := newTestCatalog(t, products...)
	excerpt := NewCatalogExcerpt(catalog.Products(), "EGP", 0, nil)
	return NewPromptBuilder(staticPersona("PERSONA BLOCK"), excerpt, PromptLimits{}, zap.NewNop())
}

func TestPromptBuilder_FirstContactWithoutCatalog(t *testing.T) {
	b := newTestBuilder(t, sneaker())

	prompt := b.Build(context.Background(), PromptInput{Text: "hello, how are you"})

	require.True(t, strings.HasPrefix(prompt, "PERSONA BLOCK"))
	require.Contains(t, prompt, "first message")
	require.NotContains(t, prompt, "## Catalog")
	require.NotContains(t, prompt, "Product X")
	require.True(t, strings.HasSuffix(prompt, "customer: hello, how are you\nassistant:"))
}

func TestPromptBuilder_ProductRelatedSingleMatch(t *testing.T) {
	other := &entity.Product{Name: "Leather Bag", Price: 500, Stock: 3}
	b := newTestBuilder(t, sneaker(), other)

	prompt := b.Build(context.Background(), PromptInput{Text: "how much is product x?", ProductRelated: true})

	require.Contains(t, prompt, "## Catalog")
	require.Contains(t, prompt, "Product: Product X")
	require.Contains(t, prompt, "245 EGP")
	require.Contains(t, prompt, "Sizes: 40, 41")
	require.NotContains(t, prompt, "Leather Bag")
}

func TestPromptBuilder_NoMatchFallsBackToFeatured(t *testing.T) {
	other := &entity.Product{Name: "Leather Bag", Price: 500, Stock: 3}
	b := newTestBuilder(t, sneaker(), other)

	prompt := b.Build(context.Background(), PromptInput{Text: "بكام", ProductRelated: true})

	require.Contains(t, prompt, "- Product X:")
	require.Contains(t, prompt, "- Leather Bag:")
	// featured products come first
	require.Less(t, strings.Index(prompt, "Product X"), strings.Index(prompt, "Leather Bag"))
}

func TestPromptBuilder_DraftSection(t *testing.T) {
	b := newTestBuilder(t, sneaker())
	history := []Turn{
		{Role: valueobject.RoleCustomer, Text: "I want to order Product X"},
		{Role: valueobject.RoleAssistant, Text: "Great, your name and phone?"},
	}
	draft := DraftOrder{Product: "Product X", Name: "Jane", Phone: "01000000000"}

	prompt := b.Build(context.Background(), PromptInput{
		Text:            "Cairo",
		History:         history,
		ProductRelated:  true,
		Draft:           draft,
		OrderInProgress: true,
	})

	require.Contains(t, prompt, "never ask for these again")
	require.Contains(t, prompt, "- name: Jane")
	require.Contains(t, prompt, "Still missing: address, size, color")
	require.Contains(t, prompt, "customer: I want to order Product X")

	// section order
	iPersona := strings.Index(prompt, "PERSONA BLOCK")
	iCatalog := strings.Index(prompt, "## Catalog")
	iHistory := strings.Index(prompt, "## Conversation so far")
	iDraft := strings.Index(prompt, "## Order in progress")
	iCommands := strings.Index(prompt, "## Commands")
	iCurrent := strings.LastIndex(prompt, "customer: Cairo")
	require.True(t, iPersona < iCatalog && iCatalog < iHistory && iHistory < iDraft && iDraft < iCommands && iCommands < iCurrent)
}

func TestPromptBuilder_EmptyPersonaUsesDefault(t *testing.T) {
	b := NewPromptBuilder(staticPersona("  "), nil, PromptLimits{}, zap.NewNop())
	prompt := b.Build(context.Background(), PromptInput{Text: "hi"})
	require.True(t, strings.HasPrefix(prompt, DefaultPersonaText))
}

func TestTrimHistory_DropsOldestFirst(t *testing.T) {
	history := []Turn{
		{Role: valueobject.RoleCustomer, Text: strings.Repeat("a", 50)},
		{Role: valueobject.RoleAssistant, Text: "second"},
		{Role: valueobject.RoleCustomer, Text: "third"},
	}

	out := trimHistory(history, 40)
	require.Equal(t, "assistant: second\ncustomer: third", out)

	// a single oversized newest line is still kept
	out = trimHistory(history[:1], 10)
	require.Equal(t, history[0].Line(), out)
}
