package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxHistoryChars caps the rendered history block.
const DefaultMaxHistoryChars = 4000

// PersonaSource supplies the persona block that opens every prompt.
type PersonaSource interface {
	Persona() string
}

// PromptLimits bounds the variable-size prompt sections.
type PromptLimits struct {
	MaxHistoryChars int
	MaxCatalogItems int
	MaxCatalogChars int
}

// PromptInput is everything one prompt is built from.
type PromptInput struct {
	Text            string
	History         []Turn
	ProductRelated  bool
	Draft           DraftOrder
	OrderInProgress bool
}

// PromptBuilder assembles the generation prompt.
//
// Section order:
//
//	persona → catalog policy + excerpt (product-related only) → history or
//	first-contact note → draft order (order in progress only) → command
//	grammar → current customer text
type PromptBuilder struct {
	persona PersonaSource
	catalog *CatalogExcerpt
	limits  PromptLimits
	logger  *zap.Logger
}

// NewPromptBuilder 创建 prompt 构建器
func NewPromptBuilder(persona PersonaSource, catalog *CatalogExcerpt, limits PromptLimits, logger *zap.Logger) *PromptBuilder {
	if limits.MaxHistoryChars <= 0 {
		limits.MaxHistoryChars = DefaultMaxHistoryChars
	}
	if limits.MaxCatalogItems <= 0 {
		limits.MaxCatalogItems = DefaultMaxCatalogItems
	}
	if limits.MaxCatalogChars <= 0 {
		limits.MaxCatalogChars = DefaultMaxCatalogChars
	}
	return &PromptBuilder{
		persona: persona,
		catalog: catalog,
		limits:  limits,
		logger:  logger.With(zap.String("component", "prompt_builder")),
	}
}

const catalogPolicy = `## Catalog
Use only the products listed below. Quote their prices exactly as written.
If the customer asks for something that is not listed, say it is not available right now.
Never invent products, prices, sizes or colors.`

const commandGrammar = `## Commands
When the customer wants to add a product to the cart, append on its own line:
[ADD_TO_CART: <product name>]
When the customer confirms an order and every required field is known, append on its own line:
[CREATE_ORDER: <product> - <quantity> - <customer name> - <phone> - <address> - <size> - <color>]
Use " - " between fields. Emit each command at most once and never explain the commands to the customer.`

// Build renders the prompt. A catalog read failure drops the excerpt but
// keeps the rest of the prompt.
func (b *PromptBuilder) Build(ctx context.Context, in PromptInput) string {
	var sb strings.Builder

	persona := DefaultPersonaText
	if b.persona != nil {
		if p := strings.TrimSpace(b.persona.Persona()); p != "" {
			persona = p
		}
	}
	sb.WriteString(persona)
	sb.WriteString("\n\n")

	if in.ProductRelated && b.catalog != nil {
		excerpt, err := b.catalog.Render(ctx, in.Text, b.limits.MaxCatalogItems, b.limits.MaxCatalogChars)
		if err != nil {
			b.logger.Warn("Catalog excerpt unavailable", zap.Error(err))
		}
		sb.WriteString(catalogPolicy)
		sb.WriteString("\n")
		if excerpt == "" {
			sb.WriteString("(no products available)")
		} else {
			sb.WriteString(excerpt)
		}
		sb.WriteString("\n\n")
	}

	if FirstContact(in.History) {
		sb.WriteString("## Conversation\nThis is the customer's first message. Greet them briefly.\n\n")
	} else {
		sb.WriteString("## Conversation so far\n")
		sb.WriteString(trimHistory(in.History, b.limits.MaxHistoryChars))
		sb.WriteString("\n\n")
	}

	if in.OrderInProgress && !in.Draft.Empty() {
		sb.WriteString(draftSection(in.Draft))
		sb.WriteString("\n\n")
	}

	sb.WriteString(commandGrammar)
	sb.WriteString("\n\n")

	sb.WriteString("customer: ")
	sb.WriteString(strings.TrimSpace(in.Text))
	sb.WriteString("\nassistant:")
	return sb.String()
}

// DefaultPersonaText is used when the persona source returns nothing.
const DefaultPersonaText = "You are the sales assistant of an online shop. Reply briefly in the customer's language."

// trimHistory keeps the newest lines that fit in maxChars.
func trimHistory(history []Turn, maxChars int) string {
	lines := make([]string, 0, len(history))
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		line := history[i].Line()
		n := len([]rune(line)) + 1
		if total+n > maxChars && len(lines) > 0 {
			break
		}
		total += n
		lines = append(lines, line)
	}
	// restore chronological order
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

func draftSection(d DraftOrder) string {
	var sb strings.Builder
	sb.WriteString("## Order in progress\nAlready known (never ask for these again):\n")
	for _, line := range d.Known() {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if missing := d.Missing(); len(missing) > 0 {
		fmt.Fprintf(&sb, "Still missing: %s. Ask only for these.\n", strings.Join(missing, ", "))
		sb.WriteString("Do not emit CREATE_ORDER until every field is known.")
	} else {
		sb.WriteString("Every field is known. Once the customer confirms, emit CREATE_ORDER with these values.")
	}
	return sb.String()
}
