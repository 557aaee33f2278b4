package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/pkg/errors"
	"github.com/chatcommerce/gateway/pkg/safego"
)

// CommandResult records what happened to one command token.
type CommandResult struct {
	Kind    CommandKind
	Body    string
	Receipt *OrderReceipt
	Err     error
	// Skipped is set for a repeated CREATE_ORDER within the same reply.
	Skipped bool
}

// PostProcessor cleans generated text and executes embedded commands.
type PostProcessor struct {
	orders OrderCreator
	logger *zap.Logger
}

// NewPostProcessor 创建回复后处理器
func NewPostProcessor(orders OrderCreator, logger *zap.Logger) *PostProcessor {
	return &PostProcessor{
		orders: orders,
		logger: logger.With(zap.String("component", "postprocess")),
	}
}

var (
	rolePrefixRe = regexp.MustCompile(`(?im)^[ \t]*(?:assistant|bot|ai|المساعد)[ \t]*:[ \t]*`)
	noteRe       = regexp.MustCompile(`(?i)\([ \t]*(?:note|ملاحظة)[ \t]*:[^)\n]*\)?`)
	bracketRe    = regexp.MustCompile(`\[[^\[\]\n]*\]`)
	trailingWsRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// Process replaces every command token with customer-facing text and strips
// generation artifacts. The returned text never contains a raw command token.
// Notices follow the script of the generated text.
func (p *PostProcessor) Process(ctx context.Context, generated, conversationID string) (string, []CommandResult) {
	return p.ProcessReply(ctx, generated, "", conversationID)
}

// ProcessReply is Process with notices in the language of the customer's
// message. A message without letters (a size, an image) defers to the
// generated text.
func (p *PostProcessor) ProcessReply(ctx context.Context, generated, customerText, conversationID string) (string, []CommandResult) {
	generated = strings.ReplaceAll(generated, "\x00", "")
	lang := notice(replyInArabic(customerText, generated))
	tokens := FindCommandTokens(generated)
	results := make([]CommandResult, 0, len(tokens))
	placed := make(map[string]bool)

	// 替换文本先以占位符写入, 清理完成后再填回
	var replacements []string
	var sb strings.Builder
	last := 0
	for _, tok := range tokens {
		sb.WriteString(generated[last:tok.Start])
		last = tok.End

		res := CommandResult{Kind: tok.Kind, Body: tok.Body}
		text := ""
		switch tok.Kind {
		case CommandAddToCart:
			if tok.Body != "" {
				text = lang.addedToCart(tok.Body)
			}
		case CommandCreateOrder:
			key := strings.ToLower(strings.Join(strings.Fields(tok.Body), " "))
			if placed[key] {
				res.Skipped = true
				break
			}
			placed[key] = true
			res.Receipt, res.Err = p.createOrder(ctx, tok.Body, conversationID)
			if res.Err != nil {
				text = lang.orderFailed(res.Err)
			} else {
				text = lang.orderPlaced(*res.Receipt)
			}
		}
		if text != "" {
			sb.WriteString(placeholder(len(replacements)))
			replacements = append(replacements, text)
		}
		results = append(results, res)
	}
	sb.WriteString(generated[last:])

	cleaned := CleanArtifacts(dropResidualCommands(sb.String()))
	return restoreReplacements(cleaned, replacements), results
}

func placeholder(i int) string {
	return fmt.Sprintf("\x00%d\x00", i)
}

// restoreReplacements fills placeholders back in. A placeholder removed
// together with an enclosing bracket or note is appended on its own line,
// so a placed order is always confirmed.
func restoreReplacements(text string, replacements []string) string {
	var lost []string
	for i, r := range replacements {
		r = dropResidualCommands(r)
		ph := placeholder(i)
		if strings.Contains(text, ph) {
			text = strings.Replace(text, ph, r, 1)
		} else {
			lost = append(lost, r)
		}
	}
	if len(lost) > 0 {
		text = strings.TrimSpace(text + "\n" + strings.Join(lost, "\n"))
	}
	return text
}

// dropResidualCommands removes tokens that only appear once a replacement
// has been spliced in, e.g. a command nested inside another command's body.
func dropResidualCommands(text string) string {
	for commandRe.MatchString(text) {
		text = commandRe.ReplaceAllString(text, "")
	}
	return text
}

// createOrder parses and executes one CREATE_ORDER body. A panic anywhere
// below becomes an error.
func (p *PostProcessor) createOrder(ctx context.Context, body, conversationID string) (*OrderReceipt, error) {
	var receipt OrderReceipt
	err := safego.Run(p.logger, "create-order", func() error {
		cmd, err := ParseOrderFields(body)
		if err != nil {
			return err
		}
		if p.orders == nil {
			return errors.New(errors.CodeServiceUnavail, "ordering is not available")
		}
		receipt, err = p.orders.CreateOrder(ctx, cmd, conversationID)
		return err
	})
	if err != nil {
		p.logger.Info("Order command failed",
			zap.String("conversation_id", conversationID),
			zap.String("code", string(errors.CodeOf(err))),
			zap.Error(err),
		)
		return nil, err
	}
	return &receipt, nil
}

// CleanArtifacts strips role prefixes, (Note: ...) asides and bracketed
// placeholders, then collapses blank-line runs. Markdown links survive.
func CleanArtifacts(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = rolePrefixRe.ReplaceAllString(text, "")
	text = noteRe.ReplaceAllString(text, "")
	text = stripPlaceholders(text)
	text = trailingWsRe.ReplaceAllString(text, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripPlaceholders(text string) string {
	locs := bracketRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		// [label](url)
		if loc[1] < len(text) && text[loc[1]] == '(' {
			continue
		}
		sb.WriteString(text[last:loc[0]])
		last = loc[1]
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func replyInArabic(customerText, generated string) bool {
	for _, r := range customerText {
		if unicode.IsLetter(r) {
			return containsArabic(customerText)
		}
	}
	return containsArabic(generated)
}

func containsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

// notices holds the customer-facing replacement texts for one language.
type notices struct {
	added        string
	placed       string
	ask          string
	notFound     string
	outOfStock   string
	apology      string
	fieldLabels  map[string]string
	listJoin     string
	listLastJoin string
}

var (
	englishNotices = notices{
		added:      "✅ %s has been added to your cart.",
		placed:     "✅ Your order %s has been placed. Total: %s. We will contact you to confirm delivery.",
		ask:        "To complete your order, please send your %s.",
		notFound:   "Sorry, we couldn't find that product in our catalog. Could you tell me which one you mean?",
		outOfStock: "Sorry, we don't have enough stock for that item right now.",
		apology:    "Sorry, something went wrong while placing your order. Please try again in a moment.",
		fieldLabels: map[string]string{
			FieldName: "full name", FieldPhone: "phone number", FieldAddress: "delivery address",
			FieldSize: "size", FieldColor: "color", FieldProduct: "product",
		},
		listJoin:     ", ",
		listLastJoin: " and ",
	}
	arabicNotices = notices{
		added:      "✅ تمت إضافة %s إلى السلة.",
		placed:     "✅ تم تسجيل طلبك رقم %s. الإجمالي: %s. هنتواصل معاك لتأكيد التوصيل.",
		ask:        "علشان نكمل الطلب، ابعتلنا %s.",
		notFound:   "للأسف مش لاقيين المنتج ده في الكتالوج. ممكن توضح تقصد أنهي منتج؟",
		outOfStock: "للأسف الكمية المطلوبة مش متوفرة حاليًا.",
		apology:    "عذرًا، حصلت مشكلة أثناء تسجيل الطلب. حاول تاني بعد شوية.",
		fieldLabels: map[string]string{
			FieldName: "الاسم بالكامل", FieldPhone: "رقم الموبايل", FieldAddress: "العنوان",
			FieldSize: "المقاس", FieldColor: "اللون", FieldProduct: "المنتج",
		},
		listJoin:     "، ",
		listLastJoin: " و",
	}
)

func notice(arabic bool) notices {
	if arabic {
		return arabicNotices
	}
	return englishNotices
}

func (n notices) addedToCart(product string) string {
	return fmt.Sprintf(n.added, product)
}

func (n notices) orderPlaced(r OrderReceipt) string {
	return fmt.Sprintf(n.placed, r.Number, r.Total.Format(r.Currency))
}

func (n notices) orderFailed(err error) string {
	switch errors.CodeOf(err) {
	case errors.CodeMissingCustomerInfo:
		fields := errors.MissingFields(err)
		if len(fields) == 0 {
			return n.apology
		}
		return fmt.Sprintf(n.ask, n.joinFields(fields))
	case errors.CodeProductNotFound:
		return n.notFound
	case errors.CodeOutOfStock:
		return n.outOfStock
	default:
		return n.apology
	}
}

func (n notices) joinFields(fields []string) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		if l, ok := n.fieldLabels[f]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, f)
		}
	}
	if len(labels) == 1 {
		return labels[0]
	}
	return strings.Join(labels[:len(labels)-1], n.listJoin) + n.listLastJoin + labels[len(labels)-1]
}
