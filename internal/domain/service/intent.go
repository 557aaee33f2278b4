package service

import (
	"regexp"
	"strings"
	"unicode"
)

// recentTurnsForIntent bounds how far back an open order is looked for.
const recentTurnsForIntent = 6

var (
	productKeywords = toSet(
		// purchase verbs
		"buy", "purchase", "order", "orders", "checkout", "cart",
		// price / stock
		"price", "prices", "cost", "costs", "discount", "sale", "offer", "offers",
		"stock", "available", "availability", "shipping", "delivery",
		"size", "sizes", "color", "colors", "colour", "colours",
		// categories
		"product", "products", "catalog", "catalogue", "shoe", "shoes", "sneaker", "sneakers",
		"boot", "boots", "sandal", "sandals", "bag", "bags", "shirt", "shirts", "dress", "dresses",
		// Arabic
		"سعر", "اسعار", "أسعار", "بكام", "بكم", "كام", "تمن", "ثمن",
		"اشتري", "أشتري", "شراء", "اطلب", "أطلب", "طلب", "اوردر", "أوردر",
		"متوفر", "متوفرة", "متاح", "خصم", "عرض", "عروض", "شحن", "توصيل",
		"مقاس", "مقاسات", "لون", "الوان", "ألوان",
		"جزمة", "كوتشي", "كوتشيات", "شنطة", "قميص", "فستان", "منتج", "منتجات",
		"عايز", "عايزة", "ده", "دي",
	)
	productPhrases = [][]string{
		{"how", "much"},
		{"this", "one"},
		{"that", "one"},
		{"in", "stock"},
	}
	orderSignals = toSet(
		"order", "color", "colour", "size", "buy", "address", "phone",
		"طلب", "اطلب", "أطلب", "اوردر", "لون", "مقاس", "عنوان", "رقم", "عايز",
	)
	confirmations = toSet(
		"yes", "yeah", "yep", "no", "nope", "ok", "okay", "sure", "confirm", "confirmed", "done",
		"تمام", "ايوه", "أيوه", "ايوة", "اه", "آه", "لا", "نعم", "اوكي", "ماشي", "اكيد", "أكيد",
	)
	bareNumber = regexp.MustCompile(`^[0-9٠-٩]{1,3}$`)
)

// IntentClassifier decides whether catalog data is worth including.
type IntentClassifier struct{}

// NewIntentClassifier 创建意图分类器
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{}
}

// IsProductRelated reports whether text asks about products, or answers an
// open product question from recent history.
func (c *IntentClassifier) IsProductRelated(text string, history []Turn) bool {
	tokens := tokenize(text)
	if matchesAny(tokens, productKeywords) || containsPhrase(tokens, productPhrases) {
		return true
	}
	if !OrderInProgress(history) {
		return false
	}
	trimmed := strings.TrimSpace(strings.TrimRight(text, ".!?؟ "))
	if bareNumber.MatchString(trimmed) {
		return true
	}
	return len(tokens) > 0 && len(tokens) <= 3 && allIn(tokens, confirmations)
}

// OrderInProgress reports whether recent turns carry an order signal.
func OrderInProgress(history []Turn) bool {
	start := len(history) - recentTurnsForIntent
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		if matchesAny(tokenize(turn.Text), orderSignals) {
			return true
		}
	}
	return false
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// inSet matches the token as written or without an Arabic article.
func inSet(token string, set map[string]struct{}) bool {
	if _, ok := set[token]; ok {
		return true
	}
	_, ok := set[stripArabicArticle(token)]
	return ok
}

// stripArabicArticle removes a leading definite article ("ال", "بال", "وال").
func stripArabicArticle(token string) string {
	for _, prefix := range []string{"بال", "وال", "فال", "ال"} {
		if rest, ok := strings.CutPrefix(token, prefix); ok && len([]rune(rest)) >= 2 {
			return rest
		}
	}
	return token
}

func matchesAny(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if inSet(t, set) {
			return true
		}
	}
	return false
}

func allIn(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if !inSet(t, set) {
			return false
		}
	}
	return true
}

func containsPhrase(tokens []string, phrases [][]string) bool {
	for _, phrase := range phrases {
		for i := 0; i+len(phrase) <= len(tokens); i++ {
			match := true
			for j, w := range phrase {
				if tokens[i+j] != w {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
