package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

// DraftOrder is the order state reconstructed from conversation turns.
type DraftOrder struct {
	Product  string
	Name     string
	Phone    string
	Address  string
	Size     string
	Color    string
	Quantity int
}

// Required draft fields, in the order they are asked for.
const (
	FieldProduct = "product"
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldAddress = "address"
	FieldSize    = "size"
	FieldColor   = "color"
)

var (
	egyptPhoneRe   = regexp.MustCompile(`(?:\+?20)?0?1[0125][0-9]{8}`)
	genericPhoneRe = regexp.MustCompile(`\+?[0-9][0-9 \-]{7,14}[0-9]`)
	nameRe         = regexp.MustCompile(`(?i)(?:my name is|name\s*:|اسمي|الاسم\s*:?)\s*([^\n,.;:0-9]{2,40})`)
	addressRe      = regexp.MustCompile(`(?i)(?:address\s*(?:is|:)?|عنواني|العنوان\s*:?)\s*([^\n]{3,160})`)
	sizeRe         = regexp.MustCompile(`(?i)(?:\bsize\b|مقاس)\s*:?\s*([0-9]{1,3}|xxl|xl|xs|s|m|l)\b`)
	bareSizeRe     = regexp.MustCompile(`^(?:[2-5][0-9]|xxl|xl|xs|s|m|l)$`)
	quantityRe     = regexp.MustCompile(`(?i)(?:\b([0-9]{1,2})\s*(?:pieces|pcs|pairs|items|قطع|قطعة|جوز)|(?:quantity|qty|الكمية)\s*:?\s*([0-9]{1,2}))`)
)

var colorWords = map[string]string{
	"red": "red", "black": "black", "white": "white", "blue": "blue", "green": "green",
	"yellow": "yellow", "brown": "brown", "grey": "grey", "gray": "grey", "pink": "pink",
	"beige": "beige", "navy": "navy", "orange": "orange", "purple": "purple",
	"احمر": "red", "أحمر": "red", "اسود": "black", "أسود": "black", "ابيض": "white", "أبيض": "white",
	"ازرق": "blue", "أزرق": "blue", "اخضر": "green", "أخضر": "green", "اصفر": "yellow", "أصفر": "yellow",
	"بني": "brown", "رمادي": "grey", "بيج": "beige", "وردي": "pink", "كحلي": "navy",
}

var arabicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// NormalizeDigits converts Arabic-Indic digits to ASCII.
func NormalizeDigits(s string) string {
	return arabicDigits.Replace(s)
}

// ReconstructDraft scans history (oldest first) and the current text for
// order fields. Later mentions override earlier ones. productNames is the
// catalog vocabulary used to spot product references.
func ReconstructDraft(history []Turn, current string, productNames []string) DraftOrder {
	draft := DraftOrder{}
	turns := append(append([]Turn{}, history...), Turn{Role: valueobject.RoleCustomer, Text: current})
	for _, turn := range turns {
		if p := findProduct(turn.Text, productNames); p != "" {
			draft.Product = p
		}
		if turn.Role != valueobject.RoleCustomer {
			continue
		}
		draft.absorb(turn.Text)
	}
	return draft
}

func (d *DraftOrder) absorb(raw string) {
	text := NormalizeDigits(raw)

	if phone := egyptPhoneRe.FindString(text); phone != "" {
		d.Phone = phone
		text = strings.Replace(text, phone, " ", 1)
	} else if phone := genericPhoneRe.FindString(text); phone != "" {
		d.Phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
		text = strings.Replace(text, phone, " ", 1)
	}

	if m := nameRe.FindStringSubmatch(text); m != nil {
		d.Name = strings.TrimSpace(m[1])
	}
	if m := addressRe.FindStringSubmatch(text); m != nil {
		d.Address = strings.TrimSpace(m[1])
	}
	if m := quantityRe.FindStringSubmatch(text); m != nil {
		q := m[1]
		if q == "" {
			q = m[2]
		}
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			d.Quantity = n
		}
	}

	if m := sizeRe.FindStringSubmatch(text); m != nil {
		d.Size = strings.ToUpper(m[1])
	} else if trimmed := strings.ToLower(strings.TrimSpace(strings.TrimRight(text, ".!?؟ "))); bareSizeRe.MatchString(trimmed) {
		d.Size = strings.ToUpper(trimmed)
	}

	for _, tok := range tokenize(text) {
		if c, ok := colorWords[tok]; ok {
			d.Color = c
		}
	}
}

func findProduct(text string, names []string) string {
	lower := strings.ToLower(text)
	best := ""
	for _, n := range names {
		if n == "" {
			continue
		}
		// prefer the longest name that appears
		if strings.Contains(lower, strings.ToLower(n)) && len(n) > len(best) {
			best = n
		}
	}
	return best
}

// Missing lists required fields that are still empty.
func (d DraftOrder) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{FieldProduct, d.Product},
		{FieldName, d.Name},
		{FieldPhone, d.Phone},
		{FieldAddress, d.Address},
		{FieldSize, d.Size},
		{FieldColor, d.Color},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Complete reports whether every required field is known.
func (d DraftOrder) Complete() bool {
	return len(d.Missing()) == 0
}

// Empty reports whether nothing is known yet.
func (d DraftOrder) Empty() bool {
	return d == DraftOrder{}
}

// Known renders the known fields as "field: value" lines.
func (d DraftOrder) Known() []string {
	var lines []string
	add := func(k, v string) {
		if v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	add(FieldProduct, d.Product)
	add(FieldName, d.Name)
	add(FieldPhone, d.Phone)
	add(FieldAddress, d.Address)
	add(FieldSize, d.Size)
	add(FieldColor, d.Color)
	qty := d.Quantity
	if qty == 0 {
		qty = 1
	}
	lines = append(lines, fmt.Sprintf("quantity: %d", qty))
	return lines
}
