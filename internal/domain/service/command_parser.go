package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// CommandKind 命令类型
type CommandKind string

const (
	CommandAddToCart   CommandKind = "ADD_TO_CART"
	CommandCreateOrder CommandKind = "CREATE_ORDER"
)

// orderFieldCount is the number of positional CREATE_ORDER fields.
const orderFieldCount = 7

// CommandToken is one command found in generated text.
type CommandToken struct {
	Kind  CommandKind
	Body  string // text after the colon, trimmed
	Start int    // byte offsets of the whole token in the source text
	End   int
}

// commandRe matches the bracketed form anywhere (an unterminated bracket
// runs to the end of the line) and the bare form at the start of a line.
var commandRe = regexp.MustCompile(
	`(?im)\[[ \t]*(ADD_TO_CART|CREATE_ORDER)[ \t]*:([^\]\n]*)(?:\]|$)` +
		`|^[ \t]*(ADD_TO_CART|CREATE_ORDER)[ \t]*:([^\n]*)$`,
)

// FindCommandTokens returns every command token in text, in order.
func FindCommandTokens(text string) []CommandToken {
	matches := commandRe.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]CommandToken, 0, len(matches))
	for _, m := range matches {
		// groups 1-2 are the bracketed form, 3-4 the bare form
		kwStart, kwEnd, bodyStart, bodyEnd := m[2], m[3], m[4], m[5]
		if kwStart < 0 {
			kwStart, kwEnd, bodyStart, bodyEnd = m[6], m[7], m[8], m[9]
		}
		tokens = append(tokens, CommandToken{
			Kind:  CommandKind(strings.ToUpper(text[kwStart:kwEnd])),
			Body:  strings.TrimSpace(text[bodyStart:bodyEnd]),
			Start: m[0],
			End:   m[1],
		})
	}
	return tokens
}

// OrderCommand is a parsed CREATE_ORDER body.
type OrderCommand struct {
	Product      string
	Quantity     int
	CustomerName string
	Phone        string
	Address      string
	Size         string
	Color        string
}

// ParseError describes a CREATE_ORDER body that cannot be used.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "invalid order command: " + e.Reason
	}
	return fmt.Sprintf("invalid order command field %s: %s", e.Field, e.Reason)
}

// ParseOrderFields parses
//
//	<product> - <quantity> - <name> - <phone> - <address> - <size> - <color>
//
// Only a '-' with whitespace or the body boundary on both sides separates
// fields, so "010-123" and "Al-Haram" stay intact. Missing trailing fields
// are empty and quantity defaults to 1. Surplus middle segments are folded
// back into the address. The error, when non-nil, is a *ParseError.
func ParseOrderFields(body string) (OrderCommand, error) {
	fields := splitFields(body)
	if len(fields) == 0 || fields[0] == "" {
		return OrderCommand{}, &ParseError{Field: FieldProduct, Reason: "missing product"}
	}

	if len(fields) > orderFieldCount {
		surplus := len(fields) - orderFieldCount
		address := strings.Join(fields[4:5+surplus], " - ")
		merged := append(append([]string{}, fields[:4]...), address)
		fields = append(merged, fields[len(fields)-2:]...)
	}
	for len(fields) < orderFieldCount {
		fields = append(fields, "")
	}

	qty := 1
	if raw := NormalizeDigits(fields[1]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return OrderCommand{}, &ParseError{Field: "quantity", Reason: fmt.Sprintf("%q is not a number", fields[1])}
		}
		if n < 1 || n > entity.MaxOrderQuantity {
			return OrderCommand{}, &ParseError{Field: "quantity", Reason: fmt.Sprintf("%d out of range 1..%d", n, entity.MaxOrderQuantity)}
		}
		qty = n
	}

	return OrderCommand{
		Product:      fields[0],
		Quantity:     qty,
		CustomerName: fields[2],
		Phone:        NormalizeDigits(fields[3]),
		Address:      fields[4],
		Size:         fields[5],
		Color:        fields[6],
	}, nil
}

// splitFields splits on separator dashes and trims every field.
func splitFields(body string) []string {
	runes := []rune(body)
	var fields []string
	start := 0
	for i, r := range runes {
		if r != '-' {
			continue
		}
		leftOK := i == 0 || unicode.IsSpace(runes[i-1])
		rightOK := i == len(runes)-1 || unicode.IsSpace(runes[i+1])
		if leftOK && rightOK {
			fields = append(fields, strings.TrimSpace(string(runes[start:i])))
			start = i + 1
		}
	}
	fields = append(fields, strings.TrimSpace(string(runes[start:])))
	if len(fields) == 1 && fields[0] == "" {
		return nil
	}
	return fields
}
