package service

import (
	"testing"

	"github.com/chatcommerce/gateway/internal/domain/valueobject"
)

func TestIntentClassifier_IsProductRelated(t *testing.T) {
	c := NewIntentClassifier()
	orderHistory := []Turn{
		{Role: valueobject.RoleCustomer, Text: "I want to order the sneaker, color black"},
		{Role: valueobject.RoleAssistant, Text: "Great choice! Which size?"},
	}
	chitChat := []Turn{
		{Role: valueobject.RoleCustomer, Text: "hi"},
		{Role: valueobject.RoleAssistant, Text: "Hello! How can I help?"},
	}

	tests := []struct {
		name    string
		text    string
		history []Turn
		want    bool
	}{
		{"price question", "price?", nil, true},
		{"greeting", "hello, how are you", nil, false},
		{"how much phrase", "How much is it", nil, true},
		{"deictic", "I like this one", nil, true},
		{"arabic price", "بكام ده؟", nil, true},
		{"arabic article", "عايز اعرف السعر", nil, true},
		{"bare size after order", "40", orderHistory, true},
		{"arabic digits after order", "٤٢", orderHistory, true},
		{"confirmation after order", "ok", orderHistory, true},
		{"arabic confirmation after order", "تمام", orderHistory, true},
		{"bare number without order", "40", chitChat, false},
		{"confirmation without order", "ok", nil, false},
		{"long number is not a size", "01000000000", chitChat, false},
		{"thanks after order", "thanks a lot my friend", orderHistory, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsProductRelated(tt.text, tt.history); got != tt.want {
				t.Errorf("IsProductRelated(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestOrderInProgress_OnlyRecentTurns(t *testing.T) {
	history := []Turn{{Role: valueobject.RoleCustomer, Text: "what color is it"}}
	for i := 0; i < recentTurnsForIntent; i++ {
		history = append(history, Turn{Role: valueobject.RoleCustomer, Text: "lol"})
	}
	if OrderInProgress(history) {
		t.Error("signal older than the recent window should be ignored")
	}
	if !OrderInProgress(history[:2]) {
		t.Error("signal inside the window should count")
	}
}
