package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/gateway/pkg/errors"
)

// stubCreator records commands and returns a fixed outcome.
type stubCreator struct {
	calls   []OrderCommand
	receipt OrderReceipt
	err     error
	panics  bool
}

func (s *stubCreator) CreateOrder(_ context.Context, cmd OrderCommand, _ string) (OrderReceipt, error) {
	s.calls = append(s.calls, cmd)
	if s.panics {
		panic("boom")
	}
	return s.receipt, s.err
}

func requireNoRawTokens(t *testing.T, text string) {
	t.Helper()
	upper := strings.ToUpper(text)
	require.NotContains(t, upper, "[ADD_TO_CART:")
	require.NotContains(t, upper, "[CREATE_ORDER:")
}

func TestPostProcessor_OrderHappyPath(t *testing.T) {
	f, catalog, _, productID := newTestFulfillment(t)
	p := NewPostProcessor(f, zap.NewNop())

	out, results := p.Process(context.Background(),
		"Assistant: Perfect, Jane!\n[CREATE_ORDER: Product X - 2 - Jane - 01000000000 - Cairo - 40 - red]", "c1")

	requireNoRawTokens(t, out)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Receipt)
	require.True(t, strings.HasPrefix(out, "Perfect, Jane!"))
	require.Contains(t, out, results[0].Receipt.Number)
	require.Contains(t, out, "540 EGP")
	require.Equal(t, 8, catalog.Stock(productID))
}

func TestPostProcessor_MissingDataAsksForFields(t *testing.T) {
	f, catalog, _, _ := newTestFulfillment(t)
	p := NewPostProcessor(f, zap.NewNop())

	out, results := p.Process(context.Background(), "Sure!\n[CREATE_ORDER: Product X - 1 - - - - - ]", "c1")

	requireNoRawTokens(t, out)
	require.Len(t, results, 1)
	require.True(t, errors.Is(results[0].Err, errors.CodeMissingCustomerInfo))
	require.Contains(t, out, "full name and phone number")
	require.Equal(t, 0, catalog.OrderCount())
}

func TestPostProcessor_FailureNotices(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", errors.NewProductNotFoundError("x"), "couldn't find that product"},
		{"out of stock", errors.NewOutOfStockError("x", 2), "enough stock"},
		{"persistence", errors.NewOrderPersistenceError(context.DeadlineExceeded), "something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPostProcessor(&stubCreator{err: tt.err}, zap.NewNop())
			out, _ := p.Process(context.Background(), "[CREATE_ORDER: Product X - 1 - Jane - 0100 - Cairo - 40 - red]", "c1")
			require.Contains(t, out, tt.want)
			requireNoRawTokens(t, out)
		})
	}
}

func TestPostProcessor_ParseErrorAndPanicDegradeToApology(t *testing.T) {
	creator := &stubCreator{panics: true}
	p := NewPostProcessor(creator, zap.NewNop())

	out, results := p.Process(context.Background(), "[CREATE_ORDER: Product X - lots]", "c1")
	require.Contains(t, out, "something went wrong")
	require.Empty(t, creator.calls, "parse error must not reach the creator")
	require.Error(t, results[0].Err)

	out, results = p.Process(context.Background(), "[CREATE_ORDER: Product X - 1 - Jane - 0100]", "c1")
	require.Contains(t, out, "something went wrong")
	require.Len(t, creator.calls, 1)
	require.Error(t, results[0].Err)
}

func TestPostProcessor_AddToCartAndArabic(t *testing.T) {
	p := NewPostProcessor(&stubCreator{}, zap.NewNop())

	out, results := p.Process(context.Background(), "Great choice!\nADD_TO_CART: Product X", "c1")
	require.Equal(t, "Great choice!\n✅ Product X has been added to your cart.", out)
	require.Len(t, results, 1)
	require.Equal(t, CommandAddToCart, results[0].Kind)

	out, _ = p.Process(context.Background(), "تمام [ADD_TO_CART: Product X]", "c1")
	require.Contains(t, out, "تمت إضافة Product X إلى السلة")
}

func TestPostProcessor_RepeatedOrderExecutesOnce(t *testing.T) {
	creator := &stubCreator{receipt: OrderReceipt{Number: "ORD-1", Currency: "EGP"}}
	p := NewPostProcessor(creator, zap.NewNop())

	body := "Product X - 1 - Jane - 0100 - Cairo - 40 - red"
	out, results := p.Process(context.Background(), "[CREATE_ORDER: "+body+"]\n[CREATE_ORDER:  "+body+" ]", "c1")

	require.Len(t, creator.calls, 1)
	require.Len(t, results, 2)
	require.True(t, results[1].Skipped)
	require.Equal(t, 1, strings.Count(out, "ORD-1"))
}

func TestPostProcessor_NeverLeaksTokens(t *testing.T) {
	p := NewPostProcessor(&stubCreator{err: errors.NewInternalError("x")}, zap.NewNop())
	inputs := []string{
		"[ADD_TO_CART: [ADD_TO_CART: nested]",
		"[create_order: x - 1\n[Add_To_Cart:",
		"text [CREATE_ORDER:",
		"[ CREATE_ORDER : a - 1 - b - c - d - e - f - g - h ]",
		"CREATE_ORDER:\nADD_TO_CART:",
	}
	for _, in := range inputs {
		out, _ := p.Process(context.Background(), in, "c1")
		requireNoRawTokens(t, out)
	}
}

func TestCleanArtifacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"role prefix", "Assistant: Hello!", "Hello!"},
		{"note aside", "Price is 245 EGP.\n(Note: discount applied)\nAnything else?", "Price is 245 EGP.\n\nAnything else?"},
		{"placeholder", "Hi [Customer Name], welcome!", "Hi , welcome!"},
		{"markdown link kept", "See [our page](https://example.com)", "See [our page](https://example.com)"},
		{"blank runs", "a\n\n\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CleanArtifacts(tt.in))
		})
	}
}

func TestPostProcessor_WrappedCommandKeepsConfirmation(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"double brackets", "Done!\n[[CREATE_ORDER: Product X - 2 - Jane - 01000000000 - Cairo - 40 - red]]", "Done!"},
		{"note aside", "Done!\n(Note: [CREATE_ORDER: Product X - 2 - Jane - 01000000000 - Cairo - 40 - red])", "Done!"},
		{"inline brackets", "Done! [see [CREATE_ORDER: Product X - 2 - Jane - 01000000000 - Cairo - 40 - red]] thanks", "Done!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, catalog, _, productID := newTestFulfillment(t)
			p := NewPostProcessor(f, zap.NewNop())

			out, results := p.Process(context.Background(), tt.reply, "c1")

			requireNoRawTokens(t, out)
			require.Len(t, results, 1)
			require.NotNil(t, results[0].Receipt)
			require.Equal(t, 8, catalog.Stock(productID))
			require.True(t, strings.HasPrefix(out, tt.want))
			require.Contains(t, out, results[0].Receipt.Number)
			require.Contains(t, out, "540 EGP")
			require.NotContains(t, out, "\x00")
		})
	}
}

func TestPostProcessor_WrappedFailureNoticeSurvives(t *testing.T) {
	p := NewPostProcessor(&stubCreator{err: errors.NewOutOfStockError("x", 2)}, zap.NewNop())

	out, _ := p.Process(context.Background(), "OK [[CREATE_ORDER: Product X - 1 - Jane - 0100 - Cairo]]", "c1")
	require.Equal(t, "OK\nSorry, we don't have enough stock for that item right now.", out)
}

func TestPostProcessor_NoticeLanguageFollowsCustomer(t *testing.T) {
	creator := &stubCreator{receipt: OrderReceipt{Number: "ORD-1", Currency: "EGP"}}
	p := NewPostProcessor(creator, zap.NewNop())
	cmd := "[CREATE_ORDER: Product X - 1 - Jane - 0100 - Cairo - 40 - red]"

	out, _ := p.ProcessReply(context.Background(), "Thanks!\n"+cmd, "عايز أأكد الطلب", "c1")
	require.Contains(t, out, "تم تسجيل طلبك رقم ORD-1")

	out, _ = p.ProcessReply(context.Background(), "تمام\n"+cmd, "please confirm", "c1")
	require.Contains(t, out, "Your order ORD-1 has been placed")

	// 只有数字时沿用生成文本的语言
	out, _ = p.ProcessReply(context.Background(), "تمام\n"+cmd, "40", "c1")
	require.Contains(t, out, "تم تسجيل طلبك رقم ORD-1")
}
