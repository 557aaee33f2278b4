package channel

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/chatcommerce/gateway/internal/domain/entity"
)

// ConsoleSender writes replies to a terminal. Used by the REPL.
type ConsoleSender struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
}

// NewConsoleSender 创建控制台发送器
func NewConsoleSender(out io.Writer, prefix string) *ConsoleSender {
	return &ConsoleSender{out: out, prefix: prefix}
}

// Send implements Sender.
func (c *ConsoleSender) Send(_ context.Context, _ *entity.Channel, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s%s\n\n", c.prefix, ToPlainText(text))
	return err
}
