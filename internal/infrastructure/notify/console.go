package notify

import (
	"fmt"
	"io"
	"sync"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

// Console tells a terminal user that the session ended and how to start a new one.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	loginCmd string
	shown    int
}

var _ ports.AuthExpiredListener = (*Console)(nil)

// NewConsole writes notices to out; loginCmd is the command the user should run.
func NewConsole(out io.Writer, loginCmd string) *Console {
	return &Console{out: out, loginCmd: loginCmd}
}

// OnAuthExpired is the CLI's navigation to the login entry point.
func (c *Console) OnAuthExpired(event domain.AuthExpired) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shown++
	if c.out == nil {
		return
	}
	_, _ = fmt.Fprintf(c.out, "session expired (%s %s was rejected); run `%s` to sign in again [%s]\n",
		event.Method, event.Path, c.loginCmd, event.LoginPath)
}

// Shown reports how many notices were emitted.
func (c *Console) Shown() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}
