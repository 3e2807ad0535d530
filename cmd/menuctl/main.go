// Command menuctl drives the batch API from a terminal: producers apply
// YAML month plans, consumers review and approve them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fdg312/menu-batches/internal/client"
	"github.com/fdg312/menu-batches/internal/render"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

type globalFlags struct {
	apiURL  string
	token   string
	plain   bool
	timeout time.Duration
}

func (g *globalFlags) client() *client.Client {
	return client.New(g.apiURL, g.token, nil)
}

func (g *globalFlags) styles() render.Styles {
	if g.plain {
		return render.PlainStyles()
	}
	return render.DefaultStyles()
}

func (g *globalFlags) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.timeout)
}

func main() {
	var g globalFlags
	if err := newRootCmd(&g).Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(g *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "menuctl",
		Short:         "Plan, submit and review monthly meal batches",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.apiURL, "api", envOr("MENU_API_URL", "http://localhost:8080"), "API base URL (MENU_API_URL)")
	pf.StringVar(&g.token, "token", os.Getenv("MENU_API_TOKEN"), "Bearer token (MENU_API_TOKEN)")
	pf.BoolVar(&g.plain, "plain", false, "Disable colors and borders")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(
		tokenCmd(g),
		showCmd(g),
		listCmd(g),
		statsCmd(g),
		applyCmd(g),
		approveCmd(g),
		rejectCmd(g),
		reasonCmd(g),
		eventCmd(g),
		exportCmd(g),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBatchID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, codeError(2, "invalid batch id %q", raw)
	}
	return id, nil
}

// apiError maps client errors to exit codes: 3 not found, 4 conflict, 1 otherwise.
func apiError(what string, err error) error {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return codeError(3, "%s: %v", what, err)
	case errors.Is(err, client.ErrConflict):
		return codeError(4, "%s: %v", what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
