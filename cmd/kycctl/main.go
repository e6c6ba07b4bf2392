// Command kycctl is the operator CLI: it works on review records, issues
// reviewer tokens and runs a verification from image files, using the same
// configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vericore/internal/app"
	"vericore/internal/platform/config"
	"vericore/internal/platform/logger"
	"vericore/pkg/requestcontext"
	id "vericore/pkg/domain"
)

// cli carries the persistent flags shared by every command.
type cli struct {
	out          string // "json" | "text"
	logLevel     string
	reviewerID   string
	reviewerName string

	stdout io.Writer
}

func main() {
	_ = godotenv.Load()

	if err := newRoot(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRoot(stdout io.Writer) *cobra.Command {
	c := &cli{
		out:          envOr("KYCCTL_OUT", "text"),
		logLevel:     envOr("KYCCTL_LOG_LEVEL", "warn"),
		reviewerID:   envOr("KYCCTL_REVIEWER_ID", ""),
		reviewerName: envOr("KYCCTL_REVIEWER_NAME", ""),
		stdout:       stdout,
	}

	root := &cobra.Command{
		Use:           "kycctl",
		Short:         "Operate the vericore verification platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.out != "json" && c.out != "text" {
				return fmt.Errorf("--out must be json or text")
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.PersistentFlags().StringVar(&c.out, "out", c.out, "Output format: json|text (env KYCCTL_OUT)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", c.logLevel, "Log level written to stderr (env KYCCTL_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&c.reviewerID, "as", c.reviewerID, "Reviewer id acting on records (env KYCCTL_REVIEWER_ID)")
	root.PersistentFlags().StringVar(&c.reviewerName, "as-name", c.reviewerName, "Reviewer display name (env KYCCTL_REVIEWER_NAME)")

	root.AddCommand(c.recordsCmd())
	root.AddCommand(c.catalogCmd())
	root.AddCommand(c.tokenCmd())
	root.AddCommand(c.verifyCmd())
	return root
}

// withApp builds the application graph for one command and closes it after.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.NewWithWriter(os.Stderr, c.logLevel)

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close resources", "error", err)
		}
	}()
	return fn(ctx, a)
}

// asReviewer puts the --as identity on ctx.
func (c *cli) asReviewer(ctx context.Context) (context.Context, error) {
	if c.reviewerID == "" || c.reviewerName == "" {
		return nil, fmt.Errorf("--as and --as-name are required (env KYCCTL_REVIEWER_ID, KYCCTL_REVIEWER_NAME)")
	}
	reviewerID, err := id.ParseReviewerID(c.reviewerID)
	if err != nil {
		return nil, err
	}
	return requestcontext.WithReviewer(ctx, reviewerID, c.reviewerName), nil
}

// print writes v as indented JSON, or calls text when the output is text.
func (c *cli) print(v any, text func(w io.Writer)) error {
	if c.out == "json" {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.stdout)
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
