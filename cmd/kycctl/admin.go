package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vericore/internal/app"
	"vericore/internal/settings"
	id "vericore/pkg/domain"
)

func (c *cli) catalogCmd() *cobra.Command {
	var yamlOut bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the document catalog and settings new sessions start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				snap, err := a.Settings.Current(ctx)
				if err != nil {
					return err
				}
				if yamlOut {
					return settings.Encode(c.stdout, snap)
				}
				return c.print(snap, func(w io.Writer) {
					fmt.Fprintf(w, "settings version %d\n\n", snap.Version)
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DOCUMENT\tBUCKETS\tBACK\tFIELDS")
					for _, d := range snap.Catalog.Documents {
						fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", d.Name, strings.Join(d.Buckets.Strings(), ","), d.NeedsBack, strings.Join(d.ExpectedFields, ", "))
					}
					_ = tw.Flush()
					fmt.Fprintf(w, "\nrequired buckets: %s\n", strings.Join(snap.Settings.RequiredBuckets.Strings(), ", "))
					fmt.Fprintf(w, "strict face match: %t\n", snap.Settings.StrictFaceMatch)
					fmt.Fprintf(w, "thresholds: approve>%d reject<%d\n", snap.Thresholds.Approve, snap.Thresholds.Reject)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Write the snapshot in the settings file format")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dashboard token for the --as reviewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.reviewerID == "" || strings.TrimSpace(c.reviewerName) == "" {
				return fmt.Errorf("--as and --as-name are required")
			}
			reviewerID, err := id.ParseReviewerID(c.reviewerID)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				if ttl <= 0 {
					ttl = a.Config.JWT.TTL
				}
				token, err := a.JWT.GenerateReviewerToken(reviewerID, strings.TrimSpace(c.reviewerName), ttl)
				if err != nil {
					return err
				}
				out := map[string]any{"token": token, "expires_in": int(ttl.Seconds())}
				return c.print(out, func(w io.Writer) { fmt.Fprintln(w, token) })
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_TTL)")
	return cmd
}
