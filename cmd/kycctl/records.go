package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vericore/internal/app"
	kyc "vericore/internal/kyc/models"
	"vericore/internal/review/models"
	id "vericore/pkg/domain"
)

func (c *cli) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Review finalized verifications",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if os.Getenv("DATABASE_URL") == "" {
				return fmt.Errorf("records commands need DATABASE_URL: without it records only live inside the server process")
			}
			return nil
		},
	}
	cmd.AddCommand(c.recordsListCmd())
	cmd.AddCommand(c.recordsShowCmd())
	cmd.AddCommand(c.recordsStatusCmd("approve", kyc.StatusApproved))
	cmd.AddCommand(c.recordsStatusCmd("reject", kyc.StatusRejected))
	cmd.AddCommand(c.recordsAssignCmd())
	cmd.AddCommand(c.recordsCommentCmd())
	cmd.AddCommand(c.recordsExportCmd())
	return cmd
}

// filterFlags are shared by list and export.
type filterFlags struct {
	status   string
	assignee string
	query    string
	limit    int
	offset   int
}

func (f *filterFlags) register(cmd *cobra.Command, paging bool) {
	cmd.Flags().StringVar(&f.status, "status", "", "Pending|Approved|Flagged|Rejected")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "Reviewer id, or \"me\" for --as")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Case reference or customer name")
	if paging {
		cmd.Flags().IntVar(&f.limit, "limit", models.DefaultLimit, "Page size")
		cmd.Flags().IntVar(&f.offset, "offset", 0, "Records to skip")
	}
}

func (f *filterFlags) build(c *cli) (models.Filter, error) {
	filter := models.Filter{Query: f.query, Limit: f.limit, Offset: f.offset}
	if f.status != "" {
		status, err := kyc.ParseStatus(f.status)
		if err != nil {
			return models.Filter{}, err
		}
		filter.Status = status
	}
	switch f.assignee {
	case "":
	case "me":
		reviewerID, err := id.ParseReviewerID(c.reviewerID)
		if err != nil {
			return models.Filter{}, fmt.Errorf("--assignee me needs --as: %w", err)
		}
		filter.AssigneeID = &reviewerID
	default:
		reviewerID, err := id.ParseReviewerID(f.assignee)
		if err != nil {
			return models.Filter{}, err
		}
		filter.AssigneeID = &reviewerID
	}
	return filter, nil
}

func (c *cli) recordsListCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.build(c)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				records, stats, err := a.Review.List(ctx, filter)
				if err != nil {
					return err
				}
				out := struct {
					Records []*models.Record `json:"records"`
					Stats   models.Stats     `json:"stats"`
				}{records, stats}
				return c.print(out, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "CASE\tSESSION\tCUSTOMER\tSTATUS\tRISK\tASSIGNEE\tFINALIZED")
					for _, r := range records {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
							r.CaseRef, r.ID, orDash(r.Profile.Name), r.Status, orDash(string(r.Risk)),
							assigneeName(r), finalizedAt(r))
					}
					_ = tw.Flush()
					fmt.Fprintf(w, "\ntotal=%d approved=%d flagged=%d rejected=%d\n",
						stats.Total, stats.Approved, stats.Flagged, stats.Rejected)
				})
			})
		},
	}
	ff.register(cmd, true)
	return cmd
}

func (c *cli) recordsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one record with its comments and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := id.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Review.Get(ctx, sessionID)
				if err != nil {
					return err
				}
				return c.print(rec, func(w io.Writer) { writeRecord(w, rec) })
			})
		},
	}
}

func (c *cli) recordsStatusCmd(use string, to kyc.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <session-id>",
		Short: fmt.Sprintf("Override a record's status to %s", to),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutate(cmd, args[0], func(ctx context.Context, a *app.App, sessionID id.SessionID) (*models.Record, error) {
				return a.Review.SetStatus(ctx, sessionID, to)
			})
		},
	}
}

func (c *cli) recordsAssignCmd() *cobra.Command {
	var toID, toName string
	cmd := &cobra.Command{
		Use:   "assign <session-id>",
		Short: "Assign a record; without --to the record is claimed by --as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutate(cmd, args[0], func(ctx context.Context, a *app.App, sessionID id.SessionID) (*models.Record, error) {
				assignee := models.Assignee{Name: c.reviewerName}
				if toID == "" {
					reviewerID, err := id.ParseReviewerID(c.reviewerID)
					if err != nil {
						return nil, err
					}
					assignee.ID = reviewerID
				} else {
					reviewerID, err := id.ParseReviewerID(toID)
					if err != nil {
						return nil, err
					}
					if strings.TrimSpace(toName) == "" {
						return nil, fmt.Errorf("--to-name is required with --to")
					}
					assignee = models.Assignee{ID: reviewerID, Name: strings.TrimSpace(toName)}
				}
				return a.Review.Assign(ctx, sessionID, assignee)
			})
		},
	}
	cmd.Flags().StringVar(&toID, "to", "", "Reviewer id to assign to")
	cmd.Flags().StringVar(&toName, "to-name", "", "Display name of the assignee")
	return cmd
}

func (c *cli) recordsCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <session-id> <text>",
		Short: "Add a comment to a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args[1:], " ")
			return c.mutate(cmd, args[0], func(ctx context.Context, a *app.App, sessionID id.SessionID) (*models.Record, error) {
				return a.Review.Comment(ctx, sessionID, body)
			})
		},
	}
}

func (c *cli) recordsExportCmd() *cobra.Command {
	var ff filterFlags
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching records to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.build(c)
			if err != nil {
				return err
			}
			if file == "" {
				file = "verifications-" + time.Now().Format("20060102") + ".xlsx"
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f, err := os.Create(file)
				if err != nil {
					return err
				}
				if err := a.Review.Export(ctx, filter, f); err != nil {
					_ = f.Close()
					_ = os.Remove(file)
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				return c.print(map[string]string{"file": file}, func(w io.Writer) {
					fmt.Fprintln(w, "wrote", file)
				})
			})
		},
	}
	ff.register(cmd, false)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Output path (default verifications-YYYYMMDD.xlsx)")
	return cmd
}

type recordMutation func(ctx context.Context, a *app.App, sessionID id.SessionID) (*models.Record, error)

// mutate runs fn as the --as reviewer and prints the updated record.
func (c *cli) mutate(cmd *cobra.Command, rawID string, fn recordMutation) error {
	sessionID, err := id.ParseSessionID(rawID)
	if err != nil {
		return err
	}
	return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
		ctx, err := c.asReviewer(ctx)
		if err != nil {
			return err
		}
		rec, err := fn(ctx, a, sessionID)
		if err != nil {
			return err
		}
		return c.print(rec, func(w io.Writer) { writeRecord(w, rec) })
	})
}

func writeRecord(w io.Writer, r *models.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Case\t%s\n", r.CaseRef)
	fmt.Fprintf(tw, "Session\t%s\n", r.ID)
	fmt.Fprintf(tw, "Customer\t%s\n", orDash(r.Profile.Name))
	fmt.Fprintf(tw, "Date of birth\t%s\n", orDash(r.Profile.DOB))
	fmt.Fprintf(tw, "Documents\t%s\n", orDash(strings.Join(r.DocumentOrder, ", ")))
	fmt.Fprintf(tw, "Status\t%s\n", r.Status)
	fmt.Fprintf(tw, "Risk\t%s\n", orDash(string(r.Risk)))
	fmt.Fprintf(tw, "Face match\t%d\n", r.FaceMatchScore)
	fmt.Fprintf(tw, "Liveness\t%t\n", r.LivenessConfirmed)
	if len(r.Mismatches) > 0 {
		fmt.Fprintf(tw, "Mismatches\t%s\n", strings.Join(r.Mismatches, ", "))
	}
	if r.RejectionReason != "" {
		fmt.Fprintf(tw, "Rejection reason\t%s\n", r.RejectionReason)
	}
	fmt.Fprintf(tw, "Assignee\t%s\n", assigneeName(r))
	fmt.Fprintf(tw, "Finalized\t%s\n", finalizedAt(r))
	_ = tw.Flush()

	if len(r.Comments) > 0 {
		fmt.Fprintln(w, "\nComments")
		for _, cm := range r.Comments {
			fmt.Fprintf(w, "  %s  %s: %s\n", cm.CreatedAt.Format(time.RFC3339), cm.AuthorName, cm.Body)
		}
	}
	if len(r.Activity) > 0 {
		fmt.Fprintln(w, "\nActivity")
		for _, ac := range r.Activity {
			line := fmt.Sprintf("  %s  %s", ac.CreatedAt.Format(time.RFC3339), ac.Action)
			if ac.ActorName != "" {
				line += " by " + ac.ActorName
			}
			if ac.Detail != "" {
				line += " (" + ac.Detail + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
}

func assigneeName(r *models.Record) string {
	if r.Assignee == nil {
		return "-"
	}
	return r.Assignee.Name
}

func finalizedAt(r *models.Record) string {
	if r.FinalizedAt == nil {
		return "-"
	}
	return r.FinalizedAt.Format(time.RFC3339)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
