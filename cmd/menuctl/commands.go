package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fdg312/menu-batches/internal/batches"
	"github.com/fdg312/menu-batches/internal/client"
	"github.com/fdg312/menu-batches/internal/editor"
	"github.com/fdg312/menu-batches/internal/planfile"
	"github.com/fdg312/menu-batches/internal/render"
	"github.com/fdg312/menu-batches/internal/review"
)

func tokenCmd(g *globalFlags) *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Get a dev token (AUTH_MODE=dev)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context()
			defer cancel()

			resp, err := g.client().DevToken(ctx, userID, role)
			if err != nil {
				return apiError("token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id (numeric consumer id for consumers)")
	cmd.Flags().StringVar(&role, "role", "producer", "producer, consumer or operator")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func showCmd(g *globalFlags) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Print a batch as a calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := g.context()
			defer cancel()

			details, err := g.client().FetchBatchItems(ctx, id)
			if err != nil {
				return apiError("fetch batch", err)
			}
			items := batches.Inputs(details.Items)

			out := cmd.OutOrStdout()
			if asYAML {
				data, err := planfile.FromBatch(details.Batch, items).Marshal()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			cal := batches.GroupItemsByDay(details.Batch.Year, details.Batch.Month, items)
			st := g.styles()
			fmt.Fprintln(out, render.Header(details.Batch, cal, st))
			fmt.Fprintln(out, render.Calendar(cal, st))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print as a plan file for menuctl apply")
	return cmd
}

func listCmd(g *globalFlags) *cobra.Command {
	var p client.ListParams
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches visible to the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := batches.ParseStatus(status)
				if err != nil {
					return codeError(2, "%v", err)
				}
				p.Status = st
			}
			ctx, cancel := g.context()
			defer cancel()

			resp, err := g.client().ListBatches(ctx, p)
			if err != nil {
				return apiError("list", err)
			}

			st := g.styles()
			badge := func(s batches.Status) string { return render.StatusBadge(s, st) }
			if err := writeBatchTable(cmd.OutOrStdout(), resp.Batches, badge); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(resp.Batches), resp.Total)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&p.ConsumerID, "consumer", 0, "Filter by consumer id")
	f.StringVar(&status, "status", "", "Filter by status")
	f.IntVar(&p.Limit, "limit", 20, "Page size")
	f.IntVar(&p.Offset, "offset", 0, "Page offset")
	return cmd
}

func statsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Producer dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context()
			defer cancel()

			s, err := g.client().Stats(ctx)
			if err != nil {
				return apiError("stats", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total %d  draft %d  pending %d  active %d  rejected %d\n",
				s.Total, s.Draft, s.Pending, s.Active, s.Rejected)
			return nil
		},
	}
}

func applyCmd(g *globalFlags) *cobra.Command {
	var submit, dryRun bool
	cmd := &cobra.Command{
		Use:   "apply <plan.yaml>",
		Short: "Create or update a batch from a plan file",
		Long: "Applies a YAML month plan through the editor: a plan with batch_id updates that batch,\n" +
			"otherwise a new DRAFT batch is created. The diff against the stored batch is printed first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := planfile.Load(args[0])
			if err != nil {
				return codeError(2, "%v", err)
			}
			ctx, cancel := g.context()
			defer cancel()

			c := g.client()
			var ed *editor.Editor
			if plan.BatchID != 0 {
				ed, err = editor.Open(ctx, c, plan.BatchID, nil)
				if err != nil {
					return apiError("open batch", err)
				}
			} else {
				ed = editor.New(c, plan.ConsumerID, plan.Year, plan.Month, nil)
			}

			before := ed.Calendar()
			if err := plan.Apply(ed); err != nil {
				var verr *editor.ValidationError
				if errors.As(err, &verr) {
					return codeError(2, "%v", verr)
				}
				return codeError(2, "apply plan: %v", err)
			}

			st := g.styles()
			out := cmd.OutOrStdout()
			if diff, changed := render.Diff(before, ed.Calendar(), st); changed {
				fmt.Fprint(out, diff)
			} else {
				fmt.Fprintln(out, "no changes to meals")
			}
			if dryRun {
				return nil
			}

			var saved *batches.BatchDTO
			if submit {
				saved, err = ed.Submit(ctx)
			} else {
				saved, err = ed.Save(ctx)
			}
			if err != nil {
				if errors.Is(err, editor.ErrNothingToSave) {
					return codeError(2, "%v", err)
				}
				return apiError("save batch", err)
			}
			fmt.Fprintf(out, "batch %d %s\n", saved.ID, render.StatusBadge(saved.Status, st))
			return nil
		},
	}
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the batch after saving")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only print the diff")
	return cmd
}

func approveCmd(g *globalFlags) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "approve <batch-id>",
		Short: "Approve a submitted batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReview(g, args[0], func(r *review.Review) error {
				return r.Approve(cmd.Context(), notes)
			}, cmd)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Delivery notes")
	return cmd
}

func rejectCmd(g *globalFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <batch-id>",
		Short: "Send a batch back to the producer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReview(g, args[0], func(r *review.Review) error {
				return r.Reject(cmd.Context(), reason)
			}, cmd)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the batch is rejected")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func withReview(g *globalFlags, rawID string, act func(*review.Review) error, cmd *cobra.Command) error {
	id, err := parseBatchID(rawID)
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()
	cmd.SetContext(ctx)

	r, err := review.Load(ctx, g.client(), id)
	if err != nil {
		return apiError("load batch", err)
	}
	if err := act(r); err != nil {
		var verr *review.ValidationError
		switch {
		case errors.As(err, &verr):
			return codeError(2, "%v", verr)
		case errors.Is(err, review.ErrNotApprovable):
			return codeError(4, "%v", err)
		}
		return apiError("review", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "batch %d %s\n", id, render.StatusBadge(r.Status(), g.styles()))
	return nil
}

func reasonCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reason <batch-id>",
		Short: "Print the rejection reason of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := g.context()
			defer cancel()

			resp, err := g.client().FetchRejectionReason(ctx, id)
			if err != nil {
				return apiError("rejection reason", err)
			}
			if resp.Reason == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "batch %d (%s) has no rejection reason\n", id, resp.Status)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), *resp.Reason)
			return nil
		},
	}
}

func eventCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "event <batch-id> <queue|prepare|ready|cancel>",
		Short: "Advance fulfillment status (operator)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			event := batches.Event(args[1])
			if !batches.OperatorEvent(event) {
				return codeError(2, "unsupported event %q", args[1])
			}
			ctx, cancel := g.context()
			defer cancel()

			b, err := g.client().SendEvent(ctx, id, event)
			if err != nil {
				return apiError("event", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %d %s\n", b.ID, render.StatusBadge(b.Status, g.styles()))
			return nil
		},
	}
}

func exportCmd(g *globalFlags) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Export a batch as PDF or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := g.context()
			defer cancel()

			exp, err := g.client().Export(ctx, id, format)
			if err != nil {
				return apiError("export", err)
			}
			if exp.URL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n(expires %s)\n", exp.URL, exp.ExpiresAt.Local().Format(time.DateTime))
				return nil
			}

			if out == "" {
				out = exp.Filename
			}
			if out == "" {
				out = fmt.Sprintf("menu_%d.%s", id, format)
			}
			if err := os.WriteFile(out, exp.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(exp.Data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: server file name)")
	return cmd
}

// writeBatchTable prints the batch list. STATUS is the last column: tabwriter
// counts escape codes of a colored badge as text.
func writeBatchTable(w io.Writer, list []batches.BatchDTO, badge func(batches.Status) string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONSUMER\tMONTH\tITEMS\tUPDATED\tSTATUS")
	for _, b := range list {
		fmt.Fprintf(tw, "%d\t%d\t%04d-%02d\t%d\t%s\t%s\n",
			b.ID, b.ConsumerID, b.Year, b.Month, b.ItemCount, b.UpdatedAt.Local().Format(time.DateTime), badge(b.Status))
	}
	return tw.Flush()
}
