package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/coprede/sir-dashboard/internal/application/notify"
)

// NotifyResult reports a summary run.
type NotifyResult struct {
	Sent    bool   `json:"sent"`
	DryRun  bool   `json:"dryRun"`
	Message string `json:"message"`
}

func newNotifyCmd() *cobra.Command {
	var dryRun, force bool
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send the WhatsApp summary of the current snapshot",
		Long: "notify renders the summary of the latest snapshot and sends it to the\n" +
			"configured recipient. Sends closer together than notify.min_interval are\n" +
			"skipped unless --force is given.",
		Args: cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			infra, err := cliCtx.Infra(ctx)
			if err != nil {
				return err
			}
			local, err := newLocalBackend(infra)
			if err != nil {
				return err
			}
			if err := local.ensure(ctx); err != nil {
				return err
			}

			var result NotifyResult
			if dryRun {
				snap, err := local.query.Snapshot(ctx)
				if err != nil {
					return err
				}
				now := time.Now().In(infra.Location())
				result = NotifyResult{DryRun: true, Message: notify.BuildSummary(snap, now, cliCtx.Config.Notify.DashboardURL).Render()}
			} else {
				summary, err := infra.NewSummaryService(local.query)
				if err != nil {
					return err
				}
				if result.Message, err = summary.Preview(ctx); err != nil {
					return err
				}
				if result.Sent, err = summary.Send(ctx, force); err != nil {
					return err
				}
			}
			return cliCtx.Printer.Print(result, func(s styles) string { return renderNotify(s, result) })
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the message without sending it")
	cmd.Flags().BoolVar(&force, "force", false, "send even inside the minimum interval")
	return cmd
}

func renderNotify(s styles, r NotifyResult) string {
	switch {
	case r.DryRun:
		return r.Message
	case r.Sent:
		return s.normal.Render("summary sent")
	default:
		return s.warning.Render("summary skipped: sent too recently (use --force)")
	}
}
