package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

const defaultListLimit = 20

func datasetArg(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func newBoardCmd() *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "board <RAL|REC>",
		Short: "Show the clusters of a dataset with their severity",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			board, err := b.Board(ctx, datasetArg(args[0]), types)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(board, func(s styles) string { return renderBoard(s, board) })
		}),
	}
	cmd.Flags().StringArrayVarP(&types, "types", "t", nil, "incident type to include, repeatable and matched exactly (default: all)")
	return cmd
}

func newClusterCmd() *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "cluster <RAL|REC> <cluster>",
		Short: "List the incidents of one cluster",
		Args:  cobra.ExactArgs(2),
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			view, err := b.Cluster(ctx, datasetArg(args[0]), args[1], types)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(view, func(s styles) string { return renderCluster(s, view) })
		}),
	}
	cmd.Flags().StringArrayVarP(&types, "types", "t", nil, "incident type to include, repeatable and matched exactly (default: all)")
	return cmd
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types <RAL|REC>",
		Short: "List the incident types present in a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			types, err := b.Types(ctx, datasetArg(args[0]))
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(types, func(s styles) string { return strings.Join(types, "\n") })
		}),
	}
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Show the metadata of the snapshot being served",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			info, err := b.Snapshot(ctx)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(info, func(s styles) string { return renderSnapshot(s, info) })
		}),
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent refreshes, newest first",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			history, err := b.History(ctx, limit)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(history, func(s styles) string { return renderHistory(s, history) })
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "maximum number of entries")
	return cmd
}

func newTrendCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trend <RAL|REC> <cluster>",
		Short: "Show the incident count of a cluster across refreshes",
		Args:  cobra.ExactArgs(2),
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			points, err := b.Trend(ctx, datasetArg(args[0]), args[1], limit)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(points, func(s styles) string { return renderTrend(s, points) })
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "maximum number of points")
	return cmd
}

func newTransitionsCmd() *cobra.Command {
	var (
		datasets []string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "List clusters entering or leaving the critical state",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			for i := range datasets {
				datasets[i] = datasetArg(datasets[i])
			}
			transitions, err := b.Transitions(ctx, datasets, limit)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(transitions, func(s styles) string { return renderTransitions(s, transitions) })
		}),
	}
	cmd.Flags().StringSliceVarP(&datasets, "dataset", "d", nil, "datasets to include (default: all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "maximum number of entries")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the feed now and publish a new snapshot",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			b, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			result, err := b.Refresh(ctx)
			if err != nil {
				return err
			}
			return cliCtx.Printer.Print(result, func(s styles) string { return renderRefresh(s, result) })
		}),
	}
}
