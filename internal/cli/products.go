package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tair/price-tracker/internal/tracker/usecase/command"
	"github.com/tair/price-tracker/internal/tracker/usecase/query"
)

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url> <target-price>",
		Short: "Start tracking a product",
		Long: `Fetch the product page once and start tracking it. The current price is
stored as the first history entry.

Examples:
  price-tracker add https://www.amazon.com/dp/B000KETTLE 49.99`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			if err != nil {
				return NewExitError(ExitFailure, "target price must be a positive number")
			}

			store, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			product, err := store.Add.Handle(cmd.Context(), command.AddProductCommand{URL: args[0], TargetPrice: target})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to add product", err)
			}

			return opts.formatter(cmd).Print(product, func(w io.Writer) {
				fmt.Fprintf(w, "Added %s to tracking list (target %.2f).\n", truncate(product.Name, 30), product.TargetPrice)
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Sort string
	Desc bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked products with their latest price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			products, err := store.List.Handle(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list products", err)
			}
			if err := sortProducts(products, opts.Sort, opts.Desc); err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}

			return opts.formatter(cmd).Print(products, func(w io.Writer) {
				renderProducts(w, products)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "id", fmt.Sprintf("sort key (%s)", strings.Join(SortKeys, "|")))
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "sort descending")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <url>",
		Short: "Show the price history of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			history, err := store.History.Handle(cmd.Context(), query.GetHistoryQuery{URL: args[0]})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to get history", err)
			}

			return opts.formatter(cmd).Print(history, func(w io.Writer) {
				renderHistory(w, args[0], history)
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <url>",
		Short: "Stop tracking a product and delete its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd, fmt.Sprintf("Remove %s?", args[0])) {
				return NewExitError(ExitFailure, "aborted")
			}

			store, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Remove.Handle(cmd.Context(), command.RemoveProductCommand{URL: args[0]}); err != nil {
				return WrapExitError(ExitFailure, "failed to remove product", err)
			}

			return opts.formatter(cmd).Print(map[string]string{"removed": args[0]}, func(w io.Writer) {
				fmt.Fprintln(w, "Product removed from tracking.")
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every tracked product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := store.Repo.Count(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count products", err)
			}
			if count == 0 {
				return opts.formatter(cmd).Print(map[string]int64{"removed": 0}, func(w io.Writer) {
					fmt.Fprintln(w, "No products to clear.")
				})
			}
			if !yes && !confirm(cmd, "Remove all tracked products?") {
				return NewExitError(ExitFailure, "aborted")
			}

			removed, err := store.Clear.Handle(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to clear products", err)
			}

			return opts.formatter(cmd).Print(map[string]int64{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "All products removed (%d).\n", removed)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
