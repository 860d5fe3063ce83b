package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/anymod/pkg/plugins"
)

func newEntryPointsCommand(opts *globalOptions) *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "entry-points [group] [name]",
		Short: "List declared entry points",
		Long: `List entry points declared by compiled-in registrations and by package
manifests found below the search paths. Without a group the known groups are
listed. With --load every selected entry point is loaded.`,
		Example: `  anymod entry-points
  anymod entry-points anymod.greeters
  anymod entry-points anymod.greeters pirate --load`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				switch {
				case len(args) == 0:
					return runEntryPointGroups(a)
				case load:
					return runEntryPointsLoad(ctx, a, args[0], argAt(args, 1))
				default:
					return runEntryPointsList(a, args[0], argAt(args, 1))
				}
			})
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "Load each entry point and report its symbol")

	return cmd
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func runEntryPointGroups(a *app) error {
	index, err := a.loader.EntryPointIndex()
	if err != nil {
		return err
	}

	groups := index.Groups()
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g, fmt.Sprint(len(index.Entries(g, "")))})
	}
	return a.render(groups, []string{"GROUP", "ENTRIES"}, rows)
}

func runEntryPointsList(a *app, group, name string) error {
	index, err := a.loader.EntryPointIndex()
	if err != nil {
		return err
	}

	entries := index.Entries(group, name)
	if entries == nil {
		entries = []plugins.EntryPoint{}
	}

	rows := make([][]string, 0, len(entries))
	for _, ep := range entries {
		source := ep.Source
		if source == "" {
			source = plugins.CatalogSource
		}
		rows = append(rows, []string{ep.Name, ep.Target, source})
	}
	return a.render(entries, []string{"NAME", "TARGET", "SOURCE"}, rows)
}

func runEntryPointsLoad(ctx context.Context, a *app, group, name string) error {
	symbols, err := a.loader.EntryPoints(ctx, group, name)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(symbols))
	for n := range symbols {
		names = append(names, n)
	}
	sort.Strings(names)

	loaded := make(map[string]SymbolInfo, len(symbols))
	rows := make([][]string, 0, len(symbols))
	for _, n := range names {
		info := symbolInfo(symbols[n])
		loaded[n] = info
		rows = append(rows, []string{n, info.Name, info.Kind, info.Type})
	}
	return a.render(loaded, []string{"ENTRY POINT", "SYMBOL", "KIND", "TYPE"}, rows)
}
