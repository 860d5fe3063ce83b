package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/anymod/pkg/plugins"
)

func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show the effective search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, runPaths)
		},
	}
}

func runPaths(_ context.Context, a *app) error {
	paths := a.loader.Paths().Paths()

	rows := make([][]string, 0, len(paths))
	for i, p := range paths {
		rows = append(rows, []string{fmt.Sprint(i), p})
	}
	return a.render(paths, []string{"#", "PATH"}, rows)
}

func newDiscoverCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [include]",
		Short: "List the top-level modules and packages of each search path",
		Long: `List the modules and packages found directly inside each search path.
When include is given only names starting with it are reported, prefix
included.`,
		Example: `  # Everything below ./plugins
  anymod discover -p ./plugins

  # Only the greeter package, named under the ext. prefix
  anymod discover -p ./plugins --prefix ext. ext.greeter`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			include := ""
			if len(args) == 1 {
				include = args[0]
			}
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runDiscover(ctx, a, include)
			})
		},
	}
}

func runDiscover(ctx context.Context, a *app, include string) error {
	found, err := a.loader.DiscoverModules(ctx, "", nil, include)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	if found == nil {
		found = []plugins.Descriptor{}
	}

	rows := make([][]string, 0, len(found))
	for _, d := range found {
		rows = append(rows, []string{d.Name, yesNo(d.IsPackage), d.Location})
	}
	return a.render(found, []string{"NAME", "PACKAGE", "LOCATION"}, rows)
}

func newListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every importable module path below the search paths",
		Long: `Recursively walk each search path and list the dotted import path of every
leaf module. Paths are qualified with the base name of the search path they
were found under.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, runList)
		},
	}
}

func runList(ctx context.Context, a *app) error {
	paths, err := a.loader.ListImportPaths(ctx, "", nil)
	if err != nil {
		return fmt.Errorf("listing failed: %w", err)
	}
	if paths == nil {
		paths = []string{}
	}

	rows := make([][]string, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, []string{p})
	}
	return a.render(paths, []string{"IMPORT PATH"}, rows)
}

func newFindCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "Find the import path of a module by its short name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runFind(ctx, a, args[0])
			})
		},
	}
}

func runFind(ctx context.Context, a *app, name string) error {
	path, ok, err := a.loader.FindImportPath(ctx, name, "", nil)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("no module named %q below %v", name, a.loader.Paths().Paths())
	}

	if a.json {
		return writeJSON(a.out, map[string]string{"name": name, "import_path": path})
	}
	_, err = fmt.Fprintln(a.out, path)
	return err
}
