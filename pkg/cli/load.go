package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/anymod/pkg/plugins"
)

// SymbolInfo describes a module symbol for output
type SymbolInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Type string `json:"type"`
}

// ModuleInfo describes an imported module for output
type ModuleInfo struct {
	Name    string       `json:"name"`
	Source  string       `json:"source"`
	Symbols []SymbolInfo `json:"symbols"`
}

func symbolInfo(s plugins.Symbol) SymbolInfo {
	return SymbolInfo{Name: s.Name, Kind: string(s.Kind), Type: fmt.Sprint(s.Type)}
}

func newLoadCommand(opts *globalOptions) *cobra.Command {
	var reload bool

	cmd := &cobra.Command{
		Use:   "load <module>",
		Short: "Import a module and list its symbols",
		Example: `  anymod load greeter.english
  anymod load --reload greeter.pirate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runLoad(ctx, a, args[0], reload)
			})
		},
	}

	cmd.Flags().BoolVar(&reload, "reload", false, "Rebuild the module after importing it")

	return cmd
}

func runLoad(ctx context.Context, a *app, name string, reload bool) error {
	m, err := a.loader.Import(ctx, name)
	if err != nil {
		return err
	}
	if reload {
		if m, err = a.loader.Reload(ctx, name); err != nil {
			return err
		}
	}

	info := ModuleInfo{Name: m.Name(), Source: m.Source(), Symbols: []SymbolInfo{}}
	rows := make([][]string, 0, len(m.Names()))
	for _, s := range m.Symbols() {
		si := symbolInfo(s)
		info.Symbols = append(info.Symbols, si)
		rows = append(rows, []string{si.Name, si.Kind, si.Type})
	}

	if !a.json {
		fmt.Fprintf(a.out, "Module %s (%s)\n\n", info.Name, info.Source)
	}
	return a.render(info, []string{"SYMBOL", "KIND", "TYPE"}, rows)
}

func newGetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <module.path:Symbol>",
		Short: "Load a single symbol by its dotted path",
		Example: `  anymod get greeter.english:English
  anymod get greeter.Version`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runGet(ctx, a, args[0])
			})
		},
	}
}

func runGet(ctx context.Context, a *app, target string) error {
	sym, err := a.loader.LoadByPath(ctx, target)
	if err != nil {
		return err
	}

	info := symbolInfo(sym)
	row := []string{info.Name, info.Kind, info.Type, ""}
	if sym.Kind == plugins.SymbolKindValue {
		row[3] = fmt.Sprint(sym.Value)
	}
	return a.render(info, []string{"SYMBOL", "KIND", "TYPE", "VALUE"}, [][]string{row})
}

func newResolveCommand(opts *globalOptions) *cobra.Command {
	var capability string

	cmd := &cobra.Command{
		Use:   "resolve <module>",
		Short: "Find the implementation a module provides for a capability",
		Long: `Import a module and report the single concrete type it provides that
implements the capability interface. The capability is named by the dotted
path of an interface symbol declared by some module.`,
		Example: `  anymod resolve greeter.english --capability greeter.Greeter`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runResolve(ctx, a, args[0], capability)
			})
		},
	}

	cmd.Flags().StringVarP(&capability, "capability", "c", "", "Interface symbol path, e.g. greeter.Greeter (required)")
	_ = cmd.MarkFlagRequired("capability")

	return cmd
}

func runResolve(ctx context.Context, a *app, moduleName, capability string) error {
	capSym, err := a.loader.LoadByPath(ctx, capability)
	if err != nil {
		return fmt.Errorf("failed to load capability: %w", err)
	}
	if capSym.Kind != plugins.SymbolKindInterface {
		return fmt.Errorf("%w: %s is a %s symbol", plugins.ErrInvalidCapability, capability, capSym.Kind)
	}

	sym, err := a.loader.ResolveSubclass(ctx, moduleName, capSym.Type)
	if err != nil {
		return err
	}

	if sym == nil {
		if a.json {
			return writeJSON(a.out, map[string]any{"module": moduleName, "capability": capability, "symbol": nil})
		}
		_, err := fmt.Fprintf(a.out, "%s provides no implementation of %s\n", moduleName, capability)
		return err
	}

	info := symbolInfo(*sym)
	if a.json {
		return writeJSON(a.out, map[string]any{"module": moduleName, "capability": capability, "symbol": info})
	}
	_, err = fmt.Fprintf(a.out, "%s:%s implements %s (%s)\n", moduleName, info.Name, capability, info.Type)
	return err
}
