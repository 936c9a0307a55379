package cli

import (
	"context"
	"encoding/json"
	"fmt"
)

// QueriesCmd lists the catalogue.
type QueriesCmd struct {
	SQL bool `help:"Print each query's SQL"`
}

// Run executes the queries command
func (cmd *QueriesCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	for _, spec := range a.dashboard.Catalogue() {
		headerColor.Fprint(ctx.Stdout, spec.Label)
		if spec.Description != "" {
			fmt.Fprintf(ctx.Stdout, "  %s", spec.Description)
		}
		fmt.Fprintln(ctx.Stdout)
		if cmd.SQL {
			fmt.Fprintf(ctx.Stdout, "    %s\n", spec.SQL)
		}
	}
	return nil
}

// QueryCmd runs one catalogue query.
type QueryCmd struct {
	Label  string `arg:"" help:"Catalogue label, e.g. \"inner join\""`
	Limit  int    `short:"l" help:"Maximum rows to return (0 uses the configured default)" default:"0"`
	Format string `short:"f" help:"Output format" enum:"table,json" default:"table"`
}

// Run executes the query command
func (cmd *QueryCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.dashboard.RunCatalogueQuery(context.Background(), cmd.Label, cmd.Limit)
	if err != nil {
		return err
	}

	if cmd.Format == "json" {
		enc := json.NewEncoder(ctx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	noteColor.Fprintf(ctx.Stdout, "%s (limit %d)\n", result.Label, result.Limit)
	return printTable(ctx.Stdout, result.Table)
}
