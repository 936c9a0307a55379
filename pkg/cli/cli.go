// Package cli is the gamedash command line: the HTTP server plus one-shot
// commands that run the same dashboard operations from a terminal.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/ekaya-inc/gamedash/pkg/logging"
)

// Context carries the global flags and output streams to every command.
type Context struct {
	ConfigPath string
	Debug      bool
	Version    string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// CLI is the root command.
type CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml" type:"path"`
	Debug  bool   `help:"Enable debug logging" env:"DEBUG"`

	Serve         ServeCmd         `cmd:"" default:"1" help:"Run the dashboard HTTP API"`
	Queries       QueriesCmd       `cmd:"" help:"List the analytical query catalogue"`
	Query         QueryCmd         `cmd:"" help:"Run one catalogue query"`
	Reviews       ReviewsCmd       `cmd:"" help:"Inspect and edit reviews"`
	Migrate       MigrateCmd       `cmd:"" help:"Apply or roll back the schema and seed data"`
	EncryptSecret EncryptSecretCmd `cmd:"" name:"encrypt-secret" help:"Encrypt a secret for DB_PASSWORD or BASTION_KEY_PASSPHRASE"`
	Version       VersionCmd       `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintf(ctx.Stdout, "gamedash %s\n", ctx.Version)
	return err
}

// Main parses args, runs the selected command and returns the process exit code.
func Main(version string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var root CLI
	parser, err := kong.New(&root,
		kong.Name("gamedash"),
		kong.Description("Game review dashboard over a tunnelled database."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		var perr *kong.ParseError
		if errors.As(err, &perr) {
			color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	appCtx := &Context{
		ConfigPath: root.Config,
		Debug:      root.Debug,
		Version:    version,
		Stdin:      stdin,
		Stdout:     stdout,
		Stderr:     stderr,
	}
	if err := kctx.Run(appCtx); err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %s\n", logging.SanitizeError(err))
		return 1
	}
	return 0
}

// Run is Main over the process arguments and standard streams.
func Run(version string) int {
	return Main(version, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
