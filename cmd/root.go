package cmd

import (
	"fmt"
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"

	"github.com/qnaplxdunpriv/qnaplxdunpriv/config"
	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/mutator"
	"github.com/qnaplxdunpriv/qnaplxdunpriv/internal/posixacl"
	"github.com/qnaplxdunpriv/qnaplxdunpriv/loggers/cli"
	"github.com/qnaplxdunpriv/qnaplxdunpriv/system"
)

const long = `Grants (or revokes) the UIDs of unprivileged LXD containers access to the
Container Station install and the container storage on a QNAP NAS by adding
named user entries to the POSIX ACLs of the required paths.`

// runError marks a failure that happened after the command line was accepted.
type runError struct {
	error
}

func (e runError) Unwrap() error {
	return e.error
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, error) {
	c, err := config.New()
	if err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:     "qnaplxdunpriv [flags] {set|unset} UID [UID ...]",
		Short:   "Manage the ACLs needed by unprivileged LXD containers on QNAP",
		Long:    long,
		Version: system.Version,
		Args: func(_ *cobra.Command, args []string) error {
			return c.ParseArgs(args)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Usage is only printed for command line errors.
			cmd.SilenceUsage = true
			configureLogging(stderr, c.Debug)
			if err := run(c, stdout); err != nil {
				return runError{err}
			}
			return nil
		},
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("{{.Version}}\n")

	f := root.Flags()
	f.BoolVar(&c.DryRun, "dry-run", c.DryRun, "print the updated ACLs instead of applying them")
	f.StringVar(&c.Station, "station", c.Station, "directory corresponding to the Container Station folder")
	f.StringVar(&c.Container, "container", c.Container, "directory corresponding to the Container shared folder")
	f.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")

	return root, nil
}

// run visits every path of the configured layout in order and stops at the
// first path that cannot be updated.
func run(c *config.Configuration, stdout io.Writer) error {
	var opts []mutator.Option
	if c.DryRun {
		opts = append(opts, mutator.WithDryRun(stdout))
	}
	m := mutator.New(posixacl.NewSystem(), opts...)

	apply := m.Set
	if c.Operation == config.OperationUnset {
		apply = m.Unset
	}

	log.WithFields(log.Fields{
		"operation": c.Operation,
		"uids":      c.UIDs,
		"dry_run":   c.DryRun,
		"station":   c.Station,
		"container": c.Container,
	}).Debug("updating acls")

	var n int
	for it := c.Layout().Paths(); it.Next(); n++ {
		if err := apply(it.Path(), c.UIDs); err != nil {
			return err
		}
	}
	log.WithField("paths", n).Info("completed")
	return nil
}

func configureLogging(w io.Writer, debug bool) {
	h := cli.New(w, isTerminal(w))
	h.Stacktrace = debug
	log.SetHandler(h)
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root, err := newRootCommand(stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return system.ExitFailure
	}
	root.SetArgs(args)

	err = root.Execute()
	if err == nil {
		return system.ExitSuccess
	}
	var re runError
	if errors.As(err, &re) {
		log.WithField("error", re.error).Error("failed to update acls")
		return system.ExitFailure
	}

	color := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !isTerminal(stderr),
		Reset:   true,
	}
	fmt.Fprintln(stderr, color.Color("[red][bold]Error:[reset]"), err.Error())
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	return system.ExitUsage
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}
