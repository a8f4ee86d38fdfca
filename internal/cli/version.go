package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/ir"
)

// Version is the release version, set at link time with
// -ldflags "-X github.com/roach88/audd/internal/cli.Version=...".
var Version = "dev"

// VersionInfo lists the versions a run depends on.
type VersionInfo struct {
	Version    string `json:"version"`
	Engine     string `json:"engine"`
	IR         string `json:"ir"`
	Comparator string `json:"comparator"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("audd %s (engine %s, ir %s, comparator %s)", v.Version, v.Engine, v.IR, v.Comparator)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd).Success(VersionInfo{
				Version:    Version,
				Engine:     ir.EngineVersion,
				IR:         ir.IRVersion,
				Comparator: ir.ComparatorVersion,
			})
		},
	}
}
