package mgc

import (
	"fmt"
	"io"
	"os"

	"sgassist/services/mgc"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Queue one giveaway per line of a file, or of stdin when no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			text []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			text, err = io.ReadAll(os.Stdin)
		} else {
			text, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		return importText(cmd, string(text))
	},
}

func importText(cmd *cobra.Command, text string) error {
	ctx := cmd.Context()
	g, q, err := signedIn(ctx)
	if err != nil {
		return err
	}
	form, err := loadForm(ctx, g.Client)
	if err != nil {
		return err
	}

	result, err := mgc.NewImporter(g.Client, q, form, terminal(), g.Config.Mgc).Import(ctx, text)
	for _, e := range result.Added {
		fmt.Printf("Queued %s.\n", e.Values.GameName)
	}
	if err != nil && len(result.Remaining) > 0 {
		fmt.Fprintln(os.Stderr, "These lines were not imported:")
		for _, line := range result.Remaining {
			fmt.Fprintln(os.Stderr, line)
		}
	}
	return err
}
