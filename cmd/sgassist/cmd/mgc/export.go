package mgc

import (
	"fmt"
	"os"

	"sgassist/cmd/sgassist/utils"
	"sgassist/services/mgc"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	exportReverse *bool
	exportOut     *string

	formatInputs mgc.FormatInputs
)

func init() {
	exportReverse = exportCmd.Flags().Bool("reverse", false, "Write keys before the game name.")
	exportOut = exportCmd.Flags().StringP("out", "o", "", "The file to write to instead of stdout.")

	flags := formatCmd.Flags()
	flags.StringVar(&formatInputs.PreviousPrefix, "previous-prefix", "", "Text before the previous link.")
	flags.StringVar(&formatInputs.Previous, "previous", "", "The previous link text.")
	flags.StringVar(&formatInputs.PreviousSuffix, "previous-suffix", "", "Text after the previous link.")
	flags.StringVar(&formatInputs.Separator, "separator", "", "Text between the previous and next links.")
	flags.StringVar(&formatInputs.NextPrefix, "next-prefix", "", "Text before the next link.")
	flags.StringVar(&formatInputs.Next, "next", "", "The next link text.")
	flags.StringVar(&formatInputs.NextSuffix, "next-suffix", "", "Text after the next link.")
	flags.StringVar(&formatInputs.Counter, "counter", "", "Text between the wagon number and the wagon count.")
	flags.StringVar(&formatInputs.Bump, "bump", "", "The discussion link text.")
	flags.StringVar(&formatInputs.Train, "train", "", "The first wagon link text used in the discussion.")
	flags.BoolVar(&formatInputs.Bare, "bare", false, "Leave out the arrows around the links.")

	RootCmd.AddCommand(exportCmd, formatCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the queued giveaways as lines 'import' reads back.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		out := mgc.Export(q.Entries(), *exportReverse)
		if *exportOut == "" {
			fmt.Print(out)
			return nil
		}
		return os.WriteFile(*exportOut, []byte(out), 0600)
	},
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Generate the description snippets a train is linked through.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formats, err := mgc.GenerateFormats(formatInputs)
		if err != nil {
			return err
		}
		t := utils.NewTable()
		t.AppendHeader(table.Row{"Format", "Code", "Preview"})
		t.AppendRow(table.Row{"Links", formats.Links.Code, formats.Links.Preview})
		t.AppendRow(table.Row{"Counter", formats.Counter.Code, formats.Counter.Preview})
		t.AppendRow(table.Row{"Bump", formats.Bump.Code, formats.Bump.Preview})
		t.AppendRow(table.Row{"Train", formats.Train.Code, formats.Train.Preview})
		t.Render()
		return nil
	},
}
