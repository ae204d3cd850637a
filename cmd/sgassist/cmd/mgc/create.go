package mgc

import (
	"fmt"
	"time"

	"sgassist/cmd/sgassist/utils"
	"sgassist/services/mgc"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(createCmd, resultsCmd, summaryCmd)
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create every queued giveaway that was not created yet.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g, q, err := signedIn(ctx)
		if err != nil {
			return err
		}
		form, err := loadForm(ctx, g.Client)
		if err != nil {
			return err
		}

		result, err := mgc.NewCreator(g.Client, q, form, terminal(), time.Now, g.Config.Mgc).CreateAll(ctx)
		for _, rejected := range result.Rejected {
			fmt.Println(rejected.Error())
		}
		if len(result.Created) > 0 {
			createdTable(result.Created).Render()
		}
		return cancelled(err)
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the giveaways as they will be reviewed before creating them.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g, q, err := signedIn(ctx)
		if err != nil {
			return err
		}
		form, err := loadForm(ctx, g.Client)
		if err != nil {
			return err
		}
		creator := mgc.NewCreator(g.Client, q, form, terminal(), time.Now, g.Config.Mgc)
		utils.SummaryTable(creator.Summary()).Render()
		return nil
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List the giveaways the last creation run made.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		created := q.Created()
		if len(created) == 0 {
			fmt.Println("No giveaways were created yet.")
			return nil
		}
		createdTable(created).Render()
		return nil
	},
}

func createdTable(created []mgc.CreatedGiveaway) table.Writer {
	t := utils.NewTable()
	t.AppendHeader(table.Row{"#", "Game", "Url"})
	for i, c := range created {
		t.AppendRow(table.Row{i + 1, c.Game, c.Url})
	}
	return t
}
