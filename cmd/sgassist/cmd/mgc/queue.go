package mgc

import (
	"errors"
	"fmt"
	"strings"

	"sgassist/cmd/sgassist/utils"
	"sgassist/services/mgc"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	listDetails *bool

	editDescription *string
	editLevel       *int
	editStart       *string
	editEnd         *string
	editCopies      *int
)

func init() {
	listDetails = listCmd.Flags().Bool("details", false, "Print every field of every queued giveaway.")

	editDescription = editCmd.Flags().String("description", "", "The new description.")
	editLevel = editCmd.Flags().Int("level", 0, "The new minimum level.")
	editStart = editCmd.Flags().String("start", "", "The new start time, as the site formats it.")
	editEnd = editCmd.Flags().String("end", "", "The new end time, as the site formats it.")
	editCopies = editCmd.Flags().Int("copies", 0, "The new amount of copies of a gift.")

	RootCmd.AddCommand(addCmd, editCmd, listCmd, reorderCmd, removeCmd, emptyCmd, shuffleCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <line>...",
	Short: "Queue a giveaway written the way 'import' reads it, e.g. 'Portal (2 Copies) [level=\"3\"]'.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importText(cmd, strings.Join(args, " "))
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <position>",
	Short: "Change fields of a queued giveaway.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		q, err := loadQueue(ctx)
		if err != nil {
			return err
		}
		i, err := position(q, args[0])
		if err != nil {
			return err
		}
		entry := q.Entries()[i]
		v := entry.Values

		flags := cmd.Flags()
		if flags.Changed("description") {
			v.Description = strings.ReplaceAll(*editDescription, `\n`, "\n")
		}
		if flags.Changed("level") {
			v.Level = *editLevel
		}
		if flags.Changed("start") {
			v.StartTime = *editStart
		}
		if flags.Changed("end") {
			v.EndTime = *editEnd
		}
		if flags.Changed("copies") {
			v.Copies = *editCopies
		}

		entry, err = q.AddOrEdit(ctx, v, entry.Id)
		if err != nil {
			return err
		}
		fmt.Println(entry.Details())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the queued giveaways.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		if q.Len() == 0 {
			fmt.Println("The queue is empty.")
			return nil
		}
		if *listDetails {
			for i, e := range q.Entries() {
				fmt.Printf("#%d\n%s\n\n", i+1, e.Details())
			}
			return nil
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"#", "Game", "Type", "Start", "End", "Status"})
		for i, e := range q.Entries() {
			amount := fmt.Sprintf("%d copies", e.Values.Copies)
			if e.Values.GameType == mgc.Key {
				amount = fmt.Sprintf("%d keys", len(e.Values.Keys))
			}
			status := string(e.Status)
			if status == "" {
				status = "pending"
			}
			t.AppendRow(table.Row{i + 1, e.Values.GameName, amount, e.Values.StartTime, e.Values.EndTime, status})
		}
		t.Render()
		return nil
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <from position> <to position>",
	Short: "Move a queued giveaway to another position.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		from, err := position(q, args[0])
		if err != nil {
			return err
		}
		to, err := position(q, args[1])
		if err != nil {
			return err
		}
		return q.Reorder(cmd.Context(), from, to)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <position>",
	Short: "Remove a queued giveaway.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		i, err := position(q, args[0])
		if err != nil {
			return err
		}
		return cancelled(q.Remove(cmd.Context(), terminal(), q.Entries()[i].Id))
	},
}

var emptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Remove every queued giveaway along with the results of the last run.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		return cancelled(q.Empty(cmd.Context(), terminal()))
	},
}

var shuffleCmd = &cobra.Command{
	Use:   "shuffle",
	Short: "Put the queued giveaways in a random order.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		return q.Shuffle(cmd.Context())
	},
}

// cancelled swallows the error of a question answered with no.
func cancelled(err error) error {
	if errors.Is(err, mgc.ErrCancelled) {
		fmt.Println("Nothing changed.")
		return nil
	}
	return err
}
