package mgc

import (
	"fmt"
	"strings"

	"sgassist/cmd/sgassist/globals"
	"sgassist/services/mgc"

	"github.com/spf13/cobra"
)

var (
	attachTitle       *string
	attachDescription *string
)

func init() {
	attachTitle = attachNewCmd.Flags().String("title", "", "The discussion title.")
	attachDescription = attachNewCmd.Flags().String("description", "", "The discussion description, '[ESGST-T]...[/ESGST-T]' becomes a link to the first wagon.")
	attachNewCmd.MarkFlagRequired("title")

	attachCmd.AddCommand(attachExistingCmd, attachNewCmd, attachResumeCmd, attachDetachCmd)
	RootCmd.AddCommand(attachCmd)
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach a discussion the train's bump links point to.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		g := globals.Get(cmd.Context())
		step, value, err := mgc.NewAttacher(g.Client, q).Pending(cmd.Context())
		if err != nil {
			return err
		}
		if step > 0 {
			fmt.Printf("Attaching was interrupted at step %d (%s), run 'attach resume' to go on.\n", step, value)
		}
		if q.Discussion() == "" {
			fmt.Println("No discussion is attached.")
			return nil
		}
		fmt.Printf("Attached to /discussion/%s/\n", q.Discussion())
		return nil
	},
}

var attachExistingCmd = &cobra.Command{
	Use:   "existing <discussion url or code>",
	Short: "Attach a discussion that already exists.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, q, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		code, err := mgc.NewAttacher(g.Client, q).AttachExisting(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Attached to /discussion/%s/\n", code)
		return nil
	},
}

var attachNewCmd = &cobra.Command{
	Use:   "new --title <title> [--description <description>]",
	Short: "Create a closed discussion and attach it, it reopens once the train is created.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, q, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		desc := strings.ReplaceAll(*attachDescription, `\n`, "\n")
		code, err := mgc.NewAttacher(g.Client, q).AttachNew(cmd.Context(), *attachTitle, desc)
		if err != nil {
			return err
		}
		fmt.Printf("Created and attached /discussion/%s/\n", code)
		return nil
	},
}

var attachResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Go on with an interrupted attachment.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, q, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return mgc.NewAttacher(g.Client, q).Resume(cmd.Context())
	},
}

var attachDetachCmd = &cobra.Command{
	Use:   "detach",
	Short: "Stop linking the train to the attached discussion.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQueue(cmd.Context())
		if err != nil {
			return err
		}
		return q.DetachDiscussion(cmd.Context())
	},
}
