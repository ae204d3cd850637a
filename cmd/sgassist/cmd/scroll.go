package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"sgassist/cmd/sgassist/globals"
	"sgassist/cmd/sgassist/utils"
	"sgassist/services/endless"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrollSteps      *int
	scrollContinuous *bool
	scrollRefresh    *bool
	scrollRefreshAll *bool
	scrollOut        *string
	scrollHide       *[]string
	scrollGoTo       *int
)

func init() {
	scrollSteps = scrollCmd.Flags().Int("steps", 1, "How many pages to load one after another.")
	scrollContinuous = scrollCmd.Flags().Bool("continuous", false, "Load every remaining page.")
	scrollRefresh = scrollCmd.Flags().Bool("refresh", false, "Reload the page in view after loading.")
	scrollRefreshAll = scrollCmd.Flags().Bool("refresh-all", false, "Reload every loaded page after loading.")
	scrollOut = scrollCmd.Flags().String("out", "", "Write the merged listing as html to this file.")
	scrollHide = scrollCmd.Flags().StringSlice("hide", nil, "Hide these entries once loaded, 'all' hides every one that can be.")
	scrollGoTo = scrollCmd.Flags().Int("go-to", 0, "Show this page, printing its url when it was not loaded.")

	scrollCmd.AddCommand(pauseCmd, resumeCmd)
	rootCmd.AddCommand(scrollCmd)
}

var scrollCmd = &cobra.Command{
	Use:   "scroll <path> [--steps n | --continuous] [--refresh | --refresh-all] [--out listing.html]",
	Short: "Loads the following pages of a listing into a single document.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g := globals.Get(ctx)

		page, err := g.Client.Get(ctx, args[0])
		if err != nil {
			return err
		}

		loaded := utils.NewTable()
		loaded.AppendHeader(table.Row{"Page", "Rows"})
		engine := endless.New(g.Client, page, endless.StoreSettings{Store: g.Store}, g.Config.Endless, endless.Hooks{
			PageLoaded: func(page, rows int) {
				loaded.AppendRow(table.Row{page, rows})
			},
			NavigationChanged: func(page int, location string) {
				slog.Debug("page in view", "page", page, "location", location)
			},
		})
		err = engine.Start(ctx)
		if errors.Is(err, endless.ErrNoResults) {
			fmt.Println("The listing has no results.")
			return nil
		}
		if err != nil {
			return err
		}

		if *scrollContinuous {
			err = engine.Continuous(ctx)
		} else {
			for i := 0; i < *scrollSteps && err == nil; i++ {
				err = engine.Step(ctx)
			}
		}
		if err != nil && !errors.Is(err, endless.ErrEnded) {
			return err
		}

		switch {
		case *scrollRefreshAll:
			err = engine.RefreshAll(ctx)
		case *scrollRefresh:
			err = engine.Refresh(ctx)
		}
		if err != nil {
			return err
		}

		hide := *scrollHide
		if len(hide) == 1 && hide[0] == "all" {
			hide = engine.Removable()
		}
		for _, id := range hide {
			err = engine.RemoveEntry(ctx, id)
			if err != nil {
				slog.Warn("failed to hide entry", "id", id, "err", err)
				continue
			}
			fmt.Printf("Hid %s.\n", id)
		}

		if *scrollGoTo > 0 {
			shown, href := engine.GoToPage(*scrollGoTo)
			if !shown {
				fmt.Printf("Page %d was not loaded, it is at %s\n", *scrollGoTo, g.Client.Resolve(href))
			}
		}

		loaded.Render()
		state := engine.State()
		fmt.Printf("Next page: %d, ended: %v, location: %s\n", state.NextPage, state.Ended, engine.Location())

		if *scrollOut != "" {
			var html string
			engine.View(func(doc *goquery.Document) {
				html, err = goquery.OuterHtml(doc.Selection)
			})
			if err != nil {
				return err
			}
			return os.WriteFile(*scrollOut, []byte(html), 0600)
		}
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stops pages from loading on their own until resumed.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		return endless.StoreSettings{Store: g.Store}.SetPaused(cmd.Context(), true)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Lets pages load on their own again.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		return endless.StoreSettings{Store: g.Store}.SetPaused(cmd.Context(), false)
	},
}
