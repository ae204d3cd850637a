package mgc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sgassist/cmd/sgassist/globals"
	"sgassist/cmd/sgassist/utils"
	"sgassist/lib/scrapers/steamgifts/core"
	"sgassist/services/mgc"

	"github.com/spf13/cobra"
)

var yes *bool

var RootCmd = &cobra.Command{
	Use:   "mgc",
	Short: "The 'mgc' subcommand queues giveaways and creates them in bulk, optionally linked into a train.",
}

func init() {
	yes = RootCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to every confirmation.")
}

func terminal() *utils.Terminal {
	return utils.NewTerminal(*yes)
}

func loadQueue(ctx context.Context) (*mgc.Queue, error) {
	g := globals.Get(ctx)
	return mgc.LoadQueue(ctx, g.Store, g.Config.Mgc)
}

// signedIn loads the queue after making sure the client carries a
// working session, which everything that talks to the site needs.
func signedIn(ctx context.Context) (*globals.Value, *mgc.Queue, error) {
	g := globals.Get(ctx)
	err := g.Client.EnsureSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	q, err := loadQueue(ctx)
	if err != nil {
		return nil, nil, err
	}
	return g, q, nil
}

func loadForm(ctx context.Context, client *core.Client) (mgc.Form, error) {
	return mgc.LoadForm(ctx, client, time.Now)
}

// position turns a 1 based position as shown by 'list' into an index.
func position(q *mgc.Queue, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > q.Len() {
		return 0, fmt.Errorf("'%s' is not a position between 1 and %d", arg, q.Len())
	}
	return n - 1, nil
}
