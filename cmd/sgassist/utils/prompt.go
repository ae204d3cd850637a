package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sgassist/lib/scrapers/steamgifts/games"
	"sgassist/services/mgc"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Terminal asks its questions on stdout and reads the answers from stdin.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	// Yes answers every confirmation without asking.
	Yes bool
}

func NewTerminal(yes bool) *Terminal {
	return &Terminal{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		Yes: yes,
	}
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		done <- result{line: strings.TrimSpace(line), err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err == io.EOF {
			return res.line, nil
		}
		return res.line, res.err
	}
}

func (t *Terminal) Confirm(ctx context.Context, message string) (bool, error) {
	if t.Yes {
		return true, nil
	}
	fmt.Fprintf(t.out, "%s [y/N] ", message)
	answer, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func (t *Terminal) Choose(ctx context.Context, title string, options []games.Game) (int, error) {
	fmt.Fprintln(t.out, title)
	tbl := NewTable()
	tbl.SetOutputMirror(t.out)
	tbl.AppendHeader(table.Row{"#", "Game", "Store"})
	for i, game := range options {
		store := ""
		if game.Steam.Valid() {
			store = game.Steam.StoreUrl()
		}
		tbl.AppendRow(table.Row{i + 1, game.Name, store})
	}
	tbl.Render()

	fmt.Fprint(t.out, "Pick a game (empty to cancel): ")
	answer, err := t.readLine(ctx)
	if err != nil || answer == "" {
		return -1, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(options) {
		return -1, nil
	}
	return n - 1, nil
}

// SummaryTable renders the giveaways about to be created.
func SummaryTable(rows []mgc.SummaryRow) table.Writer {
	tbl := NewTable()
	tbl.AppendHeader(table.Row{"#", "Game", "Type", "Start", "End", "Region", "Who can enter", "Level", "Description"})
	for _, row := range rows {
		game := row.Game
		if row.StoreUrl != "" {
			game = fmt.Sprintf("%s\n%s", row.Game, row.StoreUrl)
		}
		tbl.AppendRow(table.Row{
			row.No, game, row.Amount, row.StartTime, row.EndTime,
			row.Region, row.WhoCanEnter, row.Level, row.Description,
		})
	}
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 9, WidthMax: 40, Transformer: text.Transformer(func(v any) string {
			return strings.ReplaceAll(fmt.Sprint(v), "\n", " ")
		})},
	})
	return tbl
}

func (t *Terminal) Review(ctx context.Context, rows []mgc.SummaryRow) (bool, error) {
	tbl := SummaryTable(rows)
	tbl.SetOutputMirror(t.out)
	tbl.Render()
	return t.Confirm(ctx, "Are you sure you want to create these giveaways?")
}

func (t *Terminal) Countdown(ctx context.Context, message string, d time.Duration) error {
	fmt.Fprintln(t.out, message)
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		left := time.Until(deadline).Round(time.Second)
		if left <= 0 {
			fmt.Fprintln(t.out)
			return nil
		}
		fmt.Fprintf(t.out, "\r%s remaining ", left)
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
