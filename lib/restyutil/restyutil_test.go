package restyutil

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestInstrumentClientWritesMessages(t *testing.T) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "secret"})
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "dumps")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	InstrumentClient(client, out)

	_, err = client.R().SetFormData(map[string]string{"do": "autocomplete_giveaway_game"}).Post(srv.URL + "/ajax.php")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	text := string(contents)
	require.True(t, strings.HasPrefix(text, "---- REQUEST ----"))
	require.Contains(t, text, "do=autocomplete_giveaway_game")
	require.Contains(t, text, "<html>ok</html>")
	require.NotContains(t, text, "secret")
}
