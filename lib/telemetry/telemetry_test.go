package telemetry

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupFromEnvWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	// no telemetry.json5 anywhere above an empty temp dir, setup is a no-op
	require.NoError(t, SetupFromEnv(context.Background(), "test:telemetry"))
	require.NoError(t, Shutdown(context.Background()))
}

func TestTruncate(t *testing.T) {
	short := "hello"
	require.Equal(t, short, truncate(short))

	long := make([]byte, maxBodyAttribute+10)
	for i := range long {
		long[i] = 'a'
	}
	out := truncate(string(long))
	require.Len(t, out, maxBodyAttribute+3)
}

func TestRequestBodyAttribute(t *testing.T) {
	req, err := http.NewRequest("GET", "http://example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "", requestBodyAttribute(req).Value.AsString())

	// resty sets GetBody on requests without a body too
	req.GetBody = func() (io.ReadCloser, error) { return nil, nil }
	require.Equal(t, "", requestBodyAttribute(req).Value.AsString())

	req, err = http.NewRequest("POST", "http://example.com", strings.NewReader("a=1"))
	require.NoError(t, err)
	require.Equal(t, "a=1", requestBodyAttribute(req).Value.AsString())
}
