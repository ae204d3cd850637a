package testutil

import (
	"fmt"
	"testing"

	"sgassist/lib/kvstore"
	"sgassist/lib/telemetry"

	random "github.com/mazen160/go-random"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	Store kvstore.Store
	Site  *Site
}

// SetupService installs test telemetry and opens a fresh kv store and fake
// site for a single test.
func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	cleanup := telemetry.SetupForTesting(fmt.Sprintf("test:%s", params.Name))

	dbpath := params.DbPath
	if dbpath == "" {
		dbpath = ":memory:"
	}
	store, err := kvstore.Open(kvstore.Config{File: dbpath})
	if err != nil {
		t.Fatal(err)
	}

	site := NewSite(t)
	return ServiceResult{
			Store: store,
			Site:  site,
		}, func() {
			site.Close()
			store.Close()
			cleanup()
		}
}

func RandomString(t testing.TB, length int) string {
	value, err := random.String(length)
	if err != nil {
		t.Fatal(err)
	}
	return value
}
