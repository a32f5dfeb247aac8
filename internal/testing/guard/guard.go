// Package guard flips binaries into test mode when imported by tests, so they never dial real services.
package guard

import (
	"os"
	"sync"

	"github.com/funko-store/funko-api/internal/app"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FUNKO_TEST_MODE") == "" {
			_ = os.Setenv("FUNKO_TEST_MODE", "1")
		}
		app.RefreshTestMode()
	})
}
