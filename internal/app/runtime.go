package app

import (
	"os"
	"sync"
)

const testModeEnv = "FUNKO_TEST_MODE"

var testMode struct {
	sync.Mutex
	loaded bool
	on     bool
}

// InTestMode reports whether binaries should skip connecting to external services. The
// environment is read once; later changes need RefreshTestMode.
func InTestMode() bool {
	testMode.Lock()
	defer testMode.Unlock()
	if !testMode.loaded {
		testMode.on, testMode.loaded = os.Getenv(testModeEnv) == "1", true
	}
	return testMode.on
}

// RefreshTestMode re-reads FUNKO_TEST_MODE and returns the new value.
func RefreshTestMode() bool {
	testMode.Lock()
	defer testMode.Unlock()
	testMode.on, testMode.loaded = os.Getenv(testModeEnv) == "1", true
	return testMode.on
}
