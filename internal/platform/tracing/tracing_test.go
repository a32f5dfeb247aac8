package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutCollectorIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "funko-api")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
