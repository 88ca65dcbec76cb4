package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,,broken, =empty,x-tenant=stakers")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "stakers",
	}, headers)
}

func TestInitDisabledIsNoop(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "stakingd", Traces: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.False(t, Config{Endpoint: "collector:4318"}.Enabled())
	require.True(t, Config{Endpoint: "collector:4318", Metrics: true}.Enabled())
}
