package reqid

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)
	require.Len(t, id, 36)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

func TestNewContext_DistinctIDs(t *testing.T) {
	_, a := NewContext(context.Background())
	_, b := NewContext(context.Background())
	require.NotEqual(t, a, b)
}

func TestWithID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		generate bool
	}{
		{name: "kept", id: "client-123"},
		{name: "empty", id: "", generate: true},
		{name: "oversized", id: strings.Repeat("x", 65), generate: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, id := WithID(context.Background(), tt.id)
			got, _ := FromContext(ctx)
			require.Equal(t, id, got)
			if tt.generate {
				require.Len(t, id, 36)
			} else {
				require.Equal(t, tt.id, id)
			}
		})
	}
}
