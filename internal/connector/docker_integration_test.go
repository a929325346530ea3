//go:build integration

package connector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evalgo.org/playground/internal/event"
)

const testTimeout = 30 * time.Second

// TestDocker_NetworkLifecycle runs against the local Docker daemon:
//
//	go test -tags=integration ./internal/connector/...
func TestDocker_NetworkLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	d, err := NewDocker("", zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	require.NoError(t, d.Ping(ctx), "docker daemon must be reachable")

	envs, _ := d.Events(ctx)
	// the subscription attaches asynchronously
	time.Sleep(500 * time.Millisecond)

	name := fmt.Sprintf("pg-it-%d", time.Now().UnixNano()%1_000_000)
	id, err := d.CreateNetwork(ctx, NetworkSpec{Name: name, Labels: map[string]string{LabelNetwork: name}})
	require.NoError(t, err)
	removed := false
	defer func() {
		if !removed {
			_ = d.RemoveNetwork(context.Background(), id)
		}
	}()

	snap, err := d.ListResources(ctx)
	require.NoError(t, err)
	nets := snap["networks"].(map[string]interface{})
	require.Contains(t, nets, name)
	assert.Equal(t, event.ShortID(id), nets[name].(map[string]interface{})["id"])

	require.NoError(t, d.RemoveNetwork(ctx, id))
	removed = true

	var actions []string
	for len(actions) < 2 {
		select {
		case env, ok := <-envs:
			require.True(t, ok, "event stream closed early")
			if env.Kind == event.KindNetwork && env.ID == id {
				assert.Equal(t, event.OriginEngine, env.Origin)
				actions = append(actions, env.Action)
			}
		case <-ctx.Done():
			t.Fatalf("saw %v before timeout, want create and destroy", actions)
		}
	}
	assert.Equal(t, []string{"create", "destroy"}, actions)
}
