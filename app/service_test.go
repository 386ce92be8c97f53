package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitops/darp/config"
)

const testInstance = `{
  "network": {
    "cost_per_hour": 20,
    "durations": {
      "depot": {"north": 120, "south": 120},
      "north": {"depot": 120, "south": 180},
      "south": {"depot": 120, "north": 180}
    }
  },
  "trips": [
    {"id": "t1", "orig": "depot", "dest": "north", "tcall": 0, "tmin": 0, "tmax": 300, "fare": 8},
    {"id": "t2", "orig": "north", "dest": "south", "tcall": 0, "tmin": 300, "tmax": 600, "fare": 12},
    {"id": "t3", "orig": "south", "dest": "depot", "tcall": 500, "tmin": 700, "tmax": 1000, "fare": 6}
  ],
  "vehicles": [
    {"id": "v1", "init_pos": "depot", "init_time": 0, "capacity": 4}
  ]
}`

func writeRunConfig(t *testing.T, algorithm string) string {
	t.Helper()
	dir := t.TempDir()
	instPath := filepath.Join(dir, "instance.json")
	require.NoError(t, os.WriteFile(instPath, []byte(testInstance), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	body := `dispatch:
  algorithm: "` + algorithm + `"
  solution_mode: "fully_online"
  objective: "total_customers"
metrics:
  sinks:
    - type: "nop"
sim:
  instance: "` + instPath + `"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func TestServiceReplaysInstance(t *testing.T) {
	for _, algorithm := range []string{"greedy", "mip_solver"} {
		t.Run(algorithm, func(t *testing.T) {
			cfg, err := config.Load(writeRunConfig(t, algorithm))
			require.NoError(t, err)

			svc, err := New(cfg)
			require.NoError(t, err)
			defer svc.Close()

			events := svc.Bus.Subscribe()
			require.NoError(t, svc.Run(context.Background()))

			// one event per decision epoch: releases at 0 and 500
			got := drain(events)
			require.Len(t, got, 2)
			require.Equal(t, 2, got[0].Served, "t1 and t2 chain on v1 at epoch 0")
			require.Equal(t, 1, got[1].Served, "t3 is assigned at epoch 500")
			require.Empty(t, got[0].Rejected)
			require.Empty(t, got[1].Rejected)

			// t3 is committed on the last epoch but the replay never
			// advances past it, so it stays assigned
			require.Equal(t, 2, svc.Sim.Served())
		})
	}
}

func TestServiceRejectsMissingInstance(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sim:\n  instance: \""+filepath.Join(dir, "nope.json")+"\"\n"), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	_, err = New(cfg)
	require.Error(t, err)
}

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
