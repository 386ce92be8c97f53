package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/transitops/darp/app"
	"github.com/transitops/darp/config"
)

var epochAt float64

var epochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Solve a single decision epoch and print the committed plan",
	RunE:  runEpoch,
}

func init() {
	epochCmd.Flags().Float64Var(&epochAt, "at", 0, "epoch time in seconds")
	rootCmd.AddCommand(epochCmd)
}

func runEpoch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Manager.RunEpoch(ctx, epochAt)
	if err != nil {
		return err
	}

	type assignment struct {
		TripID    string `json:"trip_id"`
		VehicleID string `json:"vehicle_id"`
	}
	out := struct {
		Epoch       float64      `json:"epoch"`
		PlanVersion string       `json:"plan_version"`
		Objective   float64      `json:"objective"`
		Fallback    bool         `json:"fallback"`
		Assignments []assignment `json:"assignments"`
		Rejected    []string     `json:"rejected"`
	}{
		Epoch:       epochAt,
		PlanVersion: res.Plan.Version,
		Objective:   res.Objective,
		Fallback:    res.Fallback,
		Rejected:    res.Rejected,
	}
	for tid, vid := range res.Plan.Assignments() {
		out.Assignments = append(out.Assignments, assignment{TripID: tid, VehicleID: vid})
	}
	sort.Slice(out.Assignments, func(i, j int) bool { return out.Assignments[i].TripID < out.Assignments[j].TripID })

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
