package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/evotimetable/internal/config"
	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeGens    int
	resumeProblem string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <checkpoint-id>",
	Short: "Resume a run from a checkpoint",
	Long: `Restores the population, generation counter and config saved in a checkpoint
and keeps evolving. By default the run continues up to the checkpoint's
num_generations; --gens runs that many more generations instead. Passing the
problem file checks it against the checkpoint and restores its rule set.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeGens, "gens", 0, "Additional generations to run (0 = up to num_generations)")
	resumeCmd.Flags().StringVar(&resumeProblem, "problem", "", "Problem file to check compatibility against")
	addEvolutionFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	applyEvolutionFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	checkpointID := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	cp, err := st.LoadCheckpoint(checkpointID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var rules []fitness.RuleSpec
	if resumeProblem != "" {
		problem, err := config.LoadProblem(resumeProblem)
		if err != nil {
			return err
		}
		if err := cp.IsCompatible(problem); err != nil {
			return fmt.Errorf("checkpoint %s does not match %s: %w", checkpointID, resumeProblem, err)
		}
		rules = problem.Rules
	}

	end := cp.State.Config.NumGenerations
	if resumeGens > 0 {
		end = cp.State.Generation + resumeGens
	}
	if end <= cp.State.Generation {
		fmt.Printf("Checkpoint %s is already at generation %d (target %d); use --gens to continue.\n",
			checkpointID, cp.State.Generation, end)
		return nil
	}

	trace, err := store.NewTraceWriter(cfg.Store.DataDir, cp.RunID, true)
	if err != nil {
		return err
	}
	defer trace.Close()

	checkpointer := store.NewCheckpointer(st, cp.RunID, rules)
	opts := cfg.EngineOptions()
	opts.Checkpointer = checkpointer
	opts.Observer = trace

	engine, err := ga.NewEngineFromState(cp.State, rules, newRNG(cfg.Evolution.Seed), opts)
	if err != nil {
		return err
	}

	slog.Info("Resuming run",
		"checkpoint", checkpointID,
		"run_id", cp.RunID,
		"from_generation", cp.State.Generation,
		"to_generation", end,
	)
	return evolveAndReport(ctx, engine, checkpointer, ga.EvolveOptions{
		StartGeneration: cp.State.Generation,
		MaxGenerations:  end,
		SaveBest:        cfg.Evolution.SaveBest,
	})
}
