package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/cwbudde/evotimetable/internal/config"
	"github.com/cwbudde/evotimetable/internal/ga"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/cwbudde/evotimetable/internal/timetable"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	problemPath  string
	initialPath  string
	partialPath  string
	runID        string
	seed         int64
	generations  int
	saveInterval int
	saveAt       []int
	saveBest     bool
	workers      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evolve a timetable for a problem",
	Long: `Runs the genetic algorithm on a problem file, prints the best timetable with
its fitness breakdown, and writes checkpoints and a per-generation trace.
The final generation is always checkpointed as gen_<n>. Interrupting the
run (Ctrl-C) stops at the next generation boundary and saves an
"interrupted" checkpoint instead.`,
	RunE: runEvolution,
}

func init() {
	runCmd.Flags().StringVar(&problemPath, "problem", "", "Problem file, YAML or JSON (required)")
	runCmd.Flags().StringVar(&initialPath, "initial", "", "Complete timetable to seed the population with")
	runCmd.Flags().StringVar(&partialPath, "partial", "", "Partial timetable to complete and seed the population with")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run ID used to name checkpoints (default: random)")
	runCmd.Flags().IntVar(&generations, "gens", 0, "Number of generations (overrides ga.num_generations)")
	addEvolutionFlags(runCmd)
	runCmd.MarkFlagsMutuallyExclusive("initial", "partial")

	runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

// addEvolutionFlags registers the flags shared by run and resume.
func addEvolutionFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = time based)")
	cmd.Flags().IntVar(&saveInterval, "save-interval", 0, "Checkpoint every N generations")
	cmd.Flags().IntSliceVar(&saveAt, "save-at", nil, "Checkpoint at these generations, e.g. 5,10")
	cmd.Flags().BoolVar(&saveBest, "save-best", false, "Checkpoint whenever best fitness improves")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel fitness workers (0 = all CPUs)")
}

// applyEvolutionFlags copies explicitly set shared flags over the loaded config.
func applyEvolutionFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		c.Evolution.Seed = seed
	}
	if flags.Changed("save-interval") {
		c.Evolution.SaveInterval = saveInterval
	}
	if flags.Changed("save-at") {
		c.Evolution.SaveAtSteps = saveAt
	}
	if flags.Changed("save-best") {
		c.Evolution.SaveBest = saveBest
	}
	if flags.Changed("workers") {
		c.Evolution.Workers = workers
	}
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed))
}

func runEvolution(cmd *cobra.Command, args []string) error {
	applyEvolutionFlags(cmd, cfg)
	if cmd.Flags().Changed("gens") {
		cfg.GA.NumGenerations = generations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	problem, err := config.LoadProblem(problemPath)
	if err != nil {
		return err
	}

	evolve := ga.EvolveOptions{SaveBest: cfg.Evolution.SaveBest}
	if initialPath != "" {
		schedule, err := config.LoadSchedule(initialPath)
		if err != nil {
			return err
		}
		initial := timetable.FromSchedule(problem.Days, problem.TimeSlots, schedule)
		if !timetable.IsValid(initial, problem.Subjects, problem.TimeSlots) {
			return &ga.ValidationError{Field: "initial", Reason: "timetable does not fit the problem"}
		}
		evolve.InitialSolution = initial
	}
	if partialPath != "" {
		if evolve.Partial, err = config.LoadSchedule(partialPath); err != nil {
			return err
		}
	}

	if runID == "" {
		runID = uuid.New().String()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	trace, err := store.NewTraceWriter(cfg.Store.DataDir, runID, false)
	if err != nil {
		return err
	}
	defer trace.Close()

	checkpointer := store.NewCheckpointer(st, runID, problem.Rules)
	opts := cfg.EngineOptions()
	opts.Checkpointer = checkpointer
	opts.Observer = trace

	engine, err := ga.NewEngine(cfg.GA, problem, newRNG(cfg.Evolution.Seed), opts)
	if err != nil {
		return err
	}

	slog.Info("Starting run",
		"run_id", runID,
		"problem", problemPath,
		"store", cfg.Store.Kind,
		"generations", cfg.GA.NumGenerations,
	)
	return evolveAndReport(ctx, engine, checkpointer, evolve)
}

// evolveAndReport runs the engine, saves an "interrupted" checkpoint if the
// context is cancelled or a gen_<n> checkpoint for the final generation
// otherwise, and prints the best timetable.
func evolveAndReport(ctx context.Context, engine *ga.Engine, checkpointer *store.Checkpointer, opts ga.EvolveOptions) error {
	start := time.Now()
	best, err := engine.Evolve(ctx, opts)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}

	if interrupted {
		if _, cerr := engine.Checkpoint("interrupted"); cerr != nil {
			slog.Error("Failed to save interrupted checkpoint", "error", cerr)
		}
	} else if final := fmt.Sprintf("gen_%d", engine.Generation()); !slices.Contains(checkpointer.Saved(), store.CheckpointID(checkpointer.RunID(), final)) {
		// Leave the final generation resumable.
		if _, cerr := engine.Checkpoint(final); cerr != nil {
			slog.Error("Failed to save final checkpoint", "error", cerr)
		}
	}
	if best == nil {
		return err
	}

	fmt.Printf("\nRun %s: generation %d (%s)\n\n", checkpointer.RunID(), engine.Generation(), time.Since(start).Round(time.Millisecond))
	if err := printTimetable(os.Stdout, best); err != nil {
		return err
	}
	fmt.Println()
	if err := printBreakdown(os.Stdout, engine.Model().Breakdown(best)); err != nil {
		return err
	}

	if saved := checkpointer.Saved(); len(saved) > 0 {
		fmt.Printf("\nCheckpoints written: %d (last: %s)\n", len(saved), saved[len(saved)-1])
	}
	if interrupted {
		fmt.Printf("Interrupted; resume with: evotimetable resume %s\n", store.CheckpointID(checkpointer.RunID(), "interrupted"))
	}
	return nil
}
