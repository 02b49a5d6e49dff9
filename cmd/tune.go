package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/evotimetable/internal/config"
	"github.com/cwbudde/evotimetable/internal/tune"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	tuneProblem   string
	tuneIters     int
	tunePop       int
	tuneSeed      int64
	tuneTrialGens int
	tuneTrialPop  int
	tuneTrials    int
	tuneOut       string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search GA hyper-parameters for a problem",
	Long: `Tunes initial/final mutation rate, diversity weight and diversity threshold
with the Mayfly optimizer. Each candidate is scored by the mean best fitness
of short seeded runs. The tuned config can be written as a YAML config file
for later runs.`,
	RunE: runTune,
}

func init() {
	defaults := tune.DefaultOptions()
	tuneCmd.Flags().StringVar(&tuneProblem, "problem", "", "Problem file, YAML or JSON (required)")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", defaults.Iterations, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", defaults.PopSize, "Optimizer population (min 20)")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", defaults.Seed, "Random seed")
	tuneCmd.Flags().IntVar(&tuneTrialGens, "trial-gens", defaults.Generations, "Generations per trial run")
	tuneCmd.Flags().IntVar(&tuneTrialPop, "trial-pop", 0, "Population per trial run (0 = ga.population_size)")
	tuneCmd.Flags().IntVar(&tuneTrials, "trials", defaults.Trials, "Seeded trial runs per candidate")
	tuneCmd.Flags().StringVar(&tuneOut, "out", "", "Write the tuned config to this YAML file")

	tuneCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	problem, err := config.LoadProblem(tuneProblem)
	if err != nil {
		return err
	}

	opts := tune.DefaultOptions()
	opts.Iterations = tuneIters
	opts.PopSize = tunePop
	opts.Seed = tuneSeed
	opts.Generations = tuneTrialGens
	opts.Population = tuneTrialPop
	opts.Trials = tuneTrials

	tuner, err := tune.New(cfg.GA, problem, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := tuner.Run(ctx)
	if err != nil {
		return err
	}

	// Keep the caller's run size; only the tuned parameters change.
	tuned := *cfg
	tuned.GA.InitialMutationRate = result.Config.InitialMutationRate
	tuned.GA.FinalMutationRate = result.Config.FinalMutationRate
	tuned.GA.DiversityWeight = result.Config.DiversityWeight
	tuned.GA.DiversityThreshold = result.Config.DiversityThreshold

	fmt.Printf("\nTuned parameters (trial fitness %.2f, %d candidates, %s):\n",
		result.Fitness, result.Evaluations, result.Elapsed.Round(time.Millisecond))
	fmt.Printf("  initial_mutation_rate: %.4f\n", tuned.GA.InitialMutationRate)
	fmt.Printf("  final_mutation_rate:   %.4f\n", tuned.GA.FinalMutationRate)
	fmt.Printf("  diversity_weight:      %.4f\n", tuned.GA.DiversityWeight)
	fmt.Printf("  diversity_threshold:   %.4f\n", tuned.GA.DiversityThreshold)

	if tuneOut == "" {
		return nil
	}
	data, err := yaml.Marshal(tuned)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(tuneOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("\nWrote %s\n", tuneOut)
	return nil
}
