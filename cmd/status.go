package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/evotimetable/internal/server"
	"github.com/cwbudde/evotimetable/internal/timetable"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	statusBest bool
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job; --best also prints
its best timetable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	statusCmd.Flags().BoolVar(&statusBest, "best", false, "Print the job's best timetable")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}

	jobID := args[0]
	if err := getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s", serverURL, jobID), jobID); err != nil {
		return err
	}
	if statusBest {
		return getJobBest(fmt.Sprintf("%s/api/v1/jobs/%s/best", serverURL, jobID))
	}
	return nil
}

// getJSON fetches url and decodes a 200 response into v.
func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func listJobs(url string) error {
	var jobs []server.Job
	if err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATE\tGENERATION\tBEST FITNESS\tSTARTED")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%.2f\t%s\n",
			job.ID,
			job.State,
			job.Generation,
			targetGenerations(job),
			job.BestFitness,
			job.StartTime.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func getJobStatus(url, jobID string) error {
	var status struct {
		server.Job
		ElapsedSeconds float64 `json:"elapsed_seconds"`
	}
	if err := getJSON(url, &status); err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Println()

	fmt.Println("Problem:")
	fmt.Printf("  Subjects: %d\n", len(status.Problem.Subjects))
	fmt.Printf("  Days: %d\n", len(status.Problem.Days))
	fmt.Printf("  Time slots: %d\n", len(status.Problem.TimeSlots))
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Population: %d\n", status.Config.PopulationSize)
	fmt.Printf("  Generations: %d\n", targetGenerations(status.Job))
	fmt.Printf("  Mutation rate: %.3f -> %.3f\n", status.Config.InitialMutationRate, status.Config.FinalMutationRate)
	fmt.Printf("  Seed: %d\n", status.Seed)
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Generation: %d\n", status.Generation)
	fmt.Printf("  Best fitness: %.2f\n", status.BestFitness)
	fmt.Printf("  Mean fitness: %.2f\n", status.MeanFitness)
	fmt.Printf("  Avg diversity: %.3f\n", status.Diversity)
	elapsed := time.Duration(status.ElapsedSeconds * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if len(status.Checkpoints) > 0 {
		fmt.Printf("  Checkpoints: %d (last: %s)\n", len(status.Checkpoints), status.Checkpoints[len(status.Checkpoints)-1])
	}

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}
	return nil
}

func getJobBest(url string) error {
	var best struct {
		Fitness   float64            `json:"fitness"`
		Days      []string           `json:"days"`
		TimeSlots []string           `json:"time_slots"`
		Schedule  timetable.Schedule `json:"schedule"`
	}
	if err := getJSON(url, &best); err != nil {
		return err
	}

	fmt.Printf("\nBest timetable (fitness %.2f):\n\n", best.Fitness)
	return printTimetable(os.Stdout, timetable.FromSchedule(best.Days, best.TimeSlots, best.Schedule))
}

func targetGenerations(job server.Job) int {
	if job.MaxGens > 0 {
		return job.MaxGens
	}
	return job.Config.NumGenerations
}
