package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumen-ai/conductor/internal/config"
	"github.com/lumen-ai/conductor/internal/coordinator"
	"github.com/lumen-ai/conductor/internal/security"
)

// timePrecision rounds durations for display.
const timePrecision = time.Millisecond

var (
	runPlan    string
	runHints   []string
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a request through the orchestration pipeline",
	Long: `Run a natural-language request through planning, validation, and
execution.

The planner proposes a skill pipeline for the query, the validation
engine checks it, and the coordinator executes it. Without API
credentials the static default pipeline is used.

Use --plan to bypass the planner with an explicit comma-separated
pipeline; it still goes through validation:

  conductor run --plan retrieve,respond "what is raft consensus?"

Use --hint to seed the execution context with input data:

  conductor run --hint expression="2*(3+4)" --plan math-eval,respond "compute this"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringVar(&runPlan, "plan", "", "Comma-separated skill pipeline, bypassing the planner")
	runCmd.Flags().StringArrayVar(&runHints, "hint", nil, "Seed context data as key=value (repeatable)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print skill-level events while running")
}

func runRequest(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runRequest: %v", r)
		}
	}()

	query := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pipe, err := createPipeline(cfg)
	if err != nil {
		return err
	}

	var logger *coordinator.DebugLogger
	if cfg.Coordinator.DebugLogPath != "" {
		logger, err = coordinator.NewDebugLogger(cfg.Coordinator.DebugLogPath)
		if err != nil {
			fmt.Printf("Warning: debug log unavailable: %v\n", err)
		} else {
			defer logger.Close()
		}
	}

	var stopWatch func()
	if cfg.Security.PolicyPath != "" {
		stopWatch, err = security.WatchPolicyFile(pipe.Security, cfg.Security.PolicyPath, func(werr error) {
			fmt.Printf("Warning: policy reload failed: %v\n", werr)
		})
		if err != nil {
			fmt.Printf("Warning: policy watch unavailable: %v\n", err)
		} else {
			defer stopWatch()
		}
	}

	pool := coordinator.NewPool(coordinator.PoolConfig{
		Registry:     pipe.Registry,
		Validator:    pipe.Validator,
		Planner:      pipe.Planner,
		SecurityMgr:  pipe.Security,
		Logger:       logger,
		MaxParallel:  cfg.Coordinator.MaxParallel,
		SkillTimeout: cfg.Coordinator.DefaultSkillTimeout,
	})
	defer pool.Stop()

	hints, err := parseHints(runHints)
	if err != nil {
		return err
	}

	taskID, err := pool.SubmitPlan(query, hints, splitPlan(runPlan))
	if err != nil {
		return fmt.Errorf("submit request: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Printf("Task %s: %s\n\n", taskID, query)

	for {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, cancelling...")
			pool.Cancel(taskID)
		case ev := <-pool.Events():
			printEvent(ev)
		case report := <-pool.Reports():
			printReport(os.Stdout, report)
			if !report.Success {
				return fmt.Errorf("request failed")
			}
			return nil
		}
	}
}

// parseHints converts key=value flags into context seed data.
func parseHints(pairs []string) (map[string]any, error) {
	hints := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid hint %q: expected key=value", pair)
		}
		hints[key] = value
	}
	return hints, nil
}

func splitPlan(s string) []string {
	var plan []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			plan = append(plan, name)
		}
	}
	return plan
}

func printEvent(ev coordinator.Event) {
	switch ev.Type {
	case coordinator.EventSkillStarted:
		if runVerbose {
			fmt.Printf("  %s %s\n", color.CyanString("→"), ev.Skill)
		}
	case coordinator.EventSkillCompleted:
		fmt.Printf("  %s %s (%s)\n", color.GreenString("✓"), ev.Skill, ev.Duration.Round(timePrecision))
	case coordinator.EventSkillFailed:
		fmt.Printf("  %s %s: %v\n", color.RedString("✗"), ev.Skill, ev.Error)
	case coordinator.EventSkillSkipped:
		fmt.Printf("  %s %s skipped: %s\n", color.YellowString("-"), ev.Skill, ev.Message)
	case coordinator.EventFallback:
		fmt.Printf("  %s fallback: %s\n", color.YellowString("⚠"), ev.Message)
	case coordinator.EventPlanValidated:
		if runVerbose {
			fmt.Printf("  %s plan: %s\n", color.CyanString("→"), ev.Message)
		}
	}
}

func printReport(out io.Writer, report *coordinator.Report) {
	fmt.Fprintln(out)
	if report.Success {
		fmt.Fprintf(out, "%s Completed in %s\n", color.GreenString("✓"), report.TotalDuration.Round(timePrecision))
	} else {
		fmt.Fprintf(out, "%s Failed after %s\n", color.RedString("✗"), report.TotalDuration.Round(timePrecision))
	}

	if report.Planning != nil {
		source := "planner"
		if report.Planning.CacheHit {
			source = "cache"
		}
		if report.Planning.Reasoning == "fallback" {
			source = "fallback"
		}
		fmt.Fprintf(out, "  Plan (%s, confidence %.2f): %s\n",
			source, report.Planning.Confidence, strings.Join(report.Planning.Plan, " → "))
	}
	fmt.Fprintf(out, "  Executed: %s\n", strings.Join(report.ExecutedSkills, ", "))

	for _, w := range report.Context.Warnings() {
		fmt.Fprintf(out, "  %s %s: %s\n", color.YellowString("⚠"), w.Code, w.Message)
	}

	response, _ := report.Context.FinalResponse()
	fmt.Fprintf(out, "\n%s\n", response)
	fmt.Fprintf(out, "\n(confidence %.2f)\n", report.Context.Confidence())
}
