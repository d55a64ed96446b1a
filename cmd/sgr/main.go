package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/internal/engine"
	"github.com/ldi/sgr/internal/mcp"
	"github.com/ldi/sgr/internal/scheduler"
	"github.com/ldi/sgr/internal/server"
	"github.com/ldi/sgr/internal/ui"
	"github.com/ldi/sgr/pkg/models"
)

var (
	dbPath       string
	seedPath     string
	snapshotPath string
	verbose      bool
	logger       *slog.Logger
)

func main() {
	flag.StringVar(&dbPath, "db-path", ".sgr/sgr.db", "Path to database file")
	flag.StringVar(&seedPath, "seed-path", ".sgr/seed.json", "Path to catalog seed file")
	flag.StringVar(&snapshotPath, "snapshot-path", ".sgr/snapshot.jsonl", "Path to snapshot file")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var command string
	var args []string

	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	var err error
	switch command {
	case "init":
		err = runInit(args)
	case "generate":
		err = runGenerate(args)
	case "steps":
		err = runSteps(args)
	case "assign-step":
		err = runAssignStep(args)
	case "reassign":
		err = runReassign(args)
	case "absences":
		err = runAbsences(args)
	case "risk":
		err = runRisk(args)
	case "list-tasks":
		err = runListTasks(args)
	case "summary":
		err = runSummary(args)
	case "status":
		err = runStatus(args)
	case "config":
		err = runConfig(args)
	case "serve":
		err = runServe(args)
	case "mcp":
		err = runMCP(args)
	case "watch":
		err = runWatch(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDB() (*db.DB, error) {
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(context.Background()); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func runInit(args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	sgrDir := filepath.Join(targetDir, ".sgr")
	if err := os.MkdirAll(sgrDir, 0755); err != nil {
		return fmt.Errorf("failed to create .sgr directory: %w", err)
	}
	fmt.Println("✓ Created .sgr/ directory")

	gitignorePath := filepath.Join(sgrDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("sgr.db*\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Println("✓ Created .sgr/.gitignore")

	finalDBPath := dbPath
	if dbPath == ".sgr/sgr.db" {
		finalDBPath = filepath.Join(sgrDir, "sgr.db")
	}
	finalSeedPath := seedPath
	if seedPath == ".sgr/seed.json" {
		finalSeedPath = filepath.Join(sgrDir, "seed.json")
	}

	database, err := db.Open(finalDBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("✓ Initialized database at %s\n", finalDBPath)

	if _, err := os.Stat(finalSeedPath); err == nil {
		if err := database.ImportSeed(ctx, finalSeedPath); err != nil {
			return fmt.Errorf("failed to import seed: %w", err)
		}
		fmt.Printf("✓ Imported seed from %s\n", finalSeedPath)
	}

	fmt.Println("✓ SGR initialized successfully")
	return nil
}

func runGenerate(args []string) error {
	genFlags := flag.NewFlagSet("generate", flag.ContinueOnError)
	period := genFlags.String("period", time.Now().Format("2006-01"), "Fiscal period (YYYY-MM)")
	taxpayer := genFlags.String("taxpayer", "", "Limit to one taxpayer ID")
	if err := genFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	generator := engine.NewGenerator(database, logger, engine.DefaultOptions())
	result, err := generator.Generate(context.Background(), *period, *taxpayer)
	if err != nil {
		return err
	}

	fmt.Printf("Created %d tasks for %s\n", result.TasksCreated, *period)
	printErrors(result.Errors)
	return nil
}

func runSteps(args []string) error {
	stepFlags := flag.NewFlagSet("steps", flag.ContinueOnError)
	taskID := stepFlags.String("task", "", "Task ID")
	if err := stepFlags.Parse(args); err != nil {
		return err
	}
	if *taskID == "" {
		return fmt.Errorf("missing -task")
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	steps, err := database.ListTaskSteps(context.Background(), *taskID)
	if err != nil {
		return err
	}

	fmt.Printf("%-4s %-35s %-6s %-5s %-9s %s\n", "SEQ", "TITLE", "WEIGHT", "TIER", "DONE", "ASSIGNEE")
	fmt.Println("--------------------------------------------------------------------------")
	for _, s := range steps {
		tier := "-"
		if s.Tier != nil {
			tier = string(*s.Tier)
		}
		done := " "
		if s.Completed {
			done = "✓"
		}
		fmt.Printf("%-4d %-35s %-6d %-5s %-9s %s\n", s.Seq, s.Title, s.WeightPct, tier, done, s.AssigneeName)
	}
	return nil
}

func runAssignStep(args []string) error {
	asFlags := flag.NewFlagSet("assign-step", flag.ContinueOnError)
	stepID := asFlags.String("step", "", "Step ID")
	teamID := asFlags.String("team", "", "Team ID")
	tier := asFlags.String("tier", "", "Tier (A|B|C)")
	if err := asFlags.Parse(args); err != nil {
		return err
	}
	if *stepID == "" || *teamID == "" || *tier == "" {
		return fmt.Errorf("missing -step, -team or -tier")
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	assigner := engine.NewAssigner(database, logger)
	result, err := assigner.AssignStepResponsible(context.Background(), *stepID, *teamID, models.Tier(*tier))
	if err != nil {
		return err
	}
	if result.Err != "" {
		return fmt.Errorf("%s", result.Err)
	}

	fmt.Printf("Step assigned to %s\n", result.AssignedUserID)
	return nil
}

func runReassign(args []string) error {
	reFlags := flag.NewFlagSet("reassign", flag.ContinueOnError)
	absent := reFlags.String("absent", "", "Absent user ID")
	substitute := reFlags.String("substitute", "", "Substitute user ID (defaults to the team lead)")
	if err := reFlags.Parse(args); err != nil {
		return err
	}
	if *absent == "" {
		return fmt.Errorf("missing -absent")
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	reassigner := engine.NewReassigner(database, logger)
	result, err := reassigner.Reassign(context.Background(), *absent, *substitute)
	if err != nil {
		return err
	}

	fmt.Printf("Reassigned %d records\n", result.Reassigned)
	for _, d := range result.Details {
		fmt.Printf("  %s %s: %s → %s\n", d.Kind, d.ID, d.Previous, d.NewOwner)
	}
	printErrors(result.Errors)
	return nil
}

func runAbsences(args []string) error {
	abFlags := flag.NewFlagSet("absences", flag.ContinueOnError)
	date := abFlags.String("date", time.Now().Format("2006-01-02"), "Date to sweep (YYYY-MM-DD)")
	if err := abFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	reassigner := engine.NewReassigner(database, logger)
	result, err := reassigner.ProcessActiveAbsences(context.Background(), *date)
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d absences, reassigned %d records\n", result.Processed, result.Reassigned)
	printErrors(result.Errors)
	return nil
}

func runRisk(args []string) error {
	riskFlags := flag.NewFlagSet("risk", flag.ContinueOnError)
	list := riskFlags.Bool("list", false, "List flagged tasks instead of sweeping")
	if err := riskFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	detector := engine.NewRiskDetector(database, logger, engine.DefaultOptions())
	ctx := context.Background()

	if *list {
		tasks, err := detector.AtRiskDetail(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%-14s %-20s %-10s %s\n", "RFC", "OBLIGATION", "PERIOD", "OFFICIAL DUE")
		fmt.Println("------------------------------------------------------------")
		for _, t := range tasks {
			fmt.Printf("%-14s %-20s %-10s %s\n", t.TaxpayerRFC, t.ObligationName, t.Period, t.OfficialDue)
		}
		return nil
	}

	result, err := detector.DetectRisk(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Flagged %d tasks, cleared %d\n", result.Flagged, result.Cleared)
	printErrors(result.Errors)
	return nil
}

func runListTasks(args []string) error {
	taskFlags := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	period := taskFlags.String("period", "", "Filter by period (YYYY-MM)")
	state := taskFlags.String("state", "", "Filter by state")
	assignee := taskFlags.String("assignee", "", "Filter by assignee ID")
	if err := taskFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	tasks, err := database.ListTasks(context.Background(), db.TaskFilter{
		Period:     *period,
		State:      models.TaskState(*state),
		AssigneeID: *assignee,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%-14s %-20s %-8s %-19s %-12s %s\n", "RFC", "OBLIGATION", "PERIOD", "STATE", "INTERNAL DUE", "AT RISK")
	fmt.Println("------------------------------------------------------------------------------")
	for _, t := range tasks {
		atRisk := ""
		if t.AtRisk {
			atRisk = "!"
		}
		fmt.Printf("%-14s %-20s %-8s %-19s %-12s %s\n",
			t.TaxpayerRFC, t.ObligationName, t.Period, t.State, t.InternalDue, atRisk)
	}
	return nil
}

func runSummary(args []string) error {
	sumFlags := flag.NewFlagSet("summary", flag.ContinueOnError)
	period := sumFlags.String("period", time.Now().Format("2006-01"), "Fiscal period (YYYY-MM)")
	if err := sumFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	generator := engine.NewGenerator(database, logger, engine.DefaultOptions())
	summary, err := generator.Summary(context.Background(), *period)
	if err != nil {
		return err
	}

	fmt.Printf("Period %s: %d tasks\n", summary.Period, summary.Total)
	fmt.Println("\nBy state:")
	for state, n := range summary.ByState {
		fmt.Printf("  %-20s %d\n", state, n)
	}
	fmt.Println("\nBy team:")
	for team, n := range summary.ByTeam {
		fmt.Printf("  %-20s %d\n", team, n)
	}
	return nil
}

func runStatus(args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	period := time.Now().Format("2006-01")

	summary, err := database.SummarizePeriod(ctx, period)
	if err != nil {
		return err
	}
	atRisk, err := database.AtRiskTasks(ctx)
	if err != nil {
		return err
	}
	cfg, _, err := database.GetAutoGenerateConfig(ctx)
	if err != nil {
		return err
	}

	fmt.Println("SGR Status")
	fmt.Println("==========")
	fmt.Printf("Period:         %s\n", period)
	fmt.Printf("Tasks:          %d\n", summary.Total)
	fmt.Printf("At risk:        %d\n", len(atRisk))
	fmt.Printf("Auto-generate:  enabled=%t day=%d last=%s\n", cfg.Enabled, cfg.DayOfMonth, cfg.LastPeriod)

	if summary.Total > 0 {
		fmt.Println("\nBy state:")
		for state, n := range summary.ByState {
			fmt.Printf("  %-20s %d\n", state, n)
		}
	}
	return nil
}

func runConfig(args []string) error {
	cfgFlags := flag.NewFlagSet("config", flag.ContinueOnError)
	enable := cfgFlags.Bool("enable", false, "Enable scheduled generation")
	disable := cfgFlags.Bool("disable", false, "Disable scheduled generation")
	day := cfgFlags.Int("day", 0, "Day of month the trigger fires (1-31)")
	if err := cfgFlags.Parse(args); err != nil {
		return err
	}
	if *enable && *disable {
		return fmt.Errorf("-enable and -disable are mutually exclusive")
	}
	if *day != 0 && (*day < 1 || *day > 31) {
		return fmt.Errorf("-day must be 1-31")
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	cfg, version, err := database.GetAutoGenerateConfig(ctx)
	if err != nil {
		return err
	}

	if !*enable && !*disable && *day == 0 {
		fmt.Printf("Auto-generate: enabled=%t day=%d last=%s\n", cfg.Enabled, cfg.DayOfMonth, cfg.LastPeriod)
		return nil
	}

	if *enable {
		cfg.Enabled = true
	}
	if *disable {
		cfg.Enabled = false
	}
	if *day != 0 {
		cfg.DayOfMonth = *day
	}
	if err := database.SaveAutoGenerateConfig(ctx, cfg, version); err != nil {
		return err
	}

	fmt.Printf("Auto-generate: enabled=%t day=%d\n", cfg.Enabled, cfg.DayOfMonth)
	return nil
}

func runServe(args []string) error {
	serveFlags := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := serveFlags.String("port", "8000", "Port to listen on")
	if err := serveFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()
	database.EnableAutoSnapshot(snapshotPath)

	srv := server.NewServer(database, logger, engine.DefaultOptions())
	return srv.Start(fmt.Sprintf(":%s", *port))
}

func runMCP(args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	s := mcp.NewServer(database, logger, engine.DefaultOptions())
	return mcp.Serve(s)
}

func runWatch(args []string) error {
	watchFlags := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := watchFlags.Duration("interval", time.Hour, "Polling interval")
	if err := watchFlags.Parse(args); err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	opts := engine.DefaultOptions()
	generator := engine.NewGenerator(database, logger, opts)
	trigger := engine.NewTrigger(database, logger, generator)
	reassigner := engine.NewReassigner(database, logger)
	detector := engine.NewRiskDetector(database, logger, opts)

	sched := scheduler.New(trigger, reassigner, detector, logger, *interval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("scheduler running", "interval", *interval)
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printErrors(errs []string) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
}
