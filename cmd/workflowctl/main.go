// workflowctl validates, registers and exercises workflow and data flow
// definitions from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/config"
	"github.com/goliatone/go-workflow/datasync"
	"github.com/goliatone/go-workflow/engine"
	"github.com/goliatone/go-workflow/store"
)

type cli struct {
	Verbose bool `short:"v" help:"Enable debug logging."`

	Validate  validateCmd  `cmd:"" help:"Validate a definitions file without registering anything."`
	Run       runCmd       `cmd:"" help:"Register definitions and execute one workflow."`
	Sync      syncCmd      `cmd:"" help:"Register definitions and run one data flow sync."`
	Status    statusCmd    `cmd:"" help:"Register definitions and print integration status."`
	Analytics analyticsCmd `cmd:"" help:"Register definitions and print workflow analytics."`
}

type appContext struct {
	logger workflow.Logger
}

type validateCmd struct {
	File string `arg:"" type:"existingfile" help:"Definitions file (YAML or JSON)."`
}

func (c *validateCmd) Run(app *appContext) error {
	set, err := config.LoadDefinitions(c.File)
	if err != nil {
		return err
	}
	fmt.Printf("ok: %d workflows, %d data flows\n", len(set.Workflows), len(set.DataFlows))
	return nil
}

type runCmd struct {
	File     string `arg:"" type:"existingfile" help:"Definitions file (YAML or JSON)."`
	Workflow string `arg:"" help:"Workflow id to execute."`
	Data     string `short:"d" default:"{}" help:"Trigger data as a JSON object."`
}

func (c *runCmd) Run(app *appContext) error {
	var triggerData map[string]any
	if err := json.Unmarshal([]byte(c.Data), &triggerData); err != nil {
		return fmt.Errorf("parse trigger data: %w", err)
	}

	e, err := buildEngine(app, c.File)
	if err != nil {
		return err
	}

	result, err := e.ExecuteWorkflow(context.Background(), c.Workflow, triggerData)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type syncCmd struct {
	File string `arg:"" type:"existingfile" help:"Definitions file (YAML or JSON)."`
	Flow string `arg:"" help:"Data flow id to sync."`
}

func (c *syncCmd) Run(app *appContext) error {
	set, err := config.LoadDefinitions(c.File)
	if err != nil {
		return err
	}

	mem := store.NewMemory()
	ctx := context.Background()
	for i := range set.DataFlows {
		flow := set.DataFlows[i]
		if flow.Status == "" {
			flow.Status = workflow.FlowActive
		}
		if err := mem.DataFlows().Create(ctx, &flow); err != nil {
			return err
		}
	}

	// the standalone CLI has no system adapters wired; missing-adapter
	// errors from the sync are surfaced as-is
	s := datasync.New(mem.DataFlows(), datasync.WithLogger(app.logger))
	result, err := s.RunSync(ctx, c.Flow)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type statusCmd struct {
	File string `arg:"" type:"existingfile" help:"Definitions file (YAML or JSON)."`
}

func (c *statusCmd) Run(app *appContext) error {
	e, err := buildEngine(app, c.File)
	if err != nil {
		return err
	}
	status, err := e.IntegrationStatus(context.Background())
	if err != nil {
		return err
	}
	return printJSON(status)
}

type analyticsCmd struct {
	File string `arg:"" type:"existingfile" help:"Definitions file (YAML or JSON)."`
}

func (c *analyticsCmd) Run(app *appContext) error {
	e, err := buildEngine(app, c.File)
	if err != nil {
		return err
	}
	analytics, err := e.Analytics(context.Background())
	if err != nil {
		return err
	}
	return printJSON(analytics)
}

func buildEngine(app *appContext, file string) (*engine.Engine, error) {
	set, err := config.LoadDefinitions(file)
	if err != nil {
		return nil, err
	}
	e := engine.New(engine.WithLogger(app.logger))
	if _, _, err := config.Apply(context.Background(), e, set); err != nil {
		return nil, err
	}
	return e, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// glogAdapter bridges the structured logger into the engine's contract.
type glogAdapter struct {
	logger glog.Logger
}

func (l glogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogAdapter) WithContext(ctx context.Context) workflow.Logger {
	return glogAdapter{logger: l.logger.WithContext(ctx)}
}

func (l glogAdapter) WithFields(fields map[string]any) workflow.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}

func main() {
	var app cli
	ctx := kong.Parse(&app,
		kong.Name("workflowctl"),
		kong.Description("Cross-system workflow orchestration tooling."),
		kong.UsageOnError(),
	)

	level := "info"
	if app.Verbose {
		level = "debug"
	}
	logger := glogAdapter{logger: glog.NewLogger(
		glog.WithWriter(os.Stderr),
		glog.WithLevel(level),
	)}

	if err := ctx.Run(&appContext{logger: logger}); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
