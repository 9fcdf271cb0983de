package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/sqlfence/internal/cli/config"
	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/leapstack-labs/sqlfence/internal/generate"
	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/spf13/cobra"
)

// ErrDoctorFailed is returned when at least one check reports an error.
var ErrDoctorFailed = errors.New("health check failed")

// Check statuses.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks []HealthCheck `json:"checks"`
	Errors int           `json:"errors"`
	Warns  int           `json:"warnings"`
}

// HealthCheck is the result of one check.
type HealthCheck struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, grammar, database and generator",
		Long: `Check that a sqlfence deployment is ready to serve queries:
the schema compiles to a grammar, the target database answers the health
query, the generator is configured and the history database opens.

Missing optional parts are reported as warnings. The command exits non-zero
when any check fails.`,
		Example: `  sqlfence doctor
  sqlfence doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	out := diagnose(cmd.Context(), cc)

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if out.Errors > 0 {
		return fmt.Errorf("%w: %d of %d checks", ErrDoctorFailed, out.Errors, len(out.Checks))
	}
	return nil
}

func diagnose(ctx context.Context, cc *CommandContext) *DoctorOutput {
	out := &DoctorOutput{}
	add := func(group, name, status, detail string) {
		out.Checks = append(out.Checks, HealthCheck{Group: group, Name: name, Status: status, Detail: detail})
		switch status {
		case checkError:
			out.Errors++
		case checkWarn:
			out.Warns++
		}
	}
	cfg := cc.Cfg

	if used := config.GetConfigFileUsed(); used != "" {
		add("config", "Config file", checkPass, used)
	} else {
		add("config", "Config file", checkWarn, "no "+config.ConfigFileName+" found, using defaults")
	}

	compiled, err := cc.Compile()
	if err != nil {
		add("grammar", "Schema compiles", checkError, err.Error())
	} else {
		add("grammar", "Schema compiles", checkPass, fmt.Sprintf("%s: %d rules, %d terminals, %d parser states",
			compiled.Schema().Qualified(), len(compiled.Rules()), len(compiled.Terminals()), compiled.States()))
	}

	switch err := cfg.Generator.Validate(); {
	case err == nil:
		model := cfg.Generator.Model
		if model == "" {
			model = generate.DefaultModel
		}
		add("generator", "Generator configured", checkPass, "model "+model)
	case errors.Is(err, generate.ErrNotConfigured):
		add("generator", "Generator configured", checkWarn, "set generator.api_key or OPENAI_API_KEY")
	default:
		add("generator", "Generator configured", checkError, err.Error())
	}

	switch {
	case !cfg.HasTarget():
		add("database", "Target reachable", checkWarn, "no target configured")
	case compiled == nil:
		add("database", "Target reachable", checkError, "skipped: schema does not compile")
	default:
		status, detail := checkDatabase(ctx, cc, compiled)
		add("database", "Target reachable", status, detail)
	}

	if cfg.StatePath == "" {
		add("history", "State database", checkWarn, "history disabled")
	} else if store, err := openHistory(cfg.StatePath, cc.Logger); err != nil {
		add("history", "State database", checkError, err.Error())
	} else {
		version, _ := store.GetMigrationVersion()
		_ = store.Close()
		add("history", "State database", checkPass, fmt.Sprintf("%s (schema version %d)", cfg.StatePath, version))
	}

	return out
}

func checkDatabase(ctx context.Context, cc *CommandContext, compiled *grammar.Compiled) (string, string) {
	target, err := adapter.OpenTarget(ctx, *cc.Cfg.Target, compiled, cc.Cfg.Limits, cc.Logger)
	if err != nil {
		return checkError, err.Error()
	}
	defer func() { _ = target.Close() }()

	h := target.Health(ctx)
	if !h.OK {
		return checkError, h.Error
	}
	return checkPass, fmt.Sprintf("%s %s: %d rows in %s", h.Dialect, h.Table, h.RowCount, h.Latency.Round(time.Millisecond))
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("sqlfence Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	for _, check := range out.Checks {
		icon := styles.Success.Render("✓")
		switch check.Status {
		case checkWarn:
			icon = styles.Warning.Render("!")
		case checkError:
			icon = styles.Error.Render("✗")
		}
		r.Printf("   %s %s: %s\n", icon, output.Title(check.Group), check.Name)
		if check.Detail != "" {
			r.Println(styles.Muted.Render("       " + check.Detail))
		}
	}

	r.Println("")
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   %d checks, %d warnings, %d errors\n", len(out.Checks), out.Warns, out.Errors)
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# sqlfence Health Report")
	r.Println("")

	for _, check := range out.Checks {
		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), output.Title(check.Group), check.Name)
		if check.Detail != "" {
			r.Printf(" (%s)", check.Detail)
		}
		r.Println("")
	}
	r.Println("")
	r.Printf("%d checks, %d warnings, %d errors\n", len(out.Checks), out.Warns, out.Errors)
}
