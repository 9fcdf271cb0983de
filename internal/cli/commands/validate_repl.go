package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlfence/internal/service"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/spf13/cobra"
)

const replPrompt = "sqlfence> "

func runValidateREPL(cmd *cobra.Command, cc *CommandContext, svc *service.Service) error {
	var historyFile string
	if cc.Cfg.StatePath != "" && cc.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cc.Cfg.StatePath), "validate_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newGrammarCompleter(svc.Compiled()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "sqlfence validator (table: %s)\n", svc.Compiled().Schema().Qualified())
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(cmd, svc, line); quit {
				return nil
			}
			continue
		}

		if err := renderValidation(cc.Renderer, svc, line); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
}

// handleDotCommand runs a REPL command and reports whether to exit.
func handleDotCommand(cmd *cobra.Command, svc *service.Service, line string) bool {
	out := cmd.OutOrStdout()
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(out)
	case ".grammar":
		_, _ = fmt.Fprint(out, svc.Compiled().Text())
	case ".schema":
		_, _ = fmt.Fprintln(out, svc.Compiled().Schema().String())
	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")
	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", line)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help      Show this help message
  .grammar   Print the Lark grammar
  .schema    Show the queryable table and columns
  .clear     Clear the screen
  .quit      Exit

Each line is validated as one statement. Do not end it with a semicolon.
`
	_, _ = fmt.Fprintln(w, help)
}

// newGrammarCompleter completes keywords, the table and its columns.
func newGrammarCompleter(c *grammar.Compiled) *readline.PrefixCompleter {
	s := c.Schema()
	var words []readline.PrefixCompleterInterface
	for _, kw := range []string{"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT", "COUNT(", "AVG(", "SUM(", "MIN(", "MAX("} {
		words = append(words, readline.PcItem(kw))
	}
	words = append(words, readline.PcItem(s.Qualified()))
	for _, col := range s.Columns() {
		words = append(words, readline.PcItem(col))
	}
	for _, dot := range []string{".help", ".grammar", ".schema", ".clear", ".quit"} {
		words = append(words, readline.PcItem(dot))
	}
	return readline.NewPrefixCompleter(words...)
}
