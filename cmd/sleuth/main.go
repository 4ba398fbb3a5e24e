// Command sleuth checks whether a text was copied from the web.
//
// Usage:
//
//	sleuth run     [-config file] [-thread id] (-text s | -file path) [-json]
//	sleuth stream  [-config file] [-thread id] (-text s | -file path)
//	sleuth resume  [-config file] -thread id [-json]
//	sleuth inspect [-config file] -thread id [-history]
//	sleuth graph
//
// Settings come from the optional HCL file, a .env file and the environment;
// see internal/config.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/leofalp/sleuth/internal/investigation"
	"github.com/leofalp/sleuth/patterns/graph"
)

const usage = `Usage: sleuth <command> [flags]

Commands:
  run      investigate a text and print the final report
  stream   investigate a text and print engine events as they happen
  resume   continue an interrupted investigation
  inspect  print the recorded state of an investigation
  graph    print the investigation graphs as Mermaid diagrams

Run "sleuth <command> -h" for the flags of a command.
`

// errUsage is returned when the command line cannot be understood.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath string
	threadID   string
	text       string
	file       string
	asJSON     bool
	history    bool
}

// run parses args and executes one command. It is separate from main so
// that tests can drive it.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	command, rest := args[0], args[1:]
	if command == "-h" || command == "--help" || command == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}

	flags := flag.NewFlagSet("sleuth "+command, flag.ContinueOnError)
	flags.SetOutput(stderr)
	opts := &options{}
	flags.StringVar(&opts.configPath, "config", "", "HCL configuration file")
	flags.StringVar(&opts.threadID, "thread", "", "checkpoint thread id")

	switch command {
	case "run", "stream":
		flags.StringVar(&opts.text, "text", "", "text to investigate")
		flags.StringVar(&opts.file, "file", "", "file holding the text to investigate, - for stdin")
		flags.BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	case "resume":
		flags.BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	case "inspect":
		flags.BoolVar(&opts.history, "history", false, "list every checkpoint of the thread")
	case "graph":
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	if err := flags.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if command == "graph" {
		return printGraph(stdout)
	}

	switch command {
	case "run", "stream":
		if opts.threadID == "" {
			opts.threadID = uuid.NewString()
		}
	default:
		if opts.threadID == "" {
			return fmt.Errorf("%w: %s needs -thread", errUsage, command)
		}
	}

	var sourceText string
	if command == "run" || command == "stream" {
		text, err := readSourceText(opts, stdin)
		if err != nil {
			return err
		}
		sourceText = text
	}

	app, err := setup(ctx, opts.configPath, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	switch command {
	case "run":
		report, err := app.investigator.Run(ctx, sourceText, opts.threadID)
		if err != nil {
			return fmt.Errorf("investigation %s: %w", opts.threadID, err)
		}
		return printReport(stdout, report, opts.asJSON)
	case "stream":
		return streamEvents(ctx, app.investigator, sourceText, opts.threadID, stdout)
	case "resume":
		report, err := app.investigator.Resume(ctx, opts.threadID)
		if err != nil {
			return fmt.Errorf("resume %s: %w", opts.threadID, err)
		}
		return printReport(stdout, report, opts.asJSON)
	default:
		return inspect(ctx, app.investigator, opts, stdout)
	}
}

func readSourceText(opts *options, stdin io.Reader) (string, error) {
	switch {
	case opts.text != "" && opts.file != "":
		return "", fmt.Errorf("%w: -text and -file are exclusive", errUsage)
	case opts.text != "":
		return opts.text, nil
	case opts.file == "-":
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(content), nil
	case opts.file != "":
		content, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("read source text: %w", err)
		}
		return string(content), nil
	}
	return "", fmt.Errorf("%w: one of -text or -file is required", errUsage)
}

func printGraph(stdout io.Writer) error {
	// Graph structure does not depend on the collaborators.
	investigator, err := investigation.New(nopCompletion{}, nopSearch{})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(stdout, investigator.Mermaid())
	return err
}

func printReport(stdout io.Writer, report *investigation.Report, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	if !report.Complete() {
		_, err := fmt.Fprintf(stdout, "thread %s: no report (%d sentences, %d findings)\n", report.ThreadID, len(report.Queries), len(report.Findings))
		return err
	}
	_, err := fmt.Fprintf(stdout, "thread %s%s\n", report.ThreadID, report.FinalReport)
	return err
}

func streamEvents(ctx context.Context, investigator *investigation.Investigator, sourceText, threadID string, stdout io.Writer) error {
	for event, err := range investigator.Stream(ctx, sourceText, threadID) {
		if err != nil {
			return fmt.Errorf("investigation %s: %w", threadID, err)
		}
		switch event.Type {
		case graph.EventStepStart:
			fmt.Fprintf(stdout, "step %d: %s\n", event.Step, strings.Join(event.Stages, ", "))
		case graph.EventStageComplete:
			if event.Branch > 0 {
				fmt.Fprintf(stdout, "  done %s #%d\n", event.Stage, event.Branch)
			} else {
				fmt.Fprintf(stdout, "  done %s\n", event.Stage)
			}
		case graph.EventDone:
			fmt.Fprintf(stdout, "thread %s finished\n", threadID)
			if event.State == nil {
				continue
			}
			if finalReport, _ := event.State.Get(investigation.FieldFinalReport); finalReport != nil {
				fmt.Fprintln(stdout, finalReport)
			}
		}
	}
	return nil
}

func inspect(ctx context.Context, investigator *investigation.Investigator, opts *options, stdout io.Writer) error {
	if opts.history {
		history, err := investigator.History(ctx, opts.threadID)
		if err != nil {
			return err
		}
		for _, entry := range history {
			fmt.Fprintf(stdout, "%d\tstep=%d\tstage=%s\tnext=%d\tdone=%t\t%s\n",
				entry.Seq, entry.Step, entry.Stage, len(entry.Next), entry.Done, entry.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	report, err := investigator.State(ctx, opts.threadID)
	if err != nil {
		return err
	}
	return printReport(stdout, report, true)
}
