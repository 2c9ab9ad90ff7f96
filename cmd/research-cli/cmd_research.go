package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/research"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

var (
	noLocal     bool
	noWikipedia bool
	noArxiv     bool
	maxWiki     int
	maxArxiv    int
	asJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <topic>",
	Short: "Research one topic and print the report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Ask topics interactively until 'exit'",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func init() {
	for _, cmd := range []*cobra.Command{askCmd, replCmd} {
		cmd.Flags().BoolVar(&noLocal, "no-local", false, "skip the local document index")
		cmd.Flags().BoolVar(&noWikipedia, "no-wikipedia", false, "skip Wikipedia")
		cmd.Flags().BoolVar(&noArxiv, "no-arxiv", false, "skip arXiv")
		cmd.Flags().IntVar(&maxWiki, "max-wikipedia", 0, "Wikipedia articles to keep (1-10, default from config)")
		cmd.Flags().IntVar(&maxArxiv, "max-arxiv", 0, "arXiv papers to keep (1-10, default from config)")
	}
	askCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
}

// buildRequest turns the flags into a request. Unset flags keep the
// configured defaults.
func buildRequest(cmd *cobra.Command, topic string) research.Request {
	req := research.Request{Topic: topic}
	off := false
	if noLocal {
		req.UseLocal = &off
	}
	if noWikipedia {
		req.UseWikipedia = &off
	}
	if noArxiv {
		req.UseArxiv = &off
	}
	if cmd.Flags().Changed("max-wikipedia") {
		req.MaxWikipediaArticles = &maxWiki
	}
	if cmd.Flags().Changed("max-arxiv") {
		req.MaxArxivPapers = &maxArxiv
	}
	return req
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, _, cleanup, err := bootService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Research(ctx, buildRequest(cmd, strings.Join(args, " ")))
	if asJSON && res != nil && err == nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if err != nil {
		return describeFailure(err)
	}
	printReport(cmd.OutOrStdout(), res)
	return nil
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, _, cleanup, err := bootService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	info := svc.Info()
	fmt.Fprintf(out, "Research assistant ready: %d documents, %d chunks.\n", len(info.Documents), info.Chunks)
	if info.Chunks == 0 {
		fmt.Fprintf(out, "No documents indexed. Add files to %s to use local evidence.\n", info.FilesDir)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\nEnter a research topic (or 'exit' to quit): ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		topic := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(topic) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		fmt.Fprintln(out, "\nRunning agents (drafter -> critics -> synthesizer)...")
		res, err := svc.Research(ctx, buildRequest(cmd, topic))
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), describeFailure(err))
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		printReport(out, res)
	}
}

func printReport(w io.Writer, res *pipeline.Result) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\nTopic: %s\n\n", rule, res.Topic)
	section := func(title, body string) {
		fmt.Fprintf(w, "%s:\n%s\n\n", title, body)
	}
	section("Researcher summary", res.Summary)
	section("Critique (evidence support)", res.CritiqueA)
	section("Critique (methodology)", res.CritiqueB)
	section("Collective insight", res.Insight)
	if len(res.Sources) == 0 {
		fmt.Fprintln(w, "Sources used: none")
	} else {
		fmt.Fprintf(w, "Sources used: %s\n", strings.Join(res.Sources, ", "))
	}
	for _, a := range res.Acquisitions {
		if a.Message != "" {
			fmt.Fprintf(w, "  [%s] %s\n", a.Provider, a.Message)
		}
	}
	fmt.Fprintf(w, "%s\n", rule)
}

// describeFailure prefixes the error kind and stage so a terminal user can
// tell a timeout from a model failure.
func describeFailure(err error) error {
	var verr *research.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	kind := apperrors.Kind(err)
	if stage := apperrors.Stage(err); stage != "" {
		return fmt.Errorf("%s during %s: %w", kind, stage, err)
	}
	return fmt.Errorf("%s: %w", kind, err)
}
