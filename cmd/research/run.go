package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/market-research-agent/internal/errs"
	"github.com/BerylCAtieno/market-research-agent/internal/export"
	"github.com/BerylCAtieno/market-research-agent/internal/models"
	"github.com/BerylCAtieno/market-research-agent/internal/research"
)

type runOptions struct {
	concept       string
	segment       string
	questions     []string
	personas      int
	save          bool
	name          string
	out           string
	transcriptOut string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate personas, simulate a focus group and analyze it",
		Example: `  research run --concept "a subscription tool for invoice automation" \
    --segment "urban freelance designers, age 25-40" \
    --question "Would you use this?" --question "What would you pay?" --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd, a, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.concept, "concept", "", "product or service concept")
	f.StringVar(&opts.segment, "segment", "", "target market segment")
	f.StringArrayVarP(&opts.questions, "question", "q", nil, "research question (repeatable, up to 5)")
	f.IntVar(&opts.personas, "personas", 0, "number of personas (default from config)")
	f.BoolVar(&opts.save, "save", false, "save the completed run as a project")
	f.StringVar(&opts.name, "name", "", "project name when saving (default derived from the concept)")
	f.StringVar(&opts.out, "out", "", "write the JSON export to this file")
	f.StringVar(&opts.transcriptOut, "transcript-out", "", "write the transcript to this file")
	_ = cmd.MarkFlagRequired("concept")
	_ = cmd.MarkFlagRequired("segment")
	return cmd
}

func runResearch(cmd *cobra.Command, a *app, opts *runOptions) error {
	req := models.ResearchRequest{Concept: opts.concept, Segment: opts.segment, Questions: opts.questions}.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	count := opts.personas
	if count == 0 {
		count = a.cfg.Research.PersonaCount
	}

	client, err := a.dial(cmd.Context(), a.cred)
	if err != nil {
		return err
	}
	defer client.Close()

	svc := research.NewService(client, a.cfg.Research, a.log)
	pipeline := research.NewPipeline(svc, count)
	pipeline.Observe = func(_, to research.State) {
		switch to {
		case research.StateGeneratingPersonas:
			fmt.Fprintf(a.out, "Generating %d personas...\n", count)
		case research.StateSimulatingDiscussion:
			fmt.Fprintln(a.out, "Simulating focus group...")
		case research.StateAnalyzing:
			fmt.Fprintln(a.out, "Analyzing transcript...")
		}
	}

	run, runErr := pipeline.Run(cmd.Context(), req)
	printRun(a, run)
	if runErr != nil {
		if e, ok := errs.As(runErr); ok && e.Kind == errs.KindMalformedResponse && e.Raw != "" {
			fmt.Fprintf(a.out, "\nRaw backend response:\n%s\n", e.Raw)
		}
		if errors.Is(runErr, &errs.Error{Kind: errs.KindAuthentication}) {
			return fmt.Errorf("%w (set GEMINI_API_KEY)", runErr)
		}
		return runErr
	}

	project := models.Project{
		Name:       opts.name,
		Concept:    req.Concept,
		Segment:    req.Segment,
		Questions:  req.Questions,
		Personas:   run.Personas,
		Transcript: run.Transcript,
		Analysis:   run.Report,
	}
	if project.Name == "" {
		project.Name = defaultProjectName(req.Concept)
	}

	if opts.out != "" {
		b, err := export.JSON(export.FromProject(&project))
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, b, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(a.out, "Wrote %s\n", opts.out)
	}
	if opts.transcriptOut != "" {
		if err := os.WriteFile(opts.transcriptOut, []byte(export.Transcript(export.FromProject(&project))), 0o644); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
		fmt.Fprintf(a.out, "Wrote %s\n", opts.transcriptOut)
	}
	if opts.save {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.Save(cmd.Context(), project)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Saved project %q as %s\n", project.Name, id)
	}
	return nil
}

func defaultProjectName(concept string) string {
	const limit = 60
	r := []rune(strings.TrimSpace(concept))
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return string(r)
}

func printRun(a *app, run *research.Run) {
	w := a.out
	if len(run.Personas) > 0 {
		fmt.Fprintln(w, "\nPersonas:")
		for i, p := range run.Personas {
			fmt.Fprintf(w, "  %d. %s, %d, %s\n", i+1, p.Name, p.Age, p.Occupation)
		}
	}
	if r := run.Report; r != nil {
		fmt.Fprintf(w, "\nSummary: %s\n", r.Summary)
		if len(r.Themes) > 0 {
			fmt.Fprintln(w, "Themes:")
			themes := make([]string, 0, len(r.Themes))
			for t := range r.Themes {
				themes = append(themes, t)
			}
			sort.Strings(themes)
			for _, t := range themes {
				fmt.Fprintf(w, "  - %s (%d/10)\n", t, r.Themes[t])
			}
		}
		fmt.Fprintf(w, "Pricing: %.2f to %.2f (sensitivity %.2f)\n", r.Pricing.MinPrice, r.Pricing.MaxPrice, r.Pricing.Sensitivity)
		if s := r.LexiconSentiment; s != nil {
			fmt.Fprintf(w, "Lexicon sentiment: compound %.3f\n", s.Compound)
		}
	}
	t := run.Tokens
	fmt.Fprintf(w, "\nTokens: personas %d, focus group %d, analysis %d, total %d\n", t.Personas, t.FocusGroup, t.Analysis, t.Total)
}
