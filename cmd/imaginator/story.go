package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dotcommander/imaginator/internal/core"
	"github.com/dotcommander/imaginator/internal/domain/story"
	"github.com/dotcommander/imaginator/internal/export"
)

const localOwner = "local"

// storyCommand walks one story through premise and cast selection, writes
// the requested number of scenes and saves the exports
func storyCommand(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("story", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to config file")
	title := fs.String("title", "", "story title")
	scenes := fs.Int("scenes", 0, "follow-up scenes to write after the opening scene")
	formats := fs.String("formats", "screenplay", "comma separated export formats")
	auto := fs.Bool("auto", false, "take the first option at every decision")
	if err := fs.Parse(args); err != nil {
		return err
	}
	concept := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if concept == "" {
		return fmt.Errorf("usage: imaginator story [flags] <concept>")
	}
	if *scenes < 0 {
		return fmt.Errorf("-scenes must not be negative")
	}

	targets, err := parseFormats(*formats)
	if err != nil {
		return err
	}

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.engine.NewStory(ctx, localOwner, *title)
	if err != nil {
		return err
	}
	storyID := s.ID()

	snap, err := a.engine.Begin(ctx, storyID, concept)
	if err != nil {
		return err
	}

	in := bufio.NewScanner(stdin)
	for snap.State != core.StateResolved {
		optionID, err := pickOption(snap.Decision, *auto, in, stdout)
		if err != nil {
			return err
		}
		if snap, err = a.engine.Choose(ctx, storyID, optionID); err != nil {
			return err
		}
	}

	for i := 0; i < *scenes; i++ {
		if snap, err = a.engine.NextScene(ctx, storyID, ""); err != nil {
			return err
		}
	}

	printStory(stdout, snap)

	renderings, err := a.engine.ExportAll(ctx, storyID, targets)
	if err != nil {
		return err
	}
	for _, r := range renderings {
		path, err := a.exports.Write(ctx, snap.Story, r)
		if err != nil {
			return err
		}
		note := ""
		if r.Degraded {
			note = " (placeholder)"
		}
		fmt.Fprintf(stdout, "Exported %s%s to %s\n", r.Format, note, path)
	}
	return nil
}

func parseFormats(list string) ([]story.Format, error) {
	var out []story.Format
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := export.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export formats given")
	}
	return out, nil
}

// pickOption shows a decision and reads the chosen option number
func pickOption(d *story.DecisionPoint, auto bool, in *bufio.Scanner, out io.Writer) (string, error) {
	if d == nil || len(d.Options) == 0 {
		return "", fmt.Errorf("no decision is pending")
	}

	fmt.Fprintf(out, "\n%s\n", d.Context)
	if d.Degraded {
		fmt.Fprintln(out, "(the provider was unavailable; built-in options shown)")
	}
	for i, opt := range d.Options {
		fmt.Fprintf(out, "  %d. %s\n     %s\n", i+1, opt.Title, opt.Description)
	}
	if d.Recommendation != "" {
		fmt.Fprintf(out, "Recommended: %s\n", d.Recommendation)
	}

	if auto {
		fmt.Fprintf(out, "> 1\n")
		return d.Options[0].ID, nil
	}

	for {
		fmt.Fprintf(out, "Choose 1-%d: ", len(d.Options))
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", fmt.Errorf("reading choice: %w", err)
			}
			return "", io.ErrUnexpectedEOF
		}
		n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err == nil && n >= 1 && n <= len(d.Options) {
			return d.Options[n-1].ID, nil
		}
		fmt.Fprintln(out, "Not a valid choice.")
	}
}

func printStory(out io.Writer, snap core.Snapshot) {
	doc := snap.Story
	fmt.Fprintf(out, "\n%s\nPremise: %s\n", doc.Title, doc.Premise.Statement)
	for _, c := range doc.Characters {
		fmt.Fprintf(out, "  %s (%s)\n", c.Name, c.Role)
	}
	for _, sc := range doc.Scenes {
		fmt.Fprintf(out, "\n[%d] %s\n%s\n", sc.Position, sc.Title, sc.Content)
	}
	h := snap.Health
	fmt.Fprintf(out, "\nHealth: overall %.0f, premise %.0f, structure %.0f, characters %.0f, pacing %.0f, conflict %.0f, theme %.0f\n\n",
		h.Overall, h.PremiseClarity, h.StructuralIntegrity, h.CharacterDepth,
		h.PacingEffectiveness, h.ConflictPower, h.ThematicUnity)
}
