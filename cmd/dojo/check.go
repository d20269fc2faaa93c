package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

type checkOptions struct {
	Category      string
	Belt          string
	Stripes       int
	DateOfBirth   string
	JoinDate      string
	LastPromotion string
	AsOf          string
	Timezone      string
	JSON          bool
}

// checkResult is what `dojo check` reports for one student.
type checkResult struct {
	Rank          string          `json:"rank"`
	Category      string          `json:"category"`
	Anchor        string          `json:"anchor"`
	AsOf          string          `json:"as_of"`
	MonthsInGrade int             `json:"months_in_grade"`
	Age           int             `json:"age"`
	Verdict       belt.Verdict    `json:"verdict"`
	Progression   []belt.PathStep `json:"progression"`
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate one student's promotion eligibility without a database",
		Example: "  dojo check --category adult --belt blue --dob 1990-03-02 --join 2022-01-10 --as-of 2024-04-10\n" +
			"  dojo check --category kids --belt white --stripes 1 --dob 2016-05-01 --join 2024-01-15",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.OutOrStdout(), opts, timeutil.SystemClock)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Category, "category", "", "kids, juvenile, adult or master")
	f.StringVar(&opts.Belt, "belt", "", "current belt color")
	f.IntVar(&opts.Stripes, "stripes", 0, "stripes on the current belt, or degrees on black")
	f.StringVar(&opts.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	f.StringVar(&opts.JoinDate, "join", "", "join date (YYYY-MM-DD)")
	f.StringVar(&opts.LastPromotion, "last-promotion", "", "date of the last promotion, if any")
	f.StringVar(&opts.AsOf, "as-of", "", "evaluation date (default today)")
	f.StringVar(&opts.Timezone, "timezone", timeutil.DefaultTimezone, "timezone that decides today")
	f.BoolVar(&opts.JSON, "json", false, "print JSON")
	for _, name := range []string{"category", "belt", "dob", "join"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCheck(w io.Writer, opts checkOptions, clock timeutil.Clock) error {
	res, err := evaluateCheck(opts, clock)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printCheck(w, res)
	return nil
}

func evaluateCheck(opts checkOptions, clock timeutil.Clock) (checkResult, error) {
	if opts.Stripes < 0 {
		return checkResult{}, errors.New("--stripes must not be negative")
	}

	// Unknown names are passed through so the verdict can say why the
	// student cannot advance.
	category, err := belt.ParseCategory(opts.Category)
	if err != nil {
		category = belt.Category(strings.ToLower(strings.TrimSpace(opts.Category)))
	}
	color, err := belt.ParseColor(opts.Belt)
	if err != nil {
		color = belt.Color(strings.ToLower(strings.TrimSpace(opts.Belt)))
	}

	dob, err := parseFlagDate("dob", opts.DateOfBirth)
	if err != nil {
		return checkResult{}, err
	}
	joined, err := parseFlagDate("join", opts.JoinDate)
	if err != nil {
		return checkResult{}, err
	}

	s := belt.Student{
		DateOfBirth: dob,
		Category:    category,
		CurrentRank: belt.Rank{Color: color, Stripes: opts.Stripes},
		JoinDate:    joined,
	}
	if opts.LastPromotion != "" {
		last, err := parseFlagDate("last-promotion", opts.LastPromotion)
		if err != nil {
			return checkResult{}, err
		}
		s.LastPromotionDate = &last
	}

	var asOf time.Time
	if opts.AsOf != "" {
		if asOf, err = parseFlagDate("as-of", opts.AsOf); err != nil {
			return checkResult{}, err
		}
	} else {
		asOf = timeutil.Today(clock, timeutil.LoadLocation(opts.Timezone))
	}

	return checkResult{
		Rank:          s.CurrentRank.String(),
		Category:      category.String(),
		Anchor:        timeutil.FormatDateStr(s.Anchor()),
		AsOf:          timeutil.FormatDateStr(asOf),
		MonthsInGrade: belt.MonthsInGrade(s.Anchor(), asOf),
		Age:           belt.AgeAt(dob, asOf),
		Verdict:       belt.Evaluate(s, asOf),
		Progression:   belt.Progression(s, asOf),
	}, nil
}

func parseFlagDate(flag, value string) (time.Time, error) {
	t, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return t, nil
}

func printCheck(w io.Writer, res checkResult) {
	fmt.Fprintf(w, "rank:      %s (%s)\n", res.Rank, res.Category)
	fmt.Fprintf(w, "as of:     %s, age %d, %d months since %s\n", res.AsOf, res.Age, res.MonthsInGrade, res.Anchor)

	if res.Verdict.Eligible {
		fmt.Fprintf(w, "eligible:  yes, %s\n", res.Verdict.NextRank)
	} else {
		fmt.Fprintln(w, "eligible:  no")
	}
	fmt.Fprintf(w, "reason:    %s\n", res.Verdict.Reason)

	if len(res.Progression) == 0 {
		return
	}
	steps := make([]string, len(res.Progression))
	for i, step := range res.Progression {
		switch step.State {
		case belt.StepCurrent:
			steps[i] = fmt.Sprintf("[%s]", belt.Rank{Color: step.Color, Stripes: step.Stripes})
		case belt.StepNext:
			steps[i] = fmt.Sprintf("%s*", step.Color)
		default:
			steps[i] = step.Color.String()
		}
	}
	fmt.Fprintf(w, "path:      %s\n", strings.Join(steps, " > "))
}
