package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/services"
)

const endCallCommand = "/end"

func NewCallCommand() *cobra.Command {
	var (
		role       string
		difficulty string
		email      string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Take a practice call in the terminal",
		Long:  "Take a practice call in the terminal. Type " + endCallCommand + " to hang up and get graded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			teamRole, err := models.ParseTeamRole(role)
			if err != nil {
				return err
			}
			d, err := optionalDifficulty(difficulty)
			if err != nil {
				return err
			}

			config := services.LoadConfig()
			generator, err := services.NewScenarioGenerator(config.Scenario)
			if err != nil {
				return err
			}
			persona, evaluator, err := services.NewAgents(ctx, config.AI)
			if err != nil {
				return err
			}
			engine := consultation.NewEngine(generator, persona, evaluator,
				consultation.WithTimeouts(config.AI.PersonaTimeout, config.AI.EvaluatorTimeout))

			return runCall(ctx, engine, consultation.StartInput{
				UserEmail:  email,
				UserName:   name,
				TeamRole:   teamRole,
				Difficulty: d,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&role, "role", "sales", "Team role (pm or sales)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Easy, Medium or Hard")
	cmd.Flags().StringVar(&email, "email", "trainee@localhost", "Trainee email")
	cmd.Flags().StringVar(&name, "name", "Trainee", "Trainee name")
	return cmd
}

// runCall drives one session from in to out. It ends on the turn limit,
// on /end, or at the end of input, and then prints the scorecard.
func runCall(ctx context.Context, engine *consultation.Engine, in consultation.StartInput, r io.Reader, w io.Writer) error {
	session, err := engine.Start(ctx, in)
	if err != nil {
		return err
	}
	sc := session.Scenario
	fmt.Fprintf(w, "%s (%s, %s)\n%s\n\n", sc.Title, sc.Category, sc.Difficulty, sc.Description)
	fmt.Fprintf(w, "[%s]: %s\n", sc.Persona.Name, session.Messages[0].Content)

	scanner := bufio.NewScanner(r)
	for !session.IsComplete {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == endCallCommand {
			break
		}

		session.ElapsedSeconds = time.Since(session.StartedAt).Seconds()
		reply, err := engine.Advance(ctx, session, line)
		if err != nil {
			fmt.Fprintf(w, "(no answer: %v)\n", err)
			continue
		}
		fmt.Fprintf(w, "[%s]: %s\n", sc.Persona.Name, reply)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if session.CompletedAt == nil {
		session.ElapsedSeconds = time.Since(session.StartedAt).Seconds()
	}
	fmt.Fprintln(w, "\nCall ended. Evaluating...")
	result, err := engine.Finish(ctx, session)
	if err != nil {
		return err
	}
	printResult(w, sc, result)
	return nil
}

func printResult(w io.Writer, sc models.Scenario, result *models.ConsultationResult) {
	fmt.Fprintf(w, "\nScore: %d (%s, %s)  Deal: %s  Client satisfaction: %d\n",
		result.OverallScore, result.Tier, result.TierLabel, result.DealOutcome, result.ClientSatisfaction)
	for _, cs := range result.CategoryScores {
		fmt.Fprintf(w, "  %-24s %3d  %s\n", cs.Category, cs.Score, cs.Feedback)
	}
	if len(result.Strengths) > 0 {
		fmt.Fprintln(w, "Strengths:")
		for _, s := range result.Strengths {
			fmt.Fprintf(w, "  + %s\n", s)
		}
	}
	if len(result.Improvements) > 0 {
		fmt.Fprintln(w, "Improvements:")
		for _, s := range result.Improvements {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	fmt.Fprintf(w, "\nThe client's hidden goal was: %s\n", sc.Persona.HiddenGoal)
	if result.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", result.Summary)
	}
}
