package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/services"
)

func NewScenarioCommand() *cobra.Command {
	var (
		role        string
		difficulty  string
		catalogPath string
		reveal      bool
	)

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Print a generated scenario as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			teamRole, err := models.ParseTeamRole(role)
			if err != nil {
				return err
			}
			d, err := optionalDifficulty(difficulty)
			if err != nil {
				return err
			}

			generator, err := services.NewScenarioGenerator(services.ScenarioConfig{CatalogPath: catalogPath})
			if err != nil {
				return err
			}
			sc, err := generator.Generate(teamRole, d)
			if err != nil {
				return err
			}
			if !reveal {
				public := sc.Public()
				sc = &public
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sc)
		},
	}

	cmd.Flags().StringVar(&role, "role", "sales", "Team role (pm or sales)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Easy, Medium or Hard (default: template's own)")
	cmd.Flags().StringVar(&catalogPath, "catalog", os.Getenv("SCENARIO_CATALOG_PATH"), "YAML scenario catalog")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Include the hidden goal and success criteria")
	return cmd
}

func optionalDifficulty(s string) (*models.Difficulty, error) {
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDifficulty(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
