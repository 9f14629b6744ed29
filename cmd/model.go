package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/nn"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Create and inspect model artifacts",
}

var modelInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a linear model artifact from explicit coefficients",
	Example: `  pricegw model init --intercept 100000 \
    --coef 25000,10000,40000,30000,50000 --out model.gob`,
	RunE: func(cmd *cobra.Command, args []string) error {
		intercept, _ := cmd.Flags().GetFloat64("intercept")
		coefs, _ := cmd.Flags().GetFloat64Slice("coef")
		out, _ := cmd.Flags().GetString("out")

		if len(coefs) != features.Length {
			return fmt.Errorf("need %d coefficients in order %v, got %d", features.Length, features.Names, len(coefs))
		}

		model, err := nn.NewLinearModel(nn.LinearModelConfig{
			Intercept:    intercept,
			Coefficients: coefs,
		})
		if err != nil {
			return err
		}
		if err := model.Save(out); err != nil {
			return fmt.Errorf("save model: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote model to %s\n", out)
		return nil
	},
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the parameters of a model artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		model, err := nn.LoadLinearModel(cfg.ModelPath)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(model.GetConfig())
	},
}

func init() {
	modelInitCmd.Flags().Float64("intercept", 0, "Model intercept")
	modelInitCmd.Flags().Float64Slice("coef", nil, "Comma-separated coefficients in feature order")
	modelInitCmd.Flags().String("out", "model.gob", "Output path")

	modelCmd.AddCommand(modelInitCmd)
	modelCmd.AddCommand(modelInfoCmd)
}
