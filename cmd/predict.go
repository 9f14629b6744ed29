package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kartoza/price-gateway/internal/encoding"
	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/inference"
	"github.com/kartoza/price-gateway/internal/models"
	"github.com/kartoza/price-gateway/internal/nn"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the price of one property",
	Long: `Runs a single inference and prints the outcome as JSON.
Exits non-zero when no price could be produced.`,
	Example: `  pricegw predict --model model.gob --bedrooms 3 --builder Builder_A \
    --locality Locality_2 --prime-location 1 --property-type Villa`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		flags := cmd.Flags()
		var d features.Descriptor
		d.Bedrooms, _ = flags.GetString("bedrooms")
		d.Builder, _ = flags.GetString("builder")
		d.Locality, _ = flags.GetString("locality")
		d.PrimeLocation, _ = flags.GetString("prime-location")
		d.PropertyType, _ = flags.GetString("property-type")

		registry := encoding.NewDefaultRegistry()
		coordinator := inference.NewCoordinator(
			features.NewAssembler(registry),
			nn.Load(cfg.ModelPath, logger),
			logger,
		)
		out := coordinator.Infer(d)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(models.NewPredictResponse("", out)); err != nil {
			return fmt.Errorf("write outcome: %w", err)
		}

		if !out.Predicted() {
			return fmt.Errorf("prediction %s: %s", out.Status, out.Failure.Message)
		}
		return nil
	},
}

func init() {
	predictCmd.Flags().String("bedrooms", "", "Number of bedrooms")
	predictCmd.Flags().String("builder", "", "Builder name")
	predictCmd.Flags().String("locality", "", "Locality name")
	predictCmd.Flags().String("prime-location", "", "1 if the property is in a prime location, else 0")
	predictCmd.Flags().String("property-type", "", "Property type, e.g. Apartment or Villa")
}
