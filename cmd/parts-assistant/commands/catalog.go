package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/cmd/parts-assistant/ui"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/app"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/storage"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and load the parts catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the CSV datasets into the configured SQL database",
	Long: `Reads the parts, repairs and blog CSV files named in the config and upserts
them into the SQLite or Postgres catalog in a single transaction.`,
	RunE: runCatalogImport,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <part-or-manufacturer-number>",
	Short: "Show one part",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check <part-number> <model-number>",
	Short: "Check whether a part fits a model",
	Args:  cobra.ExactArgs(2),
	RunE:  runCatalogCheck,
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd, catalogShowCmd, catalogCheckCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "" {
		return errors.New("catalog import needs database.driver set to sqlite or postgres")
	}

	ui.Section("Import Catalog")
	ui.KeyValue("Database", storage.DriverName(cfg.Database.Driver))
	ui.KeyValue("Parts", cfg.Catalog.PartsPath)
	ui.KeyValue("Repairs", cfg.Catalog.RepairsPath)
	ui.KeyValue("Blogs", cfg.Catalog.BlogsPath)
	ui.Newline()

	ds, err := catalog.LoadDataset(cfg.Catalog.PartsPath, cfg.Catalog.RepairsPath, cfg.Catalog.BlogsPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	total := int64(len(ds.Parts) + len(ds.Repairs) + len(ds.Articles))
	bar := ui.NewProgressBar(total, "Importing")
	store := storage.NewSQLStore(db)
	err = store.ImportDataset(ctx, ds, func(done, _ int) {
		bar.Set(int64(done))
	})
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	bar.Finish()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count parts: %w", err)
	}
	ui.Success("Imported %d parts, %d repair guides and %d articles (%d parts stored)",
		len(ds.Parts), len(ds.Repairs), len(ds.Articles), count)
	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	part, err := a.Store.FindByIdentifier(ctx, args[0])
	if errors.Is(err, catalog.ErrNotFound) {
		ui.Warning("No part matches %s", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	ui.Section(part.Name)
	ui.KeyValue("Part number", part.PartID)
	ui.KeyValue("Manufacturer number", part.ManufacturerNumber)
	ui.KeyValue("Brand", part.Brand)
	ui.KeyValue("Appliance", part.ApplianceTypes)
	ui.KeyValue("Price", part.Price)
	ui.KeyValue("Availability", part.Availability)
	if part.InstallDifficulty != "" {
		ui.KeyValue("Install", strings.TrimSpace(part.InstallDifficulty+", "+part.InstallTime))
	}
	if part.Symptoms != "" {
		ui.KeyValue("Fixes", part.Symptoms)
	}
	if len(part.CompatibleModels) > 0 {
		ui.KeyValue("Models", fmt.Sprintf("%d listed", len(part.CompatibleModels)))
		if verbose {
			fmt.Fprint(ui.Out, ui.FormatList(part.CompatibleModels))
		}
	}
	ui.KeyValue("URL", part.ProductURL)
	return nil
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	partID := strings.ToUpper(args[0])
	model := strings.ToUpper(args[1])

	c, ok := a.FastLookup.CheckCompatibility(retrieval.Detection{
		PartNumbers:  []string{partID},
		ModelNumbers: []string{model},
	})
	if ok && !c.Compatible {
		ui.Warning("%s", retrieval.CompatibilityMessage(c))
		return nil
	}

	part, err := a.Store.FindByIdentifier(ctx, partID)
	if errors.Is(err, catalog.ErrNotFound) {
		ui.Warning("No part matches %s", partID)
		return nil
	}
	if err != nil {
		return err
	}
	if part.FitsModel(model) {
		ui.Success("%s (%s) is listed for model %s", part.PartID, part.Name, model)
		return nil
	}
	ui.Warning("%s is not listed for model %s", part.PartID, model)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
