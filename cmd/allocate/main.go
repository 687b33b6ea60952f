// cmd/allocate/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/oplift/buyplan/internal/cache"
	"github.com/oplift/buyplan/internal/config"
	"github.com/oplift/buyplan/internal/domain"
	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/internal/ingest"
	"github.com/oplift/buyplan/internal/pipeline"
	"github.com/oplift/buyplan/internal/repository/postgres"
	"github.com/oplift/buyplan/internal/service"
	"github.com/oplift/buyplan/internal/storage"
	"github.com/oplift/buyplan/pkg/logger"
)

func newBudgetFlag() *cli.Float64Flag {
	return &cli.Float64Flag{
		Name:     "budget",
		Usage:    "Purchasing budget in GBP",
		Required: true,
	}
}

func newDatasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "products",
			Usage:    "Products CSV path, or object key when --from-storage is set",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "suppliers",
			Usage: "Supplier terms CSV path or object key",
		},
		&cli.StringFlag{
			Name:  "freight-bands",
			Usage: "Freight rate bands CSV path or object key",
		},
		&cli.BoolFlag{
			Name:  "from-storage",
			Usage: "Read datasets from the configured object storage bucket",
		},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "allocate",
		Usage: "Run wholesale budget allocations from CSV datasets",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the full allocation and print the result as JSON",
				Flags:  append(newDatasetFlags(), newBudgetFlag()),
				Action: runAllocation,
			},
			{
				Name:  "stage",
				Usage: "Run pipeline stages one at a time, printing the state after each",
				Flags: append(newDatasetFlags(), newBudgetFlag(),
					&cli.IntFlag{
						Name:  "through",
						Usage: "Last stage to run (1-8)",
						Value: pipeline.StageFinalize,
					},
				),
				Action: runStages,
			},
			{
				Name:  "scenarios",
				Usage: "Run the allocation under several budgets",
				Flags: append(newDatasetFlags(),
					&cli.Float64SliceFlag{
						Name:     "budgets",
						Usage:    "Budgets to compare, e.g. --budgets 5000 --budgets 10000",
						Required: true,
					},
				),
				Action: runScenarios,
			},
			{
				Name:  "import",
				Usage: "Import supplier terms and freight tariffs into the master-data database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "suppliers",
						Usage: "Supplier terms CSV path or object key",
					},
					&cli.StringFlag{
						Name:  "freight-bands",
						Usage: "Freight rate bands CSV path or object key",
					},
					&cli.BoolFlag{
						Name:  "from-storage",
						Usage: "Read datasets from the configured object storage bucket",
					},
				},
				Action: runImport,
			},
			{
				Name:  "datasets",
				Usage: "Inspect the configured dataset bucket",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List dataset objects in the bucket",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "prefix",
								Usage: "Only list keys under this prefix",
							},
						},
						Action: listDatasets,
					},
					{
						Name:      "fetch",
						Usage:     "Download a dataset object to a local file",
						ArgsUsage: "<object-key>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "out",
								Usage:    "Local path to write the object to",
								Required: true,
							},
						},
						Action: fetchDataset,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}

func runAllocation(c *cli.Context) error {
	req, err := loadRequest(c)
	if err != nil {
		return err
	}
	req.Budget = c.Float64("budget")

	svc := service.NewAllocationService(engineConfig(), cache.NewNoopResultCache())
	result, err := svc.Allocate(c.Context, *req)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runStages(c *cli.Context) error {
	req, err := loadRequest(c)
	if err != nil {
		return err
	}

	through := c.Int("through")
	if through < pipeline.StageLoad || through > pipeline.StageFinalize {
		return fmt.Errorf("--through must be between %d and %d", pipeline.StageLoad, pipeline.StageFinalize)
	}

	p := pipeline.New(engineConfig())
	inputs := pipeline.Inputs{Budget: c.Float64("budget")}
	data := pipeline.Data{
		Suppliers:     req.Suppliers,
		Products:      req.Products,
		FreightCurves: req.FreightCurves,
		FreightConfig: req.FreightConfig,
		ChurnSettings: req.ChurnSettings,
	}

	var state *pipeline.State
	for stage := pipeline.StageLoad; stage <= through; stage++ {
		state, err = p.Run(state, inputs, data, stage)
		if err != nil {
			return fmt.Errorf("stage %d (%s): %w", stage, pipeline.StageName(stage), err)
		}
		logger.Log.Info().Int("stage", stage).Str("name", pipeline.StageName(stage)).Msg("stage complete")
	}
	return printJSON(state)
}

func runScenarios(c *cli.Context) error {
	req, err := loadRequest(c)
	if err != nil {
		return err
	}

	svc := service.NewAllocationService(engineConfig(), cache.NewNoopResultCache())
	scenarios, err := svc.AllocateScenarios(c.Context, *req, c.Float64Slice("budgets"))
	if err != nil {
		return err
	}
	return printJSON(scenarios)
}

// runImport replaces the database's supplier terms and freight tariffs with
// the given CSV exports.
func runImport(c *cli.Context) error {
	suppliersKey := c.String("suppliers")
	bandsKey := c.String("freight-bands")
	if suppliersKey == "" && bandsKey == "" {
		return fmt.Errorf("nothing to import: pass --suppliers and/or --freight-bands")
	}

	open, err := datasetOpener(c)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(c.Context, config.Load().Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := postgres.NewMasterRepository(db)

	if suppliersKey != "" {
		r, err := open(c.Context, suppliersKey)
		if err != nil {
			return err
		}
		terms, err := ingest.ReadSupplierTerms(r)
		r.Close()
		if err != nil {
			return err
		}
		if err := repo.ReplaceSupplierTerms(c.Context, terms); err != nil {
			return err
		}
		logger.Log.Info().Int("suppliers", len(terms)).Msg("imported supplier terms")
	}

	if bandsKey != "" {
		r, err := open(c.Context, bandsKey)
		if err != nil {
			return err
		}
		curves, err := ingest.ReadFreightBands(r)
		r.Close()
		if err != nil {
			return err
		}
		if err := repo.ReplaceFreightCurves(c.Context, curves); err != nil {
			return err
		}
		logger.Log.Info().Int("curves", len(curves)).Msg("imported freight tariffs")
	}
	return nil
}

func listDatasets(c *cli.Context) error {
	store, err := storage.NewMinioStorage(c.Context, config.Load().Storage)
	if err != nil {
		return err
	}

	keys, err := store.ListObjects(c.Context, c.String("prefix"))
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func fetchDataset(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("missing object key argument")
	}

	store, err := storage.NewMinioStorage(c.Context, config.Load().Storage)
	if err != nil {
		return err
	}
	return store.DownloadObject(c.Context, strings.TrimPrefix(key, "/"), c.String("out"))
}

func engineConfig() engine.Config {
	cfg := config.Load()
	engineCfg := engine.DefaultConfig()
	engineCfg.VelocityHorizonMonths = cfg.Engine.VelocityHorizonMonths
	engineCfg.ChurnCapWeeks = cfg.Engine.ChurnCapWeeks
	engineCfg.DefaultLeadDays = cfg.Engine.DefaultLeadDays
	engineCfg.ExhaustiveLimit = cfg.Engine.ExhaustiveLimit
	return engineCfg
}

// loadRequest assembles an allocation request from the dataset flags. With
// --from-storage, keys are fetched from the configured bucket; otherwise
// they are local file paths.
func loadRequest(c *cli.Context) (*domain.AllocationRequest, error) {
	open, err := datasetOpener(c)
	if err != nil {
		return nil, err
	}

	req := &domain.AllocationRequest{}

	productsReader, err := open(c.Context, c.String("products"))
	if err != nil {
		return nil, err
	}
	defer productsReader.Close()
	if req.Products, err = ingest.ReadProducts(productsReader); err != nil {
		return nil, err
	}

	if key := c.String("suppliers"); key != "" {
		r, err := open(c.Context, key)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		if req.Suppliers, err = ingest.ReadSupplierTerms(r); err != nil {
			return nil, err
		}
	}

	if key := c.String("freight-bands"); key != "" {
		r, err := open(c.Context, key)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		if req.FreightCurves, err = ingest.ReadFreightBands(r); err != nil {
			return nil, err
		}
	}

	return req, nil
}

type openFunc func(ctx context.Context, key string) (io.ReadCloser, error)

func datasetOpener(c *cli.Context) (openFunc, error) {
	if !c.Bool("from-storage") {
		return func(ctx context.Context, key string) (io.ReadCloser, error) {
			f, err := os.Open(key)
			if err != nil {
				return nil, fmt.Errorf("open dataset %q: %w", key, err)
			}
			return f, nil
		}, nil
	}

	store, err := storage.NewMinioStorage(c.Context, config.Load().Storage)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, key string) (io.ReadCloser, error) {
		return store.GetObject(ctx, strings.TrimPrefix(key, "/"))
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
