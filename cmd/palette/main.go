// Command palette prints category palettes as terminal swatches.
package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/config"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/internal/service"
	"github.com/atlasmap-sc/embedview/pkg/colormap"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var cli struct {
	Tier    TierCmd    `cmd:"" help:"Show the palette chosen for a category count."`
	Dataset DatasetCmd `cmd:"" help:"Show the legend of a configured dataset."`
}

// TierCmd prints the palette picked for Count categories.
type TierCmd struct {
	Count int `help:"Number of categories." required:""`
}

func (c *TierCmd) Run() error {
	tier, err := colormap.TierName(c.Count)
	if err != nil {
		return err
	}
	palette, err := colormap.ForCount(c.Count)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%d categories)", tier, c.Count)))
	for i := 0; i < c.Count; i++ {
		col := palette.AtIndex(i)
		fmt.Printf("%4d %s %s\n", i, swatch(col), dimStyle.Render(col.Hex()))
	}
	return nil
}

// DatasetCmd loads one dataset and prints its category legend.
type DatasetCmd struct {
	Config  string `help:"Path to configuration file." default:"config/server.yaml" type:"path"`
	Dataset string `help:"Dataset ID; empty means the default dataset."`
}

func (c *DatasetCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	id := c.Dataset
	if id == "" {
		id = cfg.Data.DefaultDataset
	}
	dsCfg, ok := cfg.Data.Datasets[id]
	if !ok {
		return fmt.Errorf("dataset %q is not configured", id)
	}

	reader, err := dataset.NewReader(dataset.FromConfig(dsCfg))
	if err != nil {
		return err
	}
	defer reader.Close()

	ds, err := reader.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load dataset %q: %w", id, err)
	}

	pick, err := service.PaletteFunc(cfg.Palette)
	if err != nil {
		return err
	}
	cats, err := category.Processor{Palette: pick}.Process(ds.Labels)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s: %d cells, %d categories", id, ds.Len(), cats.Len())))
	for _, row := range category.Distribution(ds.Labels) {
		col, _ := cats.Color(row.Label)
		fmt.Printf("%4d %s %-24s %8d %s\n", row.Label, swatch(col), ds.CategoryName(row.Label), row.Count,
			dimStyle.Render(fmt.Sprintf("%5.1f%%", row.Percentage)))
	}
	return nil
}

func swatch(c colormap.Color) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("    ")
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("palette"),
		kong.Description("Inspect the category palettes used by the embedding viewer."),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
