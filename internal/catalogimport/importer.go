package catalogimport

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rentals-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
)

const (
	duplicateTag    = "duplicate"
	oneSize         = "one size"
	unknownColor    = "unspecified"
	defaultCategory = "uncategorized"
)

// Source yields the tabs of the inventory spreadsheet.
type Source interface {
	SheetTitles(ctx context.Context) ([]string, error)
	Values(ctx context.Context, sheet string) ([][]string, error)
}

// Catalog is the part of catalog.Service the importer writes through.
type Catalog interface {
	ListItems(ctx context.Context, filter catalog.ItemFilter, page pagination.Params) (pagination.Page[catalog.ItemDTO], error)
	CreateItem(ctx context.Context, input catalog.CreateItemInput) (*catalog.ItemDTO, error)
	CreateVariant(ctx context.Context, itemID uuid.UUID, input catalog.VariantInput) (*catalog.VariantDTO, error)
}

// Options tunes an import run.
type Options struct {
	StockPerSize int
	DryRun       bool
}

// Report counts what an import run did.
type Report struct {
	Items      int
	Variants   int
	Duplicates int
	Skipped    int
}

// Importer copies the legacy spreadsheet inventory into the catalog.
type Importer struct {
	source  Source
	catalog Catalog
	logg    *logger.Logger
	opts    Options
}

func NewImporter(source Source, cat Catalog, logg *logger.Logger, opts Options) *Importer {
	if opts.StockPerSize <= 0 {
		opts.StockPerSize = 1
	}
	return &Importer{source: source, catalog: cat, logg: logg, opts: opts}
}

// Run walks every tab. The first row of a tab is the booking calendar header
// and is ignored; a row with an empty first cell switches the current
// category; any other row is an item. Failures of single rows are collected
// and the run continues.
func (im *Importer) Run(ctx context.Context) (Report, error) {
	var report Report
	titles, err := im.source.SheetTitles(ctx)
	if err != nil {
		return report, err
	}

	var errs error
	for _, sheet := range titles {
		sheetCtx := im.logg.WithField(ctx, "sheet", sheet)
		rows, err := im.source.Values(ctx, sheet)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if len(rows) == 0 {
			im.logg.Warn(sheetCtx, "sheet has no data")
			continue
		}
		im.logg.Info(sheetCtx, "importing sheet")

		category := ""
		for i, cells := range rows[1:] {
			rowNumber := i + 2
			if len(cells) == 0 {
				continue
			}
			if strings.TrimSpace(cells[0]) == "" {
				if next := ParseCategoryCell(cells); next != "" {
					category = next
				}
				continue
			}

			row := ParseItemCell(cells[0])
			if row.Category == "" {
				row.Category = category
			}
			rowCtx := im.logg.WithField(sheetCtx, "row", rowNumber)
			if err := im.importRow(rowCtx, row, rowNumber, &report); err != nil {
				im.logg.Error(rowCtx, "failed to import row", err)
				errs = multierr.Append(errs, fmt.Errorf("%s row %d: %w", sheet, rowNumber, err))
			}
		}
	}
	return report, errs
}

func (im *Importer) importRow(ctx context.Context, row Row, rowNumber int, report *Report) error {
	input := catalog.CreateItemInput{
		Title:       row.Title,
		Category:    row.Category,
		Description: &row.Description,
	}
	if input.Title == "" {
		input.Title = fmt.Sprintf("#%d", rowNumber)
	}
	if input.Category == "" {
		input.Category = defaultCategory
	}
	variants := variantInputs(row, im.opts.StockPerSize)

	if im.opts.DryRun {
		im.logg.Info(im.logg.WithFields(ctx, map[string]any{
			"title":    input.Title,
			"category": input.Category,
			"variants": len(variants),
		}), "parsed item")
		report.Items++
		report.Variants += len(variants)
		return nil
	}

	item, err := im.catalog.CreateItem(ctx, input)
	if pkgerrors.CodeOf(err) == pkgerrors.CodeConflict {
		existing, findErr := im.findByTitle(ctx, input.Title)
		if findErr != nil {
			return findErr
		}
		if existing != nil && sameDescription(existing.Description, row.Description) {
			im.logg.Debug(ctx, "item already imported")
			report.Skipped++
			return nil
		}
		input.Title = fmt.Sprintf("%s_%d", input.Title, rowNumber)
		input.Tags = []string{duplicateTag}
		item, err = im.catalog.CreateItem(ctx, input)
		if pkgerrors.CodeOf(err) == pkgerrors.CodeConflict {
			im.logg.Warn(ctx, "duplicate title already imported")
			report.Skipped++
			return nil
		}
		if err == nil {
			report.Duplicates++
		}
	}
	if err != nil {
		return err
	}
	report.Items++

	for _, v := range variants {
		if _, err := im.catalog.CreateVariant(ctx, item.ID, v); err != nil {
			return err
		}
		report.Variants++
	}
	return nil
}

func (im *Importer) findByTitle(ctx context.Context, title string) (*catalog.ItemDTO, error) {
	params := pagination.Params{Limit: pagination.MaxLimit}
	for {
		page, err := im.catalog.ListItems(ctx, catalog.ItemFilter{Query: title, IncludeArchived: true}, params)
		if err != nil {
			return nil, err
		}
		for i := range page.Items {
			if page.Items[i].Title == title {
				return &page.Items[i], nil
			}
		}
		if page.NextCursor == "" {
			return nil, nil
		}
		params.Cursor = page.NextCursor
	}
}

// variantInputs yields one variant per size. A row with a color but no size
// becomes a single one-size variant; a row with neither has no variants.
func variantInputs(row Row, stock int) []catalog.VariantInput {
	color := row.Color
	if len(row.Sizes) == 0 {
		if color == "" {
			return nil
		}
		return []catalog.VariantInput{{Size: oneSize, Color: color, StockQuantity: stock}}
	}
	if color == "" {
		color = unknownColor
	}
	out := make([]catalog.VariantInput, 0, len(row.Sizes))
	for _, size := range row.Sizes {
		out = append(out, catalog.VariantInput{Size: size, Color: color, StockQuantity: stock})
	}
	return out
}

func sameDescription(existing *string, raw string) bool {
	return existing != nil && *existing == raw
}
