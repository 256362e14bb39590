package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vsinha/picktrack/pkg/application/services/explosion"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/services"
	"github.com/vsinha/picktrack/pkg/infrastructure/config"
	bomcsv "github.com/vsinha/picktrack/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/xlsx"
)

// loadTable reads a spreadsheet by extension: .xlsx through excelize,
// anything else as delimited text
func loadTable(path, sheet string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return xlsx.LoadTable(path, sheet)
	}
	return bomcsv.LoadTable(path)
}

// LoadInstances flattens the BOM of every tool in the manifest into the
// purchased leaf parts of one instance. A BOM that cannot be parsed yields
// an empty instance and warnings; only unreadable files are errors.
// Structural problems found by the BOM validator are reported as warnings.
func LoadInstances(m *config.Manifest) ([]explosion.Instance, []string, error) {
	var warnings []string
	validator := services.NewBOMValidator()
	instances := make([]explosion.Instance, 0, len(m.Tools))

	for _, tool := range m.Tools {
		table, err := loadTable(tool.BOM, m.Sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("tool %s: %w", tool.Label, err)
		}

		rows, rowWarnings := bomcsv.ParseBOMRows(table)
		structure := validator.ValidateBOM(rows)
		leaves, flatWarnings := explosion.Flatten(rows)
		for _, w := range append(append(rowWarnings, structure.Errors...), flatWarnings...) {
			warnings = append(warnings, fmt.Sprintf("%s: %s", tool.Label, w))
		}

		instances = append(instances, explosion.Instance{
			ID:     entities.InstanceID(tool.Label),
			Leaves: explosion.RetainPurchased(leaves),
		})
	}
	return instances, warnings, nil
}

// LoadCatalogFile reads the optional part catalog named by the manifest
func LoadCatalogFile(m *config.Manifest) ([]*entities.CatalogEntry, error) {
	if m.Catalog == "" {
		return nil, nil
	}
	table, err := loadTable(m.Catalog, "")
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	entries, err := bomcsv.ParseCatalog(table)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", m.Catalog, err)
	}
	return entries, nil
}
