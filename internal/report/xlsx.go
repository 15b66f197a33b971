package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// Sheet names in the workbook written by WriteXLSX.
const (
	SheetChanges = "Changes"
	SheetErrors  = "Errors"
)

var (
	changeHeader = []string{"Type", "Champ", "Clé", "Ancien", "Nouveau", "Valeur précédente", "Nouvelle valeur", "Source"}
	errorHeader  = []string{"Erreur", "Source"}
)

// WriteXLSX writes the changes and errors of a run to a workbook at path.
func WriteXLSX(path string, sum *model.RunSummary) error {
	f := xlsx.NewFile()

	changes, err := f.AddSheet(SheetChanges)
	if err != nil {
		return eris.Wrap(err, "xlsx: add changes sheet")
	}
	addStrings(changes.AddRow(), changeHeader...)
	for _, c := range sum.Changes {
		row := changes.AddRow()
		addStrings(row, c.Category, c.Field, c.Key, c.Old, c.New)
		row.AddCell().SetFloat(c.OldValue)
		row.AddCell().SetFloat(c.NewValue)
		addStrings(row, c.Source)
	}

	errs, err := f.AddSheet(SheetErrors)
	if err != nil {
		return eris.Wrap(err, "xlsx: add errors sheet")
	}
	addStrings(errs.AddRow(), errorHeader...)
	for _, e := range sum.Errors {
		addStrings(errs.AddRow(), e.Message, e.Source)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
