package domain

import "time"

// Folder routes an expense both to a spreadsheet label and a Drive
// destination. The set is closed; anything the model invents collapses to
// FolderUnknown during normalization.
type Folder string

const (
	FolderSalitre       Folder = "Salitre"
	FolderTramonte      Folder = "Tramonte"
	FolderVilla         Folder = "Villa"
	FolderManuelaSancho Folder = "Manuela Sancho"
	FolderUnknown       Folder = "Unknown"
)

// Folders lists every valid folder value.
var Folders = []Folder{FolderSalitre, FolderTramonte, FolderVilla, FolderManuelaSancho, FolderUnknown}

// ParseFolder maps a raw string onto the closed folder set, coercing
// unrecognized values to FolderUnknown.
func ParseFolder(s string) Folder {
	for _, f := range Folders {
		if string(f) == s {
			return f
		}
	}
	return FolderUnknown
}

// Categories is the expense taxonomy the extraction prompt instructs the
// model to use. Unlike folders it is advisory: unrecognized categories pass
// through to the sheet untouched.
var Categories = []string{
	"Rent",
	"Utilities",
	"Internet & Phone",
	"Electricity",
	"Water",
	"Gas",
	"Cleaning",
	"Transportation",
	"Insurance",
	"Taxes",
	"HOA / Community Fees",
	"Subscriptions",
	"Miscellaneous",
}

// KnownCategory reports whether c belongs to the configured taxonomy.
func KnownCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ExtractionResult is the normalized, fully-typed form of what the model
// returned. Nil pointers mean the model reported null or omitted the field;
// defaulting beyond folder/valid_expense is the persistence layer's concern.
type ExtractionResult struct {
	Concept      string
	Amount       *float64
	Category     string
	Subcategory  *string
	Currency     *string
	Date         string // ISO date or event-timestamp layout, may be empty
	Folder       Folder
	ValidExpense bool
	Message      *string // model-supplied explanation for rejected expenses
}

// PersistedRecord is the single row written to the spreadsheet for a
// successfully processed event. Created once, never mutated.
type PersistedRecord struct {
	Timestamp time.Time
	SenderID  string
	Result    ExtractionResult
	FileLink  string // empty when the event carried no media or upload failed
}

// TimestampLayout is the event-timestamp format used in sheet rows, Drive
// filenames and date fallbacks.
const TimestampLayout = "2006-01-02 15:04:05"

// Row renders the fixed-order spreadsheet row:
// date, concept, amount, currency, category, subcategory, sender, event
// timestamp, file link. Column order is part of the external contract.
func (r *PersistedRecord) Row() []any {
	row := []any{
		r.Result.Date,
		r.Result.Concept,
		nil,
		nil,
		r.Result.Category,
		nil,
		r.SenderID,
		r.Timestamp.Format(TimestampLayout),
		r.FileLink,
	}
	if r.Result.Amount != nil {
		row[2] = *r.Result.Amount
	}
	if r.Result.Currency != nil {
		row[3] = *r.Result.Currency
	}
	if r.Result.Subcategory != nil {
		row[5] = *r.Result.Subcategory
	}
	return row
}
