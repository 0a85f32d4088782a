package extract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"gastobot/internal/domain"
)

// ErrMalformed marks raw payloads that could not be parsed or validated
// against the extraction schema. The dispatcher maps it to the
// malformed-result failure class.
var ErrMalformed = errors.New("malformed extraction result")

// rawResult mirrors the JSON contract with the model before any domain
// rules are applied. Pointers keep "null"/omitted distinguishable from zero
// values.
type rawResult struct {
	Concept      string   `json:"concept" validate:"max=500"`
	Amount       *float64 `json:"amount"`
	Category     string   `json:"category" validate:"max=100"`
	Subcategory  *string  `json:"subcategory" validate:"omitempty,max=100"`
	Currency     *string  `json:"currency" validate:"omitempty,max=8"`
	Date         *string  `json:"date" validate:"omitempty,max=32"`
	Folder       *string  `json:"folder"`
	ValidExpense *bool    `json:"valid_expense"`
	Message      *string  `json:"message"`
}

var validate = validator.New()

// Normalize parses rawText as JSON and applies the domain defaults: a
// missing or out-of-enum folder collapses to Unknown, a missing
// valid_expense defaults to false. Missing amount/currency/date flow through
// as nil — defaulting those is the persistence layer's concern. On any parse
// or schema failure it returns ErrMalformed and no partial data.
func Normalize(rawText string) (*domain.ExtractionResult, error) {
	// Unmarshal rejects trailing data after the JSON object, so a chatty
	// model suffix fails here instead of slipping through.
	var raw rawResult
	if err := json.Unmarshal([]byte(rawText), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := validate.Struct(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := &domain.ExtractionResult{
		Concept:     raw.Concept,
		Amount:      raw.Amount,
		Category:    raw.Category,
		Subcategory: raw.Subcategory,
		Currency:    raw.Currency,
		Folder:      domain.FolderUnknown,
		Message:     raw.Message,
	}
	if raw.Date != nil {
		out.Date = *raw.Date
	}
	if raw.Folder != nil {
		out.Folder = domain.ParseFolder(*raw.Folder)
	}
	if raw.ValidExpense != nil {
		out.ValidExpense = *raw.ValidExpense
	}
	return out, nil
}
