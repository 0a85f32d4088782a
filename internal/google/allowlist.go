package google

import (
	"context"
	"fmt"
	"log/slog"
)

// SheetAllowList reads the permitted sender ids from a spreadsheet range.
// It is fetched on every call: the sheet is the source of truth and edits
// take effect on the next event, at the cost of one extra read per message.
// Implements domain.AllowList.
type SheetAllowList struct {
	sheets *Sheets
	rng    string
	logger *slog.Logger
}

func NewSheetAllowList(sheets *Sheets, rng string, logger *slog.Logger) *SheetAllowList {
	if rng == "" {
		rng = "Users!A:A"
	}
	return &SheetAllowList{sheets: sheets, rng: rng, logger: logger}
}

// Allowed reports whether senderID appears in the allow-list range.
func (a *SheetAllowList) Allowed(ctx context.Context, senderID string) (bool, error) {
	users, err := a.sheets.ReadColumn(ctx, a.rng)
	if err != nil {
		return false, fmt.Errorf("fetch allow-list: %w", err)
	}

	for _, u := range users {
		if u == senderID {
			return true, nil
		}
	}
	a.logger.Warn("sender not in allow-list", "sender", senderID, "list_size", len(users))
	return false, nil
}
