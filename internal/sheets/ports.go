package sheets

import "context"

// Ports for outbound adapters.
type (
	// RowAppender writes export rows to the household spreadsheet and
	// returns a reference to the written range.
	RowAppender interface {
		AppendRows(ctx context.Context, rows [][]any) (rowRef string, err error)
	}

	// HeaderWriter makes sure the sheet carries the expected header row.
	HeaderWriter interface {
		EnsureHeader(ctx context.Context, header []string) error
	}
)
