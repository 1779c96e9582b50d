package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"beer-scanner-backend/internal/store"
)

// historyRecord is one row of the availability history export.
type historyRecord struct {
	BarID     int64      `csv:"bar_id"`
	BeerID    int64      `csv:"beer_id"`
	Beer      string     `csv:"beer"`
	Brewery   string     `csv:"brewery"`
	Type      string     `csv:"type,omitempty"`
	AddedAt   time.Time  `csv:"added_at"`
	RemovedAt *time.Time `csv:"removed_at,omitempty"`
}

func exportHistoryCommand(configPath *string) *cobra.Command {
	var (
		barID int64
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export-history",
		Short: "Export closed availability windows as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			w := io.Writer(os.Stdout)
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := writeHistoryCSV(cmd.Context(), a.store, barID, w)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", n, out)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&barID, "bar", 0, "only export this bar (0 exports every bar)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeHistoryCSV(ctx context.Context, st store.Store, barID int64, w io.Writer) (int, error) {
	rows, err := st.ListHistory(ctx, barID)
	if err != nil {
		return 0, err
	}

	records := make([]historyRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, historyRecord{
			BarID:     r.BarID,
			BeerID:    r.BeerID,
			Beer:      r.Beer.Name,
			Brewery:   r.Beer.Brewery,
			Type:      r.Beer.Type,
			AddedAt:   r.AddedAt.UTC(),
			RemovedAt: r.RemovedAt,
		})
	}

	data, err := csvutil.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("encode history: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	return len(records), nil
}
