// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/journal"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	Mint      string       // Filter by asset mint
	Kind      journal.Kind // Filter by activity
	OutputDir string
}

func (o Options) filter() journal.Filter {
	return journal.Filter{Since: o.StartTime, Until: o.EndTime, Mint: o.Mint, Kind: o.Kind}
}

// Source supplies journal entries.
type Source interface {
	Entries(f journal.Filter) []journal.Entry
}

// Exporter writes journal history and asset snapshots to files
type Exporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export writes the entries of src matching options and returns the path.
// JSON exports also carry a summary and the given asset snapshots.
func (e *Exporter) Export(src Source, sales []*domain.AssetSale, options Options) (string, error) {
	entries := src.Entries(options.filter())
	if len(entries) == 0 {
		return "", fmt.Errorf("no journal entries match the export criteria")
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = e.writeCSV(entries, outputPath)
	case FormatJSON:
		err = e.writeJSON(entries, sales, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("count", len(entries)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func (e *Exporter) filename(options Options) string {
	prefix := "journal_all"
	if options.Kind != "" {
		prefix = "journal_" + string(options.Kind)
	}
	if len(options.Mint) >= 8 {
		prefix += "_" + options.Mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), options.Format)
}

func (e *Exporter) writeCSV(entries []journal.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(journal.CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i := range entries {
		if err := writer.Write(entries[i].ToCSV()); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", entries[i].Seq, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Document is the JSON export layout.
type Document struct {
	ExportTime time.Time           `json:"export_time"`
	EntryCount int                 `json:"entry_count"`
	Summary    Summary             `json:"summary"`
	Assets     []*domain.AssetSale `json:"assets,omitempty"`
	Entries    []journal.Entry     `json:"entries"`
}

func (e *Exporter) writeJSON(entries []journal.Entry, sales []*domain.AssetSale, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	doc := Document{
		ExportTime: e.now().UTC(),
		EntryCount: len(entries),
		Summary:    Summarize(entries),
		Assets:     sales,
		Entries:    entries,
	}
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary contains statistics over exported entries. Amounts are lamports.
type Summary struct {
	TotalEntries    int       `json:"total_entries"`
	Launches        int       `json:"launches"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	Migrations      int       `json:"migrations"`
	UniqueAssets    int       `json:"unique_assets"`
	UniqueTraders   int       `json:"unique_traders"`
	BuyVolume       uint64    `json:"buy_volume"`
	SellVolume      uint64    `json:"sell_volume"`
	FeesCharged     uint64    `json:"fees_charged"`
	FeesWithdrawn   uint64    `json:"fees_withdrawn"`
	LiquidityMoved  uint64    `json:"liquidity_moved"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	HourlyBreakdown []Hourly  `json:"hourly_breakdown"`
}

// Hourly represents trading statistics for an hour of the day.
type Hourly struct {
	Hour   int    `json:"hour"`
	Trades int    `json:"trades"`
	Volume uint64 `json:"volume"`
}

// Summarize computes statistics over entries in sequence order.
func Summarize(entries []journal.Entry) Summary {
	s := Summary{TotalEntries: len(entries)}
	if len(entries) == 0 {
		return s
	}
	s.StartDate = entries[0].Time
	s.EndDate = entries[len(entries)-1].Time

	assets := make(map[string]bool)
	traders := make(map[string]bool)
	hourly := make(map[int]*Hourly)
	for i := range entries {
		en := &entries[i]
		if en.Mint != "" {
			assets[en.Mint] = true
		}
		switch en.Kind {
		case journal.KindLaunch:
			s.Launches++
			s.FeesCharged += en.Fee
		case journal.KindBuy, journal.KindSell:
			traders[en.Actor] = true
			s.FeesCharged += en.Fee
			if en.Kind == journal.KindBuy {
				s.BuyCount++
				s.BuyVolume += en.Funds
			} else {
				s.SellCount++
				s.SellVolume += en.Funds
			}
			h := en.Time.UTC().Hour()
			if hourly[h] == nil {
				hourly[h] = &Hourly{Hour: h}
			}
			hourly[h].Trades++
			hourly[h].Volume += en.Funds
		case journal.KindMigrate:
			s.Migrations++
			s.FeesCharged += en.Fee
			s.LiquidityMoved += en.Funds
		case journal.KindWithdraw:
			s.FeesWithdrawn += en.Total
		}
	}
	s.UniqueAssets = len(assets)
	s.UniqueTraders = len(traders)
	for hour := 0; hour < 24; hour++ {
		if h, ok := hourly[hour]; ok {
			s.HourlyBreakdown = append(s.HourlyBreakdown, *h)
		}
	}
	return s
}
