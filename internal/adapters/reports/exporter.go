// Package reports renders inventory snapshots as CSV or JSON artifacts and
// stores them in a blob backend.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Kira-pln/inventario-tubetes/internal/blob"
	"github.com/Kira-pln/inventario-tubetes/internal/core"
)

// Format identifies a report serialization format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Kind identifies which ledger view a report covers.
type Kind string

const (
	// KindStock covers batches without a recorded withdrawal.
	KindStock Kind = "stock"
	// KindHistory covers batches with a recorded withdrawal.
	KindHistory Kind = "history"
)

// Artifact describes a stored report.
type Artifact struct {
	Key         string    `json:"key"`
	Kind        Kind      `json:"kind"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exporter renders inventory reports and persists them as blobs.
type Exporter struct {
	svc   *core.Service
	store blob.Store
	nowFn func() time.Time
}

// NewExporter constructs an Exporter over the given service and blob store.
func NewExporter(svc *core.Service, store blob.Store) *Exporter {
	return &Exporter{svc: svc, store: store, nowFn: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the exporter clock. Intended for tests.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.nowFn = now
	return e
}

// Export renders the requested report and stores it under a stable key
// derived from kind and format. Repeated exports overwrite the previous
// artifact for the same key.
func (e *Exporter) Export(ctx context.Context, kind Kind, format Format) (Artifact, error) {
	now := e.nowFn()
	var (
		payload []byte
		rows    int
		err     error
	)
	switch kind {
	case KindStock:
		payload, rows, err = e.renderStock(ctx, now, format)
	case KindHistory:
		payload, rows, err = e.renderHistory(ctx, format)
	default:
		return Artifact{}, fmt.Errorf("unsupported report kind %s", kind)
	}
	if err != nil {
		return Artifact{}, err
	}
	contentType := "text/csv"
	if format == FormatJSON {
		contentType = "application/json"
	}
	key := fmt.Sprintf("reports/%s.%s", kind, format)
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"kind": string(kind),
			"rows": strconv.Itoa(rows),
		},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store report %s: %w", key, err)
	}
	return Artifact{
		Key:         info.Key,
		Kind:        kind,
		Format:      format,
		ContentType: contentType,
		SizeBytes:   info.Size,
		Rows:        rows,
		ETag:        info.ETag,
		CreatedAt:   now,
	}, nil
}

// stockRow is the JSON shape of one current-stock line.
type stockRow struct {
	BatchID    int64     `json:"batch_id"`
	Type       string    `json:"type"`
	Desc       string    `json:"description"`
	Quantity   int       `json:"quantity"`
	EnteredAt  time.Time `json:"entered_at"`
	EligibleAt time.Time `json:"eligible_at"`
	Eligible   bool      `json:"eligible"`
}

var stockColumns = []string{"Tipo", "Descricao", "Quantidade", "Entrada", "Retirada Prevista", "Pode Retirar?"}

func (e *Exporter) renderStock(ctx context.Context, now time.Time, format Format) ([]byte, int, error) {
	entries, err := e.svc.CurrentStock(ctx, now)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]stockRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, stockRow{
			BatchID:    entry.Batch.ID,
			Type:       entry.Batch.TypeName,
			Desc:       entry.Batch.Description,
			Quantity:   entry.Batch.QuantityOnHand,
			EnteredAt:  entry.Batch.EnteredAt,
			EligibleAt: entry.Batch.EligibleAt,
			Eligible:   entry.Eligible,
		})
	}
	if format == FormatJSON {
		payload, err := json.MarshalIndent(rows, "", "  ")
		return payload, len(rows), err
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Type,
			r.Desc,
			strconv.Itoa(r.Quantity),
			r.EnteredAt.Format(time.RFC3339),
			r.EligibleAt.Format(time.RFC3339),
			yesNo(r.Eligible),
		})
	}
	payload, err := renderCSV(stockColumns, records)
	return payload, len(rows), err
}

// historyRow is the JSON shape of one withdrawal-history line.
type historyRow struct {
	BatchID      int64      `json:"batch_id"`
	Type         string     `json:"type"`
	Desc         string     `json:"description"`
	EnteredAt    time.Time  `json:"entered_at"`
	WithdrawnAt  *time.Time `json:"withdrawn_at,omitempty"`
	Quantity     *int       `json:"quantity_withdrawn,omitempty"`
	ExitHumidity *int       `json:"exit_humidity,omitempty"`
}

var historyColumns = []string{"Tipo", "Descricao", "Entrada", "Saida", "Quantidade Saida", "Umidade Saida"}

func (e *Exporter) renderHistory(ctx context.Context, format Format) ([]byte, int, error) {
	batches, err := e.svc.WithdrawalHistory(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]historyRow, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, historyRow{
			BatchID:      b.ID,
			Type:         b.TypeName,
			Desc:         b.Description,
			EnteredAt:    b.EnteredAt,
			WithdrawnAt:  b.WithdrawnAt,
			Quantity:     b.QuantityWithdrawn,
			ExitHumidity: b.ExitHumidity,
		})
	}
	if format == FormatJSON {
		payload, err := json.MarshalIndent(rows, "", "  ")
		return payload, len(rows), err
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		var exitAt, qty, humidity string
		if r.WithdrawnAt != nil {
			exitAt = r.WithdrawnAt.Format(time.RFC3339)
		}
		if r.Quantity != nil {
			qty = strconv.Itoa(*r.Quantity)
		}
		if r.ExitHumidity != nil {
			humidity = strconv.Itoa(*r.ExitHumidity)
		}
		records = append(records, []string{
			r.Type,
			r.Desc,
			r.EnteredAt.Format(time.RFC3339),
			exitAt,
			qty,
			humidity,
		})
	}
	payload, err := renderCSV(historyColumns, records)
	return payload, len(rows), err
}

func renderCSV(header []string, records [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}
