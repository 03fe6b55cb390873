package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/getreststore/api/internal/repositories"
)

const pricesSheetName = "Prices"

var (
	errPriceAdminStoreRequired = errors.New("price admin service: price store is required")

	// ErrPriceAdminInvalidInput indicates a malformed replacement payload or spreadsheet.
	ErrPriceAdminInvalidInput = errors.New("price admin service: invalid input")
	// ErrPriceAdminUnavailable indicates the Price Store could not be read or written.
	ErrPriceAdminUnavailable = errors.New("price admin service: price store unavailable")
)

// PriceAdminServiceDeps bundles constructor inputs for the admin price editor.
type PriceAdminServiceDeps struct {
	Store  repositories.PriceStore
	Logger func(context.Context, string, map[string]any)
}

type priceAdminService struct {
	store  repositories.PriceStore
	logger func(context.Context, string, map[string]any)
}

// NewPriceAdminService constructs the admin price editor service.
func NewPriceAdminService(deps PriceAdminServiceDeps) (PriceAdminService, error) {
	if deps.Store == nil {
		return nil, errPriceAdminStoreRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &priceAdminService{store: deps.Store, logger: logger}, nil
}

// ListPrices returns the Price Store verbatim, including records the catalog
// filters out.
func (s *priceAdminService) ListPrices(ctx context.Context) ([]PriceRecord, error) {
	records, err := s.store.Load(ctx)
	if err != nil {
		s.logger(ctx, "admin.prices_read_failed", map[string]any{"error": err.Error()})
		return nil, ErrPriceAdminUnavailable
	}
	return records, nil
}

// ReplacePrices wholesale-overwrites the Price Store with the supplied array.
func (s *priceAdminService) ReplacePrices(ctx context.Context, records []PriceRecord) (int, error) {
	if records == nil {
		return 0, ErrPriceAdminInvalidInput
	}
	for _, record := range records {
		if strings.TrimSpace(record.Name) == "" {
			return 0, ErrPriceAdminInvalidInput
		}
		if record.Price < 0 {
			return 0, ErrPriceAdminInvalidInput
		}
	}

	if err := s.store.Replace(ctx, records); err != nil {
		s.logger(ctx, "admin.prices_write_failed", map[string]any{"error": err.Error()})
		return 0, ErrPriceAdminUnavailable
	}

	s.logger(ctx, "admin.prices_replaced", map[string]any{"count": len(records)})
	return len(records), nil
}

// ImportSpreadsheet parses the first sheet of an xlsx workbook into price
// records and wholesale-replaces the store. Fields absent from the sheet are
// dropped, matching the replace contract.
func (s *priceAdminService) ImportSpreadsheet(ctx context.Context, r io.Reader) (int, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPriceAdminInvalidInput, err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return 0, ErrPriceAdminInvalidInput
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPriceAdminInvalidInput, err)
	}
	if len(rows) < 2 {
		return 0, ErrPriceAdminInvalidInput
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	if _, ok := columns["name"]; !ok {
		return 0, ErrPriceAdminInvalidInput
	}
	if _, ok := columns["price"]; !ok {
		return 0, ErrPriceAdminInvalidInput
	}

	records := make([]PriceRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := strings.TrimSpace(cell(row, columns, "name"))
		if name == "" {
			continue
		}

		record := PriceRecord{Name: name}
		if price, err := strconv.ParseInt(strings.TrimSpace(cell(row, columns, "price")), 10, 64); err == nil {
			record.Price = price
		}
		if raw := strings.TrimSpace(cell(row, columns, "qty")); raw != "" {
			if qty, err := strconv.Atoi(raw); err == nil {
				record.Qty = &qty
			}
		}
		record.Hero = strings.TrimSpace(cell(row, columns, "hero"))
		records = append(records, record)
	}

	return s.ReplacePrices(ctx, records)
}

// ExportTemplate builds an xlsx workbook from the current store, one row per
// record, for round-trip editing.
func (s *priceAdminService) ExportTemplate(ctx context.Context) ([]byte, error) {
	records, err := s.ListPrices(ctx)
	if err != nil {
		return nil, err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	if err := workbook.SetSheetName(workbook.GetSheetName(0), pricesSheetName); err != nil {
		return nil, fmt.Errorf("price admin service: naming sheet: %w", err)
	}

	headers := []interface{}{"name", "hero", "qty", "price"}
	if err := workbook.SetSheetRow(pricesSheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("price admin service: writing header: %w", err)
	}

	for i, record := range records {
		var qty interface{}
		if record.Qty != nil {
			qty = *record.Qty
		}
		row := []interface{}{record.Name, record.Hero, qty, record.Price}
		axis := fmt.Sprintf("A%d", i+2)
		if err := workbook.SetSheetRow(pricesSheetName, axis, &row); err != nil {
			return nil, fmt.Errorf("price admin service: writing row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, fmt.Errorf("price admin service: serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(row []string, columns map[string]int, key string) string {
	i, ok := columns[key]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
