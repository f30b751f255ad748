package recon

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadGatewayCSV reads a gateway export with headers:
// date,id,counterparty_ref,amount
// amount is a decimal string parsed into minor units (x100).
func ReadGatewayCSV(path string) ([]GatewayEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	col, err := headerIndex(r, []string{"date", "id", "amount"})
	if err != nil {
		return nil, err
	}
	refCol, hasRef := col["counterparty_ref"]

	var out []GatewayEntry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		minor, err := ParseDecimalToMinor(rec[col["amount"]])
		if err != nil {
			return nil, fmt.Errorf("row id=%s amount parse: %w", rec[col["id"]], err)
		}
		e := GatewayEntry{
			Date:        rec[col["date"]],
			ID:          rec[col["id"]],
			AmountMinor: minor,
		}
		if hasRef {
			e.Counterpart = rec[refCol]
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadRecordedCSV reads the wallet-side export with headers: date,amount.
func ReadRecordedCSV(path string) ([]RecordedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	col, err := headerIndex(r, []string{"date", "amount"})
	if err != nil {
		return nil, err
	}

	var out []RecordedEntry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		minor, err := ParseDecimalToMinor(rec[col["amount"]])
		if err != nil {
			return nil, fmt.Errorf("row date=%s amount parse: %w", rec[col["date"]], err)
		}
		out = append(out, RecordedEntry{Date: rec[col["date"]], AmountMinor: minor})
	}
	return out, nil
}

func headerIndex(r *csv.Reader, required []string) (map[string]int, error) {
	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, k := range required {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("missing column: %s", k)
		}
	}
	return idx, nil
}

// ParseDecimalToMinor converts "1234.56" -> 123456 minor units (2 decimals).
// Tolerates a comma decimal separator and thousand separators.
func ParseDecimalToMinor(s string) (int64, error) {
	s = strings.TrimSpace(strings.Trim(s, "\""))
	if s == "" {
		return 0, nil
	}
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	s = strings.ReplaceAll(s, " ", "")

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		fracPart = fracPart[:2]
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}
	v, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
