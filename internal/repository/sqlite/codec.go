package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/sakif/vinyl-storefront/internal/model"
)

// ON-DISK ENCODING OF SEQUENCE COLUMNS:
// Vinyls.descripcion, Vinyls.tracklist and Orders.orderDetails hold JSON
// arrays as TEXT. Writes always go through the encode functions and reads
// through the decode functions, so the format is applied symmetrically.
// A nil slice is written as "[]" and every decode returns a non-nil slice.

func encodeStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding string list: %w", err)
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}, fmt.Errorf("sqlite: decoding string list: %w", err)
	}
	if out == nil { // the text was "null"
		out = []string{}
	}
	return out, nil
}

func encodeOrderLines(lines []model.OrderLine) (string, error) {
	if lines == nil {
		lines = []model.OrderLine{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding order details: %w", err)
	}
	return string(b), nil
}

func decodeOrderLines(s string) ([]model.OrderLine, error) {
	out := []model.OrderLine{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []model.OrderLine{}, fmt.Errorf("sqlite: decoding order details: %w", err)
	}
	if out == nil {
		out = []model.OrderLine{}
	}
	return out, nil
}
