package search

import (
	"bytes"
	"encoding/json"
	"strings"
)

// normaliseRows converts raw FOFA rows into records. It always returns a non-nil slice.
func normaliseRows(rows []json.RawMessage) []AssetRecord {
	records := make([]AssetRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, normaliseRow(row))
	}
	return records
}

func normaliseRow(row json.RawMessage) AssetRecord {
	values := rowValues(row)
	get := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}

	return AssetRecord{
		IP:    get(0),
		Port:  get(1),
		Title: get(2),
		Host:  get(3),
	}
}

func rowValues(row json.RawMessage) []string {
	trimmed := bytes.TrimSpace(row)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] != '[' {
		return []string{scalarString(trimmed)}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil
	}
	values := make([]string, len(elems))
	for i, e := range elems {
		values[i] = scalarString(e)
	}
	return values
}

// scalarString renders a JSON value as a plain string. null becomes "".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(raw)
}
