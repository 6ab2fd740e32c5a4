// Package model defines the data types shared across the indicator query
// pipeline: raw OHLC rows, computed result rows, and caller identity.
package model

import (
	"bytes"
	"encoding/json"
)

// OHLCRow is one observation of the pre-loaded OHLC table. Only the close
// is needed by the indicator computations.
type OHLCRow struct {
	Symbol string  `json:"symbol"`
	Date   Date    `json:"date"`
	Close  float64 `json:"close"`
}

// Field is one computed column on a result row. A nil Value marks a row
// inside the warm-up window — it is emitted as JSON null, never dropped.
type Field struct {
	Name  string
	Value *float64
}

// ResultRow is an OHLC row plus the computed indicator column(s).
// Fields keep their declared order so marshaling is deterministic and a
// cached payload is byte-identical to the freshly computed one.
type ResultRow struct {
	Symbol string
	Date   Date
	Close  float64
	Fields []Field
}

// MarshalJSON flattens the computed fields into the top-level object:
// {"symbol":...,"date":"YYYY-MM-DD","close":...,"sma_5":...}.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"symbol":`)
	sym, err := json.Marshal(r.Symbol)
	if err != nil {
		return nil, err
	}
	buf.Write(sym)
	buf.WriteString(`,"date":"`)
	buf.WriteString(r.Date.String())
	buf.WriteString(`","close":`)
	closeVal, err := json.Marshal(r.Close)
	if err != nil {
		return nil, err
	}
	buf.Write(closeVal)
	for _, f := range r.Fields {
		buf.WriteByte(',')
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if f.Value == nil {
			buf.WriteString("null")
		} else {
			v, err := json.Marshal(*f.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Identity is the resolved caller: a stable subject id plus its tier name.
// The subject comes from the external authentication collaborator and stays
// stable across credential reissues, so it is the rate-limit key.
type Identity struct {
	Subject string
	Tier    string
}
