package link

import "encoding/json"

// Document is a structured message decoded from one line of JSON.
type Document map[string]any

// dispatcher routes each extracted line to exactly one of the two
// registered handlers: JSON objects go to jsonCb, everything else
// (including JSON scalars and arrays) goes to rawCb unmodified. A parse
// failure is the designed fallback, not an error. Lines for which no
// handler is registered are dropped.
type dispatcher struct {
	jsonCb func(Document)
	rawCb  func(string)
}

func (d *dispatcher) dispatch(line string) {
	var doc Document
	if err := json.Unmarshal([]byte(line), &doc); err == nil && doc != nil {
		if d.jsonCb != nil {
			d.jsonCb(doc)
		}
		return
	}
	if d.rawCb != nil {
		d.rawCb(line)
	}
}
