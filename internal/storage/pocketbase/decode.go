package pocketbase

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Форматы дат PocketBase: старые версии отдают "2006-01-02 15:04:05.000Z".
var timeLayouts = []string{
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z",
	time.RFC3339Nano,
}

// служебные поля ответа, которые не попадают в Record.Fields
var systemFields = map[string]struct{}{
	"id":             {},
	"collectionId":   {},
	"collectionName": {},
	"created":        {},
	"updated":        {},
	"expand":         {},
}

func decodeRecord(collection string, raw map[string]any) domain.Record {
	rec := domain.Record{
		Collection: collection,
		Fields:     make(map[string]any, len(raw)),
	}
	if name, ok := raw["collectionName"].(string); ok && name != "" {
		rec.Collection = name
	}
	if id, ok := raw["id"].(string); ok {
		rec.ID = id
	}
	rec.Created = parseTime(raw["created"])
	rec.Updated = parseTime(raw["updated"])

	for k, v := range raw {
		if _, skip := systemFields[k]; skip {
			continue
		}
		rec.Fields[k] = v
	}

	if expand, ok := raw["expand"].(map[string]any); ok && len(expand) > 0 {
		rec.Expand = make(map[string]any, len(expand))
		for field, v := range expand {
			rec.Expand[field] = decodeExpanded(v)
		}
	}
	return rec
}

// decodeExpanded превращает объект в Record, массив объектов в []Record;
// прочие значения остаются как есть, их отбрасывает читатель.
func decodeExpanded(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return decodeRecord("", t)
	case []any:
		out := make([]domain.Record, 0, len(t))
		for _, el := range t {
			obj, ok := el.(map[string]any)
			if !ok {
				return v
			}
			out = append(out, decodeRecord("", obj))
		}
		return out
	default:
		return v
	}
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
