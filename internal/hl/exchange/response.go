package exchange

import (
	"errors"
	"fmt"
	"strconv"
)

// PlaceAck is the parsed per-order status out of an /exchange response.
// Status is "resting" for a booked maker order and "filled" when the order
// executed immediately.
type PlaceAck struct {
	OID       int64
	Cloid     string
	Status    string
	TotalSize float64
	AvgPx     float64
}

// ErrRejected marks a venue-level order reject inside an otherwise OK
// response; not retriable.
var ErrRejected = errors.New("order rejected")

func parsePlaceResponse(resp map[string]any) (*PlaceAck, error) {
	status, statuses, err := splitResponse(resp)
	if err != nil {
		return nil, err
	}
	if status != "ok" {
		return nil, fmt.Errorf("%w: status %q", ErrRejected, status)
	}
	if len(statuses) == 0 {
		return nil, errors.New("empty statuses in exchange response")
	}
	entry, ok := statuses[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected status shape %T", statuses[0])
	}
	if msg, ok := entry["error"].(string); ok {
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	if resting, ok := entry["resting"].(map[string]any); ok {
		return &PlaceAck{
			OID:    int64FromAny(resting["oid"]),
			Cloid:  stringFromAny(resting["cloid"]),
			Status: "resting",
		}, nil
	}
	if filled, ok := entry["filled"].(map[string]any); ok {
		return &PlaceAck{
			OID:       int64FromAny(filled["oid"]),
			Cloid:     stringFromAny(filled["cloid"]),
			Status:    "filled",
			TotalSize: floatFromAny(filled["totalSz"]),
			AvgPx:     floatFromAny(filled["avgPx"]),
		}, nil
	}
	return nil, fmt.Errorf("unrecognized order status: %v", entry)
}

func parseCancelResponse(resp map[string]any) error {
	status, statuses, err := splitResponse(resp)
	if err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("%w: status %q", ErrRejected, status)
	}
	for _, entry := range statuses {
		if m, ok := entry.(map[string]any); ok {
			if msg, ok := m["error"].(string); ok {
				return fmt.Errorf("%w: %s", ErrRejected, msg)
			}
		}
	}
	return nil
}

func splitResponse(resp map[string]any) (string, []any, error) {
	if resp == nil {
		return "", nil, errors.New("nil exchange response")
	}
	status, _ := resp["status"].(string)
	inner, _ := resp["response"].(map[string]any)
	if inner == nil {
		return status, nil, nil
	}
	data, _ := inner["data"].(map[string]any)
	if data == nil {
		return status, nil, nil
	}
	statuses, _ := data["statuses"].([]any)
	return status, statuses, nil
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	default:
		return ""
	}
}

func int64FromAny(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int64:
		return val
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func floatFromAny(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
