package jsonrepair

import (
	"encoding/json"
	"fmt"
)

// Items repairs raw and returns the elements of its item array: the
// top-level array itself, the array under "items" of a top-level object, or
// the only field of an object holding nothing but one array. Any other lone
// object is taken as a single item.
func Items(raw string) ([]json.RawMessage, Result, error) {
	res, err := Repair(raw)
	if err != nil {
		return nil, res, err
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(res.JSON, &arr); err == nil {
		return arr, res, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(res.JSON, &obj); err != nil {
		return nil, res, fmt.Errorf("jsonrepair: decode: %w", err)
	}
	if v, ok := obj["items"]; ok {
		if err := json.Unmarshal(v, &arr); err == nil {
			return arr, res, nil
		}
		return nil, res, fmt.Errorf("jsonrepair: \"items\" is not an array")
	}
	if len(obj) == 1 {
		for _, v := range obj {
			if err := json.Unmarshal(v, &arr); err == nil {
				return arr, res, nil
			}
		}
	}
	if len(obj) == 0 {
		return nil, res, fmt.Errorf("jsonrepair: no item array found")
	}
	return []json.RawMessage{json.RawMessage(res.JSON)}, res, nil
}
