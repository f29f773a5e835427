// Package jsonpath reads scalar values out of vendor JSON by gjson path,
// e.g. "data.task_id" or "data.files.0".
package jsonpath

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrInvalidJSON = errors.New("invalid json document")

// Doc is a validated JSON document.
type Doc []byte

// Decode validates raw as exactly one JSON value. Trailing bytes other than
// whitespace make the whole document invalid.
func Decode(raw []byte) (Doc, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return Doc(raw), nil
}

// Scalar renders a string, number or bool found at path. Objects, arrays,
// null and missing values yield ok=false.
func Scalar(doc Doc, path string) (string, bool) {
	path = strings.TrimSpace(path)
	if len(doc) == 0 || path == "" {
		return "", false
	}
	return render(gjson.GetBytes(doc, path))
}

// ScalarOf is Scalar over an already decoded value such as token claims.
func ScalarOf(v any, path string) (string, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return Scalar(Doc(raw), path)
}

func render(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, true
	case gjson.True, gjson.False:
		return strconv.FormatBool(r.Bool()), true
	case gjson.Number:
		return formatNumber(r), true
	}
	return "", false
}

// formatNumber keeps integer literals exact and renders integral floats
// without a fraction so a state of 1.0 compares equal to "1".
func formatNumber(r gjson.Result) string {
	if !strings.ContainsAny(r.Raw, ".eE") {
		return r.Raw
	}
	if f := r.Num; f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(r.Num, 'f', -1, 64)
}
