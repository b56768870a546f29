package endpoint

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// defaultFieldLimit is the maximum byte length of a decoded value when a field
// has no maxLength tag.
var defaultFieldLimit int64 = 16 * 1024 // 16KB

// Unmarshal populates dst (must be a non-nil pointer to a struct) from the
// request.
//
// Supported struct tags:
//   - `body:""` reads the whole request body into a string or []byte field.
//     At most one field may carry it.
//   - `header:"Name"` reads a header into a string or []string field. An empty
//     name defaults to the field name.
//   - `maxLength:"n"` caps the byte length of the value. Without it a limit of
//     16KB applies; `maxLength:"0"` disables the limit.
//
// Fields without data are left unchanged.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}
	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct (or pointer to struct)"))
	}

	t := root.Type()
	bodySeen := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		limit, err := fieldLimit(sf)
		if err != nil {
			return Error(http.StatusInternalServerError, "", err)
		}
		fv := root.Field(i)

		if _, ok := sf.Tag.Lookup("body"); ok {
			if bodySeen {
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields: %s", sf.Name))
			}
			bodySeen = true
			if err := decodeBody(r, fv, limit); err != nil {
				return err
			}
			continue
		}
		if name, ok := sf.Tag.Lookup("header"); ok {
			if name == "" {
				name = sf.Name
			}
			if err := decodeHeader(r, fv, name, limit); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldLimit(sf reflect.StructField) (int64, error) {
	tag, ok := sf.Tag.Lookup("maxLength")
	if !ok {
		return defaultFieldLimit, nil
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(tag, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("endpoint: decode: %s: maxLength tag: %w", sf.Name, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("endpoint: decode: %s: maxLength tag must be non-negative", sf.Name)
	}
	return n, nil
}

func decodeBody(r *http.Request, fv reflect.Value, limit int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	var src io.Reader = r.Body
	if limit > 0 {
		// Read one byte past the limit to detect oversized bodies.
		src = io.LimitReader(r.Body, limit+1)
	}
	b, err := io.ReadAll(src)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body: %w", err))
		}
		return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	if limit > 0 && int64(len(b)) > limit {
		return Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body exceeds %d bytes", limit))
	}

	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(string(b))
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8:
		fv.SetBytes(b)
	default:
		return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: body: unsupported field type %s", fv.Type()))
	}
	return nil
}

func decodeHeader(r *http.Request, fv reflect.Value, name string, limit int64) error {
	values := r.Header.Values(name)
	if len(values) == 0 {
		return nil
	}
	for _, v := range values {
		if limit > 0 && int64(len(v)) > limit {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: header %s exceeds %d bytes", name, limit))
		}
	}

	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(values[0])
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.String:
		fv.Set(reflect.ValueOf(append([]string(nil), values...)).Convert(fv.Type()))
	default:
		return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: header %s: unsupported field type %s", name, fv.Type()))
	}
	return nil
}
