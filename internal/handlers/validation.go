package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"task-tracker-api/internal/models"
	"task-tracker-api/internal/service"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError describes one invalid input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Path == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Path+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ParseError is returned for input that is not JSON at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "malformed JSON input: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// payload holds the raw JSON value of every top-level input field.
type payload map[string]json.RawMessage

var jsonNull = []byte("null")

// decodePayload parses a procedure input. An empty or null input decodes to
// an empty payload; unknown keys are kept and ignored by the readers.
func decodePayload(raw []byte) (payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return payload{}, nil
	}
	if !json.Valid(raw) {
		var v any
		return nil, &ParseError{Err: json.Unmarshal(raw, &v)}
	}
	p := payload{}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Message: "input must be an object"}}}
	}
	return p, nil
}

// fieldReader decodes payload fields and collects every failure.
type fieldReader struct {
	p    payload
	errs []FieldError
}

func newFieldReader(p payload) *fieldReader {
	return &fieldReader{p: p}
}

func (r *fieldReader) fail(path, format string, args ...any) {
	r.errs = append(r.errs, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *fieldReader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: r.errs}
}

// lookup returns the raw value and whether the key was sent. A sent null is
// reported with isNull.
func (r *fieldReader) lookup(key string) (raw json.RawMessage, sent, isNull bool) {
	raw, sent = r.p[key]
	if !sent {
		return nil, false, false
	}
	raw = bytes.TrimSpace(raw)
	return raw, true, bytes.Equal(raw, jsonNull)
}

func (r *fieldReader) str(key string, raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		r.fail(key, "expected string")
		return "", false
	}
	return s, true
}

// id reads a required integer id.
func (r *fieldReader) id() int64 {
	raw, sent, isNull := r.lookup("id")
	if !sent || isNull {
		r.fail("id", "id is required")
		return 0
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		r.fail("id", "expected integer")
		return 0
	}
	return id
}

func (r *fieldReader) title(raw json.RawMessage) (string, bool) {
	s, ok := r.str("title", raw)
	if !ok {
		return "", false
	}
	// blank titles are rejected, but the stored (untrimmed) value is what must fit
	if err := validate.Var(strings.TrimSpace(s), "min=1"); err != nil {
		r.fail("title", "Title is required")
		return "", false
	}
	if err := validate.Var(s, "max=200"); err != nil {
		r.fail("title", "Title too long")
		return "", false
	}
	return s, true
}

func (r *fieldReader) description(raw json.RawMessage) (string, bool) {
	s, ok := r.str("description", raw)
	if !ok {
		return "", false
	}
	if err := validate.Var(s, "max=1000"); err != nil {
		r.fail("description", "Description too long")
		return "", false
	}
	return s, true
}

func (r *fieldReader) status(key string, raw json.RawMessage) (models.TaskStatus, bool) {
	s, ok := r.str(key, raw)
	if !ok {
		return "", false
	}
	if err := validate.Var(s, "oneof=pending completed"); err != nil {
		r.fail(key, "expected one of pending, completed")
		return "", false
	}
	return models.TaskStatus(s), true
}

func (r *fieldReader) priority(key string, raw json.RawMessage) (models.TaskPriority, bool) {
	s, ok := r.str(key, raw)
	if !ok {
		return "", false
	}
	if err := validate.Var(s, "oneof=low medium high"); err != nil {
		r.fail(key, "expected one of low, medium, high")
		return "", false
	}
	return models.TaskPriority(s), true
}

func (r *fieldReader) dueDate(raw json.RawMessage) (time.Time, bool) {
	t, err := parseDueDate(raw)
	if err != nil {
		r.fail("due_date", "%s", err.Error())
		return time.Time{}, false
	}
	return t, true
}

// parseCreateInput validates a createTask payload. Absent description and
// due_date are stored as null.
func parseCreateInput(p payload) (service.CreateInput, error) {
	r := newFieldReader(p)
	var in service.CreateInput

	if raw, sent, isNull := r.lookup("title"); !sent || isNull {
		r.fail("title", "Title is required")
	} else if v, ok := r.title(raw); ok {
		in.Title = v
	}

	if raw, sent, isNull := r.lookup("description"); sent && !isNull {
		if v, ok := r.description(raw); ok {
			in.Description = &v
		}
	}

	in.Priority = models.PriorityMedium
	if raw, sent, isNull := r.lookup("priority"); isNull {
		r.fail("priority", "expected one of low, medium, high")
	} else if sent {
		if v, ok := r.priority("priority", raw); ok {
			in.Priority = v
		}
	}

	if raw, sent, isNull := r.lookup("due_date"); sent && !isNull {
		if v, ok := r.dueDate(raw); ok {
			in.DueDate = &v
		}
	}

	return in, r.err()
}

// parseUpdateInput validates an updateTask payload. Absent fields are left
// unchanged; null clears description and due_date.
func parseUpdateInput(p payload) (service.UpdateInput, error) {
	r := newFieldReader(p)
	in := service.UpdateInput{ID: r.id()}

	if raw, sent, isNull := r.lookup("title"); isNull {
		r.fail("title", "Title is required")
	} else if sent {
		if v, ok := r.title(raw); ok {
			in.Patch.Title = models.Some(v)
		}
	}

	if raw, sent, isNull := r.lookup("description"); isNull {
		in.Patch.Description = models.Null[string]()
	} else if sent {
		if v, ok := r.description(raw); ok {
			in.Patch.Description = models.Some(v)
		}
	}

	if raw, sent, isNull := r.lookup("status"); isNull {
		r.fail("status", "expected one of pending, completed")
	} else if sent {
		if v, ok := r.status("status", raw); ok {
			in.Patch.Status = models.Some(v)
		}
	}

	if raw, sent, isNull := r.lookup("priority"); isNull {
		r.fail("priority", "expected one of low, medium, high")
	} else if sent {
		if v, ok := r.priority("priority", raw); ok {
			in.Patch.Priority = models.Some(v)
		}
	}

	if raw, sent, isNull := r.lookup("due_date"); isNull {
		in.Patch.DueDate = models.Null[time.Time]()
	} else if sent {
		if v, ok := r.dueDate(raw); ok {
			in.Patch.DueDate = models.Some(v)
		}
	}

	return in, r.err()
}

// parseFilter validates a getTasks payload. Null filters are treated as absent.
func parseFilter(p payload) (models.TaskFilter, error) {
	r := newFieldReader(p)
	var filter models.TaskFilter

	if raw, sent, isNull := r.lookup("status"); sent && !isNull {
		if v, ok := r.status("status", raw); ok {
			filter.Status = &v
		}
	}
	if raw, sent, isNull := r.lookup("priority"); sent && !isNull {
		if v, ok := r.priority("priority", raw); ok {
			filter.Priority = &v
		}
	}
	return filter, r.err()
}

// parseID validates a payload that carries only an id.
func parseID(p payload) (int64, error) {
	r := newFieldReader(p)
	id := r.id()
	return id, r.err()
}
