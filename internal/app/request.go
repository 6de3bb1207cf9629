package app

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrURLNotFound is returned by Refresh when nothing was ever stored for the
// requested URL.
var ErrURLNotFound = errors.New("url was not found")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request is a crawl or refresh of URL, Depth levels deep.
type Request struct {
	URL   string `json:"url" validate:"required,http_url"`
	Depth *int   `json:"depth" validate:"required,min=0"`
}

// MaxDepth is the requested depth, zero when unset.
func (r Request) MaxDepth() int {
	if r.Depth == nil {
		return 0
	}
	return *r.Depth
}

// ValidationError carries the messages for every field that failed.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, strings.Join(e.Fields[name], " "))
	}
	return "invalid request: " + strings.Join(parts, " ")
}

// Message is the first problem found, for one-line reports.
func (e *ValidationError) Message() string {
	for _, name := range []string{"url", "depth"} {
		if msgs := e.Fields[name]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return "The given data was invalid."
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// NewRequest builds a request from values that are already typed.
func NewRequest(rawURL string, depth int) Request {
	return Request{URL: rawURL, Depth: &depth}
}

// ParseRequest builds a request from raw query or form values and validates
// it.
func ParseRequest(rawURL, rawDepth string) (Request, error) {
	req := Request{URL: strings.TrimSpace(rawURL)}
	verr := &ValidationError{}

	if rawDepth = strings.TrimSpace(rawDepth); rawDepth != "" {
		depth, err := strconv.Atoi(rawDepth)
		if err != nil {
			verr.add("depth", "The depth must be an integer.")
		} else {
			req.Depth = &depth
		}
	}

	if err := req.Validate(); err != nil {
		var fieldErr *ValidationError
		if !errors.As(err, &fieldErr) {
			return req, err
		}
		for field, msgs := range fieldErr.Fields {
			if _, seen := verr.Fields[field]; seen {
				continue
			}
			for _, msg := range msgs {
				verr.add(field, msg)
			}
		}
	}

	if len(verr.Fields) > 0 {
		return req, verr
	}

	return req, nil
}

// Validate checks that URL is an absolute http(s) URL and Depth a
// non-negative integer.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "http_url", "url":
		return fmt.Sprintf("The %s must be a valid URL.", fe.Field())
	case "min":
		return fmt.Sprintf("The %s must be at least %s.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", fe.Field())
	}
}
