package http

import (
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"dashboard/internal/dataset"
)

const dateLayout = "2006-01-02"

type avocadoPricesQuery struct {
	Geography []string  `query:"geography" validate:"dive,max=128"`
	Type      []string  `query:"type" validate:"dive,max=64"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
	MinPrice  *float64  `query:"min_price" validate:"omitempty,gte=0"`
	MaxPrice  *float64  `query:"max_price" validate:"omitempty,gte=0"`
}

type topMoviesQuery struct {
	N        int      `query:"n" validate:"gte=1,lte=100"`
	Genre    string   `query:"genre" validate:"max=64"`
	YearFrom *float64 `query:"year_from" validate:"omitempty,gte=1800,lte=2200"`
	YearTo   *float64 `query:"year_to" validate:"omitempty,gte=1800,lte=2200"`
	MinCount int      `query:"min_count" validate:"gte=0"`
	Sort     string   `query:"sort" validate:"omitempty,caseinsensitiveoneof=rating count"`
}

type genresQuery struct {
	N int `query:"n" validate:"gte=0,lte=100"`
}

type userFrequencyQuery struct {
	Bins int `query:"bins" validate:"gte=1,lte=500"`
}

type heatmapQuery struct {
	Sample int    `query:"sample" validate:"gte=1,lte=10000"`
	Seed   uint64 `query:"seed"`
}

type refreshQuery struct {
	Name string `query:"name" validate:"omitempty,dataset"`
}

// Violation describes one rejected query parameter.
type Violation struct {
	Field     string `json:"field"`
	Violation string `json:"violation"`
	Message   string `json:"message"`
}

// BadRequestError carries every violation found in a request.
type BadRequestError struct {
	Violations []Violation
}

func (e *BadRequestError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("query"), ","); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("caseinsensitiveoneof", caseInsensitiveOneOf)
	_ = v.RegisterValidation("dataset", knownDataset)
	return v
}

func caseInsensitiveOneOf(fl validator.FieldLevel) bool {
	val := strings.ToLower(fl.Field().String())
	for _, c := range strings.Fields(strings.ToLower(fl.Param())) {
		if val == c {
			return true
		}
	}
	return false
}

func knownDataset(fl validator.FieldLevel) bool {
	_, err := dataset.Lookup(fl.Field().String())
	return err == nil
}

// queryParser reads typed parameters and remembers every malformed one.
type queryParser struct {
	values     url.Values
	violations []Violation
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (p *queryParser) fail(name, kind string) {
	p.violations = append(p.violations, Violation{
		Field:     name,
		Violation: "type",
		Message:   fmt.Sprintf("%s must be %s", name, kind),
	})
}

func (p *queryParser) raw(name string) string {
	return strings.TrimSpace(p.values.Get(name))
}

func (p *queryParser) String(name string) string {
	return p.raw(name)
}

// Strings accepts repeated and comma-separated values.
func (p *queryParser) Strings(name string) []string {
	var out []string
	for _, v := range p.values[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (p *queryParser) Int(name string, def int) int {
	v := p.raw(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, "an integer")
		return def
	}
	return n
}

func (p *queryParser) Uint64(name string, def uint64) uint64 {
	v := p.raw(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.fail(name, "a non-negative integer")
		return def
	}
	return n
}

func (p *queryParser) Float(name string) *float64 {
	v := p.raw(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(name, "a number")
		return nil
	}
	return &f
}

func (p *queryParser) Date(name string) time.Time {
	v := p.raw(name)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		p.fail(name, "a date formatted as YYYY-MM-DD")
		return time.Time{}
	}
	return t
}

// check runs struct validation and returns every problem found, including
// malformed parameters collected while parsing.
func (s *Server) check(p *queryParser, q any) error {
	violations := p.violations
	if err := s.validate.Struct(q); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ves {
				violations = append(violations, Violation{
					Field:     fe.Field(),
					Violation: fe.Tag(),
					Message:   violationMessage(fe),
				})
			}
		} else {
			return err
		}
	}
	if len(violations) > 0 {
		return &BadRequestError{Violations: violations}
	}
	return nil
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "caseinsensitiveoneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "dataset":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(dataset.Names(), ", "))
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func rangeViolation(field, lower string) Violation {
	return Violation{
		Field:     field,
		Violation: "range",
		Message:   fmt.Sprintf("%s must not be before %s", field, lower),
	}
}
