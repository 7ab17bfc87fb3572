// Package seed loads school definitions written in CUE.
//
// A school file names the owner, the members to admit and the courses to
// create:
//
//	owner: "@principal"
//	teachers: ["@turing"]
//	students: ["@alice", "@bob"]
//	courses: [{name: "Algorithms", teacher: "@turing", capacity: 30, start: "2027-01-10T09:00:00Z"}]
//
// Files are validated against an embedded schema before decoding. Apply
// replays the definition as engine commands, so every step passes the same
// permission checks as an interactive caller.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/courseswap/internal/ir"
)

//go:embed schema.cue
var schemaSrc string

// School is a decoded school definition.
type School struct {
	Owner    string      `json:"owner"`
	Teachers []string    `json:"teachers"`
	Students []string    `json:"students"`
	Courses  []CourseDef `json:"courses"`
}

// CourseDef describes one course to create.
type CourseDef struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Teacher  string `json:"teacher"`
	Capacity uint32 `json:"capacity"`
	Start    string `json:"start"`
}

// CourseID returns the explicit id when set, otherwise the hash of Name.
func (c CourseDef) CourseID() (ir.CourseID, error) {
	if c.ID != "" {
		return ir.ParseCourseID(c.ID)
	}
	return ir.CourseIDFromName(c.Name), nil
}

// StartDate parses Start as RFC 3339.
func (c CourseDef) StartDate() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("course %q: start: %w", c.Name, err)
	}
	return t.UTC(), nil
}

// LoadError reports an invalid school definition.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and validates the school definition at path.
func LoadFile(path string) (*School, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read school file: %w", err)
	}
	return Parse(path, src)
}

// Parse validates src against the school schema and decodes it.
// filename is used in error positions only.
func Parse(filename string, src []byte) (*School, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile school schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#School")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var school School
	if err := v.Decode(&school); err != nil {
		return nil, formatCUEError(err)
	}
	if err := school.check(); err != nil {
		return nil, err
	}
	return &school, nil
}

// check enforces rules the schema cannot express.
func (s *School) check() error {
	seen := make(map[ir.CourseID]string, len(s.Courses))
	for i, c := range s.Courses {
		id, err := c.CourseID()
		if err != nil {
			return &LoadError{Field: fmt.Sprintf("courses[%d].id", i), Message: err.Error()}
		}
		if prev, dup := seen[id]; dup {
			return &LoadError{Field: fmt.Sprintf("courses[%d]", i), Message: fmt.Sprintf("course %q duplicates %q", c.Name, prev)}
		}
		seen[id] = c.Name
		if _, err := c.StartDate(); err != nil {
			return &LoadError{Field: fmt.Sprintf("courses[%d].start", i), Message: err.Error()}
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
