package task

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// buildSet renders the SET clause for UpdateFields. Columns are emitted in
// sorted order; placeholder renders the i-th (1-based) bind parameter.
func buildSet(fields map[string]any, placeholder func(i int) string) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("update: no fields")
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		v := fields[k]
		switch k {
		case FieldTitle, FieldDescription:
			if _, ok := v.(string); !ok {
				return "", nil, fmt.Errorf("update: bad value for %s: %T", k, v)
			}
		case FieldStatus:
			st, ok := v.(Status)
			if !ok {
				return "", nil, fmt.Errorf("update: bad value for %s: %T", k, v)
			}
			v = string(st)
		case FieldUpdatedAt:
			if _, ok := v.(time.Time); !ok {
				return "", nil, fmt.Errorf("update: bad value for %s: %T", k, v)
			}
		default:
			return "", nil, fmt.Errorf("update: unknown field %q", k)
		}
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("%s = %s", k, placeholder(len(args))))
	}
	return strings.Join(clauses, ", "), args, nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		normalize(&t)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// normalize pins timestamps to UTC so every backend serializes alike.
func normalize(t *Task) {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
}
