package memory

import "fmt"

type duplicateError struct{ constraint string }

func (e duplicateError) Error() string {
	return fmt.Sprintf("duplicate key value violates unique constraint %q", e.constraint)
}

func errDuplicate(constraint string) error {
	return duplicateError{constraint: constraint}
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
