package schema

import (
	"strings"
	"unicode"
)

// ValidateIdentity ensures an identity matches [A-Za-z0-9._-] with no normalization.
func ValidateIdentity(identity Identity) error {
	raw := string(identity)
	if raw == "" {
		return ErrInvalidIdentity
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidIdentity
	}
	for _, r := range raw {
		if r > unicode.MaxASCII {
			return ErrInvalidIdentity
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidIdentity
	}
	return nil
}

// NormalizeTodoItem trims the task and rejects empty tasks.
func NormalizeTodoItem(item TodoItem) (TodoItem, error) {
	task := strings.TrimSpace(item.Task)
	if task == "" {
		return TodoItem{}, ErrInvalidRequest
	}
	item.Task = task
	return item, nil
}
