package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/gateway"
)

// describeError turns an error into the text shown to the user, listing
// field errors one per line and pointing at `login` when access was refused.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(err.Error())

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && len(gwErr.Fields) > 0 {
		for _, field := range slices.Sorted(maps.Keys(gwErr.Fields)) {
			fmt.Fprintf(&b, "\n  %s: %s", field, gwErr.Fields[field])
		}
	}

	switch {
	case errors.Is(err, access.ErrDenied), errors.Is(err, gateway.ErrUnauthorized):
		b.WriteString("\nRun `studygen login` first.")
	case gateway.IsTimeout(err):
		b.WriteString("\nThe server did not answer in time.")
	}
	return b.String()
}

// userError wraps err so that cobra prints the described form.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return &describedError{err: err}
}

type describedError struct {
	err error
}

func (e *describedError) Error() string { return describeError(e.err) }
func (e *describedError) Unwrap() error { return e.err }
