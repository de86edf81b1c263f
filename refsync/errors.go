// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"errors"
	"fmt"
)

// ErrNotSignedIn is returned synchronously by operations that hard-require a
// remote identity. Local-only mutations never return it; they are accepted
// and queued regardless of auth state.
var ErrNotSignedIn = errors.New("refsync: not signed in")

// PermanentError marks a failure that cannot succeed by retrying, such as a
// structurally invalid payload rejected by the server. The coordinator logs
// and abandons the operation instead of backing off.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so IsPermanent reports true for it. A nil err returns
// nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
