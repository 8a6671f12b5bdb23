package services

import "errors"

// Result carries the outcome of one best-effort sub-step. A zero Result with
// a nil error means the step ran and found nothing.
type Result[T any] struct {
	Value T
	Found bool
	Err   error
}

// Found wraps a successful value.
func Found[T any](value T) Result[T] {
	return Result[T]{Value: value, Found: true}
}

// Missing reports a step that ran cleanly without producing a value.
func Missing[T any]() Result[T] {
	return Result[T]{}
}

// Failed reports a step that could not complete.
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Attempt adapts a (value, ok, err) function into a Result.
func Attempt[T any](fn func() (T, bool, error)) Result[T] {
	value, ok, err := fn()
	if err != nil {
		return Failed[T](err)
	}
	if !ok {
		return Missing[T]()
	}
	return Found(value)
}

// FirstOK evaluates steps in order and returns the first one that found a
// value. Errors from earlier steps are joined into the returned error so
// callers can log them, but never stop the search.
func FirstOK[T any](steps ...func() Result[T]) (T, bool, error) {
	var errs []error
	for _, step := range steps {
		res := step()
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		if res.Found {
			return res.Value, true, errors.Join(errs...)
		}
	}
	var zero T
	return zero, false, errors.Join(errs...)
}

// Accumulate collects every found value in order and joins every error.
// A failing step never discards values produced by other steps.
func Accumulate[T any](results ...Result[T]) ([]T, error) {
	var (
		values []T
		errs   []error
	)
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		if res.Found {
			values = append(values, res.Value)
		}
	}
	return values, errors.Join(errs...)
}
