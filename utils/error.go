package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorTransientFetch wraps historian timeouts and connection drops. The
// scheduler retries these only on the next natural tick, never immediately.
var ErrorTransientFetch = errors.New("transient fetch error")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
