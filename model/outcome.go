package model

// This file contains the test outcome enumeration.

import "fmt"

// Outcome is the state a test reports. InProgress opens a test, Exists only
// declares one, and the remaining values close it.
type Outcome uint8

const (
	Unknown Outcome = iota
	Exists
	InProgress
	Success
	Failure
	Error
	Skip
	XFail
	UxSuccess
)

var outcomeNames = map[Outcome]string{
	Unknown:    "unknown",
	Exists:     "exists",
	InProgress: "inprogress",
	Success:    "success",
	Failure:    "failure",
	Error:      "error",
	Skip:       "skip",
	XFail:      "xfail",
	UxSuccess:  "uxsuccess",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// ParseOutcome returns the outcome with the given name.
func ParseOutcome(name string) (Outcome, error) {
	for o, n := range outcomeNames {
		if n == name {
			return o, nil
		}
	}
	return Unknown, fmt.Errorf("unknown outcome %q", name)
}

// Final reports whether the outcome closes a test.
func (o Outcome) Final() bool {
	switch o {
	case Success, Failure, Error, Skip, XFail, UxSuccess:
		return true
	}
	return false
}

// Successful is false for outcomes that should fail a run.
func (o Outcome) Successful() bool {
	switch o {
	case Failure, Error, UxSuccess:
		return false
	}
	return true
}

// MarshalText renders the outcome name, used for JSON summaries.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
