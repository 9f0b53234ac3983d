// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"errors"
	"fmt"
)

// RuleError describes a gossip message that violated a protocol rule.  A
// positive Score is the misbehavior score to charge the sending peer; a
// zero score means the message is dropped silently.
type RuleError struct {
	Score       int
	Description string
}

// Error satisfies the error interface and prints the rule violation.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a misbehavior score and description.
func ruleError(score int, desc string) error {
	return RuleError{Score: score, Description: desc}
}

// ruleErrorf creates a RuleError with a formatted description.
func ruleErrorf(score int, format string, args ...interface{}) error {
	return RuleError{Score: score, Description: fmt.Sprintf(format, args...)}
}

// misbehaviorScore extracts the misbehavior score from a rule error, or 0
// when err is not one.
func misbehaviorScore(err error) int {
	var rerr RuleError
	if errors.As(err, &rerr) {
		return rerr.Score
	}
	return 0
}
