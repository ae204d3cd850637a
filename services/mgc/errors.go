package mgc

import (
	"fmt"
	"strings"
)

var (
	ErrEmptyQueue = fmt.Errorf("there are no giveaways in the queue")
	ErrCancelled  = fmt.Errorf("cancelled")
)

// ValidationError is a record that cannot be queued as filled in.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	errMissingDetails = &ValidationError{Message: "You must first fill the details of the giveaway."}
	errMissingLinks   = &ValidationError{Message: "The next/previous links format is missing from the description."}
	errMissingBump    = &ValidationError{Message: "The bump link format is missing from the description."}
)

// NotFoundError is an import line whose game the site does not know.
type NotFoundError struct {
	Line string
	Name string
	// Suggestion is the closest name the search did return, if any.
	Suggestion string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s was not found! Please correct the title of the game and import again to continue importing (it must be exactly like on Steam).", e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" Did you mean %q?", e.Suggestion)
	}
	return msg
}

type MalformedLineError struct {
	Line string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("The next giveaway is not in the right format, correct it and import again to continue importing: %q", e.Line)
}

// RemoteRejectionError holds the field errors the creation form answered
// with for one entry.
type RemoteRejectionError struct {
	Game   string
	Errors []string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("%s was not created: %s", e.Game, strings.Join(e.Errors, "; "))
}
