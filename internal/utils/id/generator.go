package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID generates an identifier for one evaluation run.
func NewRunID() string {
	return newIdentifier("run")
}

// NewMessageID generates an identifier for an outbound agent message.
func NewMessageID() string {
	return newIdentifier("msg")
}

// NewContextID generates an A2A conversation context identifier.
func NewContextID() string {
	return newIdentifier("ctx")
}

// NewArtifactID generates an identifier for a task artifact.
func NewArtifactID() string {
	return newIdentifier("artifact")
}

// NewLogID generates a log correlation identifier.
func NewLogID() string {
	return newIdentifier("log")
}

func newIdentifier(prefix string) string {
	body, err := uuid.NewV7()
	if err != nil {
		body = uuid.New()
	}
	return fmt.Sprintf("%s-%s", prefix, body.String())
}
