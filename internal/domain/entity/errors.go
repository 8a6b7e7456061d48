package entity

import "errors"

var (
	// IA errors
	ErrInvalidIAID        = errors.New("invalid ia id")
	ErrInvalidIAName      = errors.New("invalid ia name")
	ErrInvalidPhoneNumber = errors.New("invalid ia phone number")

	// Prompt errors
	ErrEmptyPromptText = errors.New("prompt text is required")

	// Lead errors
	ErrEmptyLeadMessage = errors.New("lead message is required")
)
