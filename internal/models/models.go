// Package models defines the core data structures for GymBro.
//
// It includes the canonical inbound event, outbound message parts and the membership,
// booking and pause records shared across modules.
package models

import (
	"errors"
)

// Validation constants shared by the transports and the conversation engine
const (
	// MaxMessageLength is the longest text body WhatsApp accepts in a single message
	MaxMessageLength = 4096
	// MaxButtons is the maximum number of reply buttons in one interactive message
	MaxButtons = 3
	// MaxButtonTitleLength is the maximum length of a reply button title
	MaxButtonTitleLength = 20
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient      = errors.New("recipient cannot be empty")
	ErrEmptyBody           = errors.New("message body cannot be empty")
	ErrNoButtons           = errors.New("at least one button is required")
	ErrTooManyButtons      = errors.New("too many buttons")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrEmptyMessageID      = errors.New("message id cannot be empty")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrInvalidEndDate      = errors.New("membership end date is not a valid date")
	ErrInvalidStartDate    = errors.New("membership start date is not a valid date")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// Button is a quick-reply option attached to an interactive message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ValidateButtons checks the constraints WhatsApp places on reply buttons.
func ValidateButtons(buttons []Button) error {
	if len(buttons) == 0 {
		return ErrNoButtons
	}
	if len(buttons) > MaxButtons {
		return ErrTooManyButtons
	}
	return nil
}

// MediaType enumerates the media kinds that can be sent or received.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// IsValidMediaType checks if the given media type is supported.
func IsValidMediaType(t MediaType) bool {
	switch t {
	case MediaImage, MediaAudio, MediaVideo, MediaDocument:
		return true
	default:
		return false
	}
}

// Media describes an outbound media message.
type Media struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url"`
	Caption  string    `json:"caption,omitempty"`
	Filename string    `json:"filename,omitempty"`
}

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = status
	return b
}

// WithMessage sets the message of the response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result payload of the response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful response with a result payload.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error response with the given message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
