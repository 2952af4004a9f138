// Package validate checks inbound chat messages before they reach the store.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/zulandar/chatrelay/internal/messaging"
)

// Size limits for message fields, counted in characters.
const (
	MaxContent  = 1000
	MaxChannel  = 50
	MaxUserName = 50
	MaxUserID   = 255
)

// Field names as they appear on the wire and in ValidationError.
const (
	FieldContent  = "content"
	FieldChannel  = "channel"
	FieldUserName = "user_name"
	FieldUserID   = "user_id"
)

var channelPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// rules is safe for concurrent use.
var rules = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("validate: register notblank rule: %v", err))
	}
	if err := v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return channelPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("validate: register channel rule: %v", err))
	}
	return v
}

// Input is a raw inbound message. A nil field was absent from the request.
// Unknown fields are ignored.
type Input struct {
	Content  *string
	Channel  *string
	UserName *string
	UserID   *string
	Metadata map[string]any

	// typeErrs names fields whose JSON value was not a string.
	typeErrs []string
}

// Message is an input that passed validation, with content trimmed and the
// channel defaulted.
type Message struct {
	Content  string
	Channel  string
	UserName *string
	UserID   *string
	Metadata map[string]any
}

// UnmarshalJSON decodes a request body. Non-string values for the text
// fields are remembered and reported by Validate instead of failing decode.
func (in *Input) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("validate: decode input: %w", err)
	}
	*in = Input{}
	for _, f := range []struct {
		name string
		dst  **string
	}{
		{FieldContent, &in.Content},
		{FieldChannel, &in.Channel},
		{FieldUserName, &in.UserName},
		{FieldUserID, &in.UserID},
	} {
		val, ok := raw[f.name]
		if !ok || string(val) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			in.typeErrs = append(in.typeErrs, f.name)
			continue
		}
		*f.dst = &s
	}
	if val, ok := raw["metadata"]; ok {
		var m map[string]any
		if err := json.Unmarshal(val, &m); err == nil {
			in.Metadata = m
		}
	}
	return nil
}

// ParseInput decodes a JSON body. A body that is not a JSON object yields an
// empty Input, which fails validation on content.
func ParseInput(body []byte) Input {
	var in Input
	if err := json.Unmarshal(body, &in); err != nil {
		return Input{}
	}
	return in
}

// InputFromForm reads a form-encoded submission.
func InputFromForm(form url.Values) Input {
	var in Input
	for _, f := range []struct {
		name string
		dst  **string
	}{
		{FieldContent, &in.Content},
		{FieldChannel, &in.Channel},
		{FieldUserName, &in.UserName},
		{FieldUserID, &in.UserID},
	} {
		if form.Has(f.name) {
			v := form.Get(f.name)
			*f.dst = &v
		}
	}
	return in
}

// checked mirrors Input with the rules each field must satisfy. Content is
// checked twice: presence on the raw value, length on the trimmed one.
type checked struct {
	Content  string  `json:"content" validate:"required,notblank"`
	Trimmed  string  `json:"content" validate:"max=1000"`
	Channel  *string `json:"channel" validate:"omitnil,min=1,max=50,channel"`
	UserName *string `json:"user_name" validate:"omitnil,min=1,max=50"`
	UserID   *string `json:"user_id" validate:"omitnil,max=255"`
}

// Validate applies the message rules to in. Every failing field is reported
// in a single *ValidationError.
func Validate(in Input) (Message, error) {
	verr := &ValidationError{Errors: make(map[string][]string)}
	for _, field := range in.typeErrs {
		verr.add(field, fmt.Sprintf("The %s field must be a string.", strings.ReplaceAll(field, "_", " ")))
	}

	c := checked{
		Channel:  trimmed(in.Channel),
		UserName: trimmed(in.UserName),
		UserID:   trimmed(in.UserID),
	}
	if in.Content != nil {
		c.Content = *in.Content
		c.Trimmed = strings.TrimSpace(*in.Content)
	}

	if err := rules.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return Message{}, fmt.Errorf("validate: %w", err)
		}
		for _, fe := range fieldErrs {
			if verr.has(fe.Field()) {
				continue
			}
			verr.add(fe.Field(), message(fe))
		}
	}
	if len(verr.Errors) > 0 {
		return Message{}, verr
	}

	msg := Message{
		Content:  c.Trimmed,
		Channel:  messaging.DefaultChannel,
		UserName: c.UserName,
		UserID:   c.UserID,
		Metadata: in.Metadata,
	}
	if c.Channel != nil {
		msg.Channel = *c.Channel
	}
	return msg, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// fieldMessages holds the human-readable reason for each field and rule.
var fieldMessages = map[string]string{
	"content.required": "Message content is required.",
	"content.notblank": "Message cannot contain only whitespace.",
	"content.max":      "Message cannot exceed 1000 characters.",
	"channel.min":      "Channel name cannot be empty.",
	"channel.max":      "Channel name cannot exceed 50 characters.",
	"channel.channel":  "Channel name can only contain letters, numbers, underscores, and hyphens.",
	"user_name.min":    "Username cannot be empty.",
	"user_name.max":    "Username cannot exceed 50 characters.",
	"user_id.max":      "The user id field must not be greater than 255 characters.",
}

func message(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("The %s field is invalid.", strings.ReplaceAll(fe.Field(), "_", " "))
}

// ValidationError reports every field that failed, each with one or more
// human-readable reasons.
type ValidationError struct {
	Errors map[string][]string
}

func (e *ValidationError) add(field, msg string) {
	e.Errors[field] = append(e.Errors[field], msg)
}

func (e *ValidationError) has(field string) bool {
	return len(e.Errors[field]) > 0
}

// Fields returns the failing field names in sorted order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+strings.Join(e.Errors[f], " "))
	}
	return "validate: invalid message: " + strings.Join(parts, "; ")
}
