package validate

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func requireFieldErrors(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestValidate_ValidMessage(t *testing.T) {
	msg, err := Validate(Input{
		Content:  ptr("  Hello, this is a test message!  "),
		Channel:  ptr("general"),
		UserName: ptr("Test User"),
		UserID:   ptr("user123"),
		Metadata: map[string]any{"client": "cli"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, this is a test message!", msg.Content)
	assert.Equal(t, "general", msg.Channel)
	require.NotNil(t, msg.UserName)
	assert.Equal(t, "Test User", *msg.UserName)
	require.NotNil(t, msg.UserID)
	assert.Equal(t, "user123", *msg.UserID)
	assert.Equal(t, "cli", msg.Metadata["client"])
}

func TestValidate_ContentOnlyDefaultsChannel(t *testing.T) {
	msg, err := Validate(Input{Content: ptr("Legacy message test")})
	require.NoError(t, err)
	assert.Equal(t, "general", msg.Channel)
	assert.Nil(t, msg.UserName)
	assert.Nil(t, msg.UserID)
}

func TestValidate_Content(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		want    string
	}{
		{"missing", nil, "Message content is required."},
		{"empty", ptr(""), "Message content is required."},
		{"whitespace only", ptr(" \t\n "), "Message cannot contain only whitespace."},
		{"too long", ptr(strings.Repeat("a", 1001)), "Message cannot exceed 1000 characters."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(Input{Content: tt.content})
			verr := requireFieldErrors(t, err)
			assert.Equal(t, []string{"content"}, verr.Fields())
			assert.Equal(t, []string{tt.want}, verr.Errors["content"])
		})
	}
}

func TestValidate_ContentLengthBoundaries(t *testing.T) {
	_, err := Validate(Input{Content: ptr(strings.Repeat("a", 1000))})
	assert.NoError(t, err, "1000 characters is allowed")

	_, err = Validate(Input{Content: ptr("  " + strings.Repeat("a", 1000) + "  ")})
	assert.NoError(t, err, "length is measured after trimming")

	_, err = Validate(Input{Content: ptr(strings.Repeat("é", 1000))})
	assert.NoError(t, err, "length counts characters, not bytes")

	_, err = Validate(Input{Content: ptr("x")})
	assert.NoError(t, err)
}

func TestValidate_Channel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{"spaces and punctuation", "invalid channel name!", "Channel name can only contain letters, numbers, underscores, and hyphens."},
		{"dot", "chat.general", "Channel name can only contain letters, numbers, underscores, and hyphens."},
		{"non-ascii", "général", "Channel name can only contain letters, numbers, underscores, and hyphens."},
		{"too long", strings.Repeat("c", 51), "Channel name cannot exceed 50 characters."},
		{"empty", "", "Channel name cannot be empty."},
		{"blank", "   ", "Channel name cannot be empty."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(Input{Content: ptr("Valid message"), Channel: ptr(tt.channel)})
			verr := requireFieldErrors(t, err)
			assert.Equal(t, []string{"channel"}, verr.Fields())
			assert.Equal(t, []string{tt.want}, verr.Errors["channel"])
		})
	}
}

func TestValidate_ChannelAccepted(t *testing.T) {
	for _, ch := range []string{"general", "test-channel", "team_42", "A", strings.Repeat("z", 50)} {
		msg, err := Validate(Input{Content: ptr("hi"), Channel: ptr(ch)})
		require.NoError(t, err, ch)
		assert.Equal(t, ch, msg.Channel)
	}
}

func TestValidate_UserFields(t *testing.T) {
	_, err := Validate(Input{
		Content:  ptr("hi"),
		UserName: ptr(strings.Repeat("n", 51)),
		UserID:   ptr(strings.Repeat("u", 256)),
	})
	verr := requireFieldErrors(t, err)
	assert.Equal(t, []string{"user_id", "user_name"}, verr.Fields())
	assert.Equal(t, []string{"Username cannot exceed 50 characters."}, verr.Errors["user_name"])

	msg, err := Validate(Input{
		Content:  ptr("hi"),
		UserName: ptr(strings.Repeat("n", 50)),
		UserID:   ptr(strings.Repeat("u", 255)),
	})
	require.NoError(t, err)
	assert.Len(t, *msg.UserName, 50)
	assert.Len(t, *msg.UserID, 255)
}

func TestValidate_EmptyUserIDAllowed(t *testing.T) {
	msg, err := Validate(Input{Content: ptr("hi"), UserID: ptr("")})
	require.NoError(t, err)
	require.NotNil(t, msg.UserID)
	assert.Equal(t, "", *msg.UserID)
}

func TestValidate_AggregatesAllFields(t *testing.T) {
	_, err := Validate(Input{
		Content:  ptr(""),
		Channel:  ptr("bad channel"),
		UserName: ptr(strings.Repeat("n", 60)),
	})
	verr := requireFieldErrors(t, err)
	assert.Equal(t, []string{"channel", "content", "user_name"}, verr.Fields())
	assert.Contains(t, verr.Error(), "validate: invalid message")
	assert.Contains(t, verr.Error(), "content: Message content is required.")
}

func TestParseInput_JSON(t *testing.T) {
	in := ParseInput([]byte(`{"content":"hello","channel":"ops","user_name":"Ann","user_id":"42","metadata":{"k":1},"extra":true}`))
	require.NotNil(t, in.Content)
	assert.Equal(t, "hello", *in.Content)
	assert.Equal(t, "ops", *in.Channel)
	assert.Equal(t, "Ann", *in.UserName)
	assert.Equal(t, "42", *in.UserID)
	assert.Equal(t, float64(1), in.Metadata["k"])
}

func TestParseInput_NullIsAbsent(t *testing.T) {
	in := ParseInput([]byte(`{"content":"hello","channel":null}`))
	assert.Nil(t, in.Channel)

	msg, err := Validate(in)
	require.NoError(t, err)
	assert.Equal(t, "general", msg.Channel)
}

func TestParseInput_InvalidJSONIsEmpty(t *testing.T) {
	for _, body := range []string{"", "not json", "[1,2]", `"content"`} {
		in := ParseInput([]byte(body))
		assert.Nil(t, in.Content, body)

		_, err := Validate(in)
		verr := requireFieldErrors(t, err)
		assert.Equal(t, []string{"content"}, verr.Fields(), body)
	}
}

func TestParseInput_NonStringValues(t *testing.T) {
	in := ParseInput([]byte(`{"content":123,"channel":["a"],"user_name":"ok"}`))
	_, err := Validate(in)
	verr := requireFieldErrors(t, err)

	assert.Equal(t, []string{"channel", "content"}, verr.Fields())
	assert.Equal(t, []string{"The content field must be a string."}, verr.Errors["content"])
	assert.Equal(t, []string{"The channel field must be a string."}, verr.Errors["channel"])
}

func TestParseInput_NonObjectMetadataIgnored(t *testing.T) {
	in := ParseInput([]byte(`{"content":"hi","metadata":"flat"}`))
	assert.Nil(t, in.Metadata)
}

func TestInputFromForm(t *testing.T) {
	in := InputFromForm(url.Values{"content": {"from a form"}, "user_name": {"Bo"}})
	require.NotNil(t, in.Content)
	assert.Equal(t, "from a form", *in.Content)
	assert.Equal(t, "Bo", *in.UserName)
	assert.Nil(t, in.Channel)
	assert.Nil(t, in.UserID)
}
