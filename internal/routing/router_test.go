package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpilot/internal/generation"
	"leadpilot/internal/lead"
)

func approvedMessages() []generation.Message {
	return []generation.Message{
		{Step: "intro", Subject: "Hello Dana", Body: "Hi Dana, quick note about Northwind Analytics."},
		{Step: "value_prop", Subject: "The concrete win", Body: "Dana, here is the concrete win for Northwind Analytics."},
		{Step: "call_to_action", Subject: "Next step", Body: "Worth a call next week?"},
	}
}

func TestRoute_EmailChannel(t *testing.T) {
	lc := lead.Context{ID: "l1", Name: "Dana Reyes", Company: "Northwind Analytics",
		Email: "dana@northwind.example", NetworkURL: "https://network.example/in/dana"}

	d, err := Route(approvedMessages(), lc)
	require.NoError(t, err)
	assert.Equal(t, ChannelEmail, d.Channel)
	require.Len(t, d.Emails, 3)
	assert.Nil(t, d.Manual)
	for _, e := range d.Emails {
		assert.Equal(t, "dana@northwind.example", e.Recipient)
	}
	assert.Equal(t, "Hello Dana", d.Emails[0].Subject)
}

// Channel priority is fixed: a valid email always wins over a network URL.
func TestRoute_EmailWinsOverNetworkURL(t *testing.T) {
	lc := lead.Context{ID: "l1", Name: "Dana Reyes", Company: "Northwind",
		Email: "dana@northwind.example", NetworkURL: "https://network.example/in/dana"}
	for i := 0; i < 10; i++ {
		d, err := Route(approvedMessages(), lc)
		require.NoError(t, err)
		assert.Equal(t, ChannelEmail, d.Channel)
	}
}

func TestRoute_ManualChannel(t *testing.T) {
	lc := lead.Context{ID: "l1", Name: "Dana Reyes", Company: "Northwind Analytics",
		NetworkURL: "https://network.example/in/dana"}

	d, err := Route(approvedMessages(), lc)
	require.NoError(t, err)
	assert.Equal(t, ChannelManual, d.Channel)
	require.NotNil(t, d.Manual)
	assert.Empty(t, d.Emails)
	assert.Equal(t, "https://network.example/in/dana", d.Manual.NetworkURL)

	text := d.Manual.Text
	assert.Contains(t, text, "=== INTRO ===")
	assert.Contains(t, text, "=== VALUE_PROP ===")
	assert.Contains(t, text, "=== CALL_TO_ACTION ===")
	assert.Contains(t, text, PlaceholderFirstName)
	assert.Contains(t, text, PlaceholderCompany)
	assert.NotContains(t, text, "Dana")
	assert.NotContains(t, text, "Northwind Analytics")
}

func TestRoute_NoContactChannel(t *testing.T) {
	lc := lead.Context{ID: "l1", Name: "Dana Reyes", Company: "Northwind"}
	_, err := Route(approvedMessages(), lc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientContactInfo))
}

func TestRoute_InvalidEmailFallsThroughToManual(t *testing.T) {
	lc := lead.Context{ID: "l1", Name: "Dana Reyes", Company: "Northwind",
		Email: "not-an-email", NetworkURL: "https://network.example/in/dana"}
	d, err := Route(approvedMessages(), lc)
	require.NoError(t, err)
	assert.Equal(t, ChannelManual, d.Channel)
}

func TestRoute_NoMessages(t *testing.T) {
	lc := lead.Context{ID: "l1", Email: "dana@northwind.example"}
	_, err := Route(nil, lc)
	assert.Error(t, err)
}

func TestReplaceInsensitive(t *testing.T) {
	got := replaceInsensitive("Dana met dana and DANA.", "Dana", "{{FIRST_NAME}}")
	assert.Equal(t, "{{FIRST_NAME}} met {{FIRST_NAME}} and {{FIRST_NAME}}.", got)
}

// Substitution must survive multi-byte runes whose case conversion changes
// byte length, both around and inside the replaced token.
func TestReplaceInsensitive_NonASCII(t *testing.T) {
	got := replaceInsensitive("Ⱥ quick idea for Dana at Northwind", "Dana", "{{FIRST_NAME}}")
	assert.Equal(t, "Ⱥ quick idea for {{FIRST_NAME}} at Northwind", got)

	got = replaceInsensitive("İlker met İlker.", "İlker", "{{FIRST_NAME}}")
	assert.Equal(t, "{{FIRST_NAME}} met {{FIRST_NAME}}.", got)
}

func TestRoute_ManualFormattingWithNonASCIIBody(t *testing.T) {
	lc := lead.Context{ID: "l1", Name: "Dana Reyes", Company: "Northwind Analytics",
		NetworkURL: "https://network.example/in/dana"}
	msgs := []generation.Message{{
		Step:    "intro",
		Subject: "Ⱥ quick idea for Dana",
		Body:    "Ⱥ quick idea for Dana at Northwind Analytics — ⱥ small one.",
	}}

	d, err := Route(msgs, lc)
	require.NoError(t, err)
	require.NotNil(t, d.Manual)
	assert.Contains(t, d.Manual.Text, "Ⱥ quick idea for "+PlaceholderFirstName)
	assert.Contains(t, d.Manual.Text, PlaceholderCompany)
	assert.NotContains(t, d.Manual.Text, "Dana")
}
