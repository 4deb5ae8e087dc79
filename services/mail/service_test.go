package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeClient struct {
	messages []*mail.Msg
	err      error
}

func (f *fakeClient) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.messages = append(f.messages, messages...)
	return f.err
}

func enabledConfig() *config.Config {
	cfg := testutils.GetTestConfig()
	cfg.Mail.Enabled = true
	return cfg
}

func partContents(t *testing.T, msg *mail.Msg) []string {
	t.Helper()

	var contents []string
	for _, part := range msg.GetParts() {
		content, err := part.GetContent()
		require.NoError(t, err)
		contents = append(contents, string(content))
	}
	return contents
}

func TestNewService(t *testing.T) {
	t.Run("disabled needs no client", func(t *testing.T) {
		service, err := NewService(testutils.GetTestConfig(), nil)
		require.NoError(t, err)
		assert.False(t, service.Enabled())
	})

	t.Run("enabled builds smtp client", func(t *testing.T) {
		service, err := NewService(enabledConfig(), nil)
		require.NoError(t, err)
		assert.True(t, service.Enabled())
	})

	t.Run("missing from address", func(t *testing.T) {
		cfg := enabledConfig()
		cfg.Mail.FromAddress = ""

		service, err := NewServiceWithClient(cfg, nil, &fakeClient{})
		require.Error(t, err)
		assert.Nil(t, service)
		assert.Contains(t, err.Error(), "MAIL_FROM_ADDRESS is required")
	})
}

func TestSendPasswordReset(t *testing.T) {
	client := &fakeClient{}
	service, err := NewServiceWithClient(enabledConfig(), nil, client)
	require.NoError(t, err)

	link := "http://localhost:8080/reset-password?token=abc"
	require.NoError(t, service.SendPasswordReset(context.Background(), "alice@school.example", "alice", link))

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, []string{"<alice@school.example>"}, msg.GetToString())
	assert.Equal(t, []string{"TMS password reset"}, msg.GetGenHeader(mail.HeaderSubject))

	contents := partContents(t, msg)
	require.Len(t, contents, 2)
	assert.Contains(t, contents[0], link)
	assert.Contains(t, contents[0], "15 minutes")
	assert.Contains(t, contents[1], `href="http://localhost:8080/reset-password?token=abc"`)
}

func TestSendPasswordReset_Disabled(t *testing.T) {
	service, err := NewService(testutils.GetTestConfig(), nil)
	require.NoError(t, err)

	assert.NoError(t, service.SendPasswordReset(context.Background(), "alice@school.example", "alice", "link"))
}

func TestSendPasswordReset_ClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	service, err := NewServiceWithClient(enabledConfig(), nil, client)
	require.NoError(t, err)

	err = service.SendPasswordReset(context.Background(), "alice@school.example", "alice", "link")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestSendPasswordReset_InvalidRecipient(t *testing.T) {
	client := &fakeClient{}
	service, err := NewServiceWithClient(enabledConfig(), nil, client)
	require.NoError(t, err)

	assert.Error(t, service.SendPasswordReset(context.Background(), "not an address", "alice", "link"))
	assert.Empty(t, client.messages)
}
