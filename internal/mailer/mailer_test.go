package mailer_test

import (
	"testing"

	smtpmock "github.com/mocktools/go-smtp-mock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godash/internal/mailer"
)

func TestSMTPSenderDelivers(t *testing.T) {
	server := smtpmock.New(smtpmock.ConfigurationAttr{
		LogToStdout:       false,
		LogServerActivity: false,
	})
	require.NoError(t, server.Start())
	defer server.Stop()

	sender := mailer.NewSMTPSender(mailer.Config{
		Host: "127.0.0.1",
		Port: server.PortNumber(),
		From: "dashboard@example.com",
	})

	err := sender.Send(mailer.Message{
		To:      []string{"ops@example.com", "oncall@example.com"},
		Subject: "Dashboard - Job Failure Alert",
		Body:    "Job nightly-report failed.\nResult: 0 rows loaded",
	})
	require.NoError(t, err)

	messages := server.Messages()
	require.Len(t, messages, 1)

	msg := messages[0].MsgRequest()
	assert.Contains(t, msg, "Subject: Dashboard - Job Failure Alert")
	assert.Contains(t, msg, "To: ops@example.com, oncall@example.com")
	assert.Contains(t, msg, "0 rows loaded")
}

func TestSendRequiresRecipients(t *testing.T) {
	sender := mailer.NewSMTPSender(mailer.Config{Host: "127.0.0.1", Port: 2525, From: "x@example.com"})
	err := sender.Send(mailer.Message{Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, mailer.ErrNoRecipients)
}
