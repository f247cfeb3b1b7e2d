package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type mockSender struct {
	mock.Mock
	sent []*mail.Msg
}

func (m *mockSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	m.sent = append(m.sent, messages...)
	return m.Called(ctx).Error(0)
}

func TestSendLoginCode(t *testing.T) {
	ctx := context.Background()
	client := &mockSender{}
	client.On("DialAndSendWithContext", ctx).Return(nil).Once()
	m := &SMTPMailer{from: "no-reply@skill-loop.test", client: client}

	err := m.SendLoginCode(ctx, "eve@acme.test", "Eve", "482913", "http://app.test/auth/verify?code=482913")
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, []string{"<eve@acme.test>"}, msg.GetToString())

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), loginSubject)
	assert.Contains(t, raw.String(), "482913")
	assert.Contains(t, raw.String(), "Hi Eve")
	client.AssertExpectations(t)
}

func TestSendLoginCodeErrors(t *testing.T) {
	ctx := context.Background()
	client := &mockSender{}
	client.On("DialAndSendWithContext", ctx).Return(errors.New("connection refused")).Once()
	m := &SMTPMailer{from: "no-reply@skill-loop.test", client: client}

	err := m.SendLoginCode(ctx, "eve@acme.test", "Eve", "1", "link")
	assert.ErrorContains(t, err, "connection refused")

	err = m.SendLoginCode(ctx, "not an address", "Eve", "1", "link")
	assert.ErrorContains(t, err, "invalid recipient")
	assert.Len(t, client.sent, 1, "invalid messages are never handed to the client")
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{}.SendLoginCode(context.Background(), "eve@acme.test", "Eve", "1", "link"))
}
