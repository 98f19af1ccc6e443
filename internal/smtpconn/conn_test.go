package smtpconn_test

import (
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailprobe/internal/smtpconn"
)

// mockSMTPServer simulates an SMTP server on a net.Pipe connection.
func mockSMTPServer(server net.Conn, banner string, responses map[string]string) {
	defer func() { _ = server.Close() }()

	_, _ = fmt.Fprintf(server, "%s\r\n", banner)

	buf := make([]byte, 4096)
	for {
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		cmd := string(buf[:n])

		if strings.HasPrefix(cmd, "QUIT") {
			_, _ = fmt.Fprintf(server, "221 Bye\r\n")
			return
		}
		for prefix, resp := range responses {
			if strings.HasPrefix(cmd, prefix) {
				_, _ = fmt.Fprintf(server, "%s\r\n", resp)
				break
			}
		}
	}
}

func pipeDialer(banner string, responses map[string]string) *smtpconn.Dialer {
	return smtpconn.NewDialer(smtpconn.Config{
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			client, server := net.Pipe()
			go mockSMTPServer(server, banner, responses)
			return client, nil
		},
	})
}

func TestOpenReadsBanner(t *testing.T) {
	dialer := pipeDialer("220 mock.smtp ESMTP", map[string]string{
		"HELO": "250 mock.smtp",
	})

	conn, err := dialer.Open("mx.example.com:25", false)
	require.NoError(t, err)
	defer func() { _ = conn.Quit() }()

	code, msg, err := conn.Hello("probe.local")
	require.NoError(t, err)
	assert.Equal(t, 250, code)
	assert.Contains(t, msg, "mock.smtp")
}

func TestOpenRejectsBadBanner(t *testing.T) {
	dialer := pipeDialer("554 go away", nil)

	_, err := dialer.Open("mx.example.com:25", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "554")
}

func TestOpenDialFailure(t *testing.T) {
	dialer := smtpconn.NewDialer(smtpconn.Config{
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			return nil, fmt.Errorf("connection refused")
		},
	})

	_, err := dialer.Open("mx.example.com:25", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEnvelopeSequence(t *testing.T) {
	dialer := pipeDialer("220 mock.smtp ESMTP", map[string]string{
		"HELO":      "250 mock.smtp",
		"MAIL FROM": "250 sender ok",
		"RCPT TO":   "550 no such user",
	})

	conn, err := dialer.Open("mx.example.com:25", false)
	require.NoError(t, err)
	defer func() { _ = conn.Quit() }()

	code, _, err := conn.Hello("probe.local")
	require.NoError(t, err)
	assert.Equal(t, 250, code)

	code, _, err = conn.Mail("admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, 250, code)

	code, msg, err := conn.Rcpt("nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, 550, code)
	assert.Contains(t, msg, "no such user")
}

func TestAuthSendsPlainCredentials(t *testing.T) {
	wantPayload := base64.StdEncoding.EncodeToString([]byte("\x00probe@corp.example\x00hunter2"))

	dialer := smtpconn.NewDialer(smtpconn.Config{
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			client, server := net.Pipe()
			go func() {
				defer func() { _ = server.Close() }()
				_, _ = fmt.Fprintf(server, "220 mock.smtp ESMTP\r\n")
				buf := make([]byte, 4096)

				n, err := server.Read(buf) // EHLO
				if err != nil {
					return
				}
				if !strings.HasPrefix(string(buf[:n]), "EHLO") {
					_, _ = fmt.Fprintf(server, "503 bad sequence\r\n")
					return
				}
				_, _ = fmt.Fprintf(server, "250-mock.smtp\r\n250 AUTH PLAIN LOGIN\r\n")

				n, err = server.Read(buf) // AUTH PLAIN <payload>
				if err != nil {
					return
				}
				if strings.TrimSpace(string(buf[:n])) == "AUTH PLAIN "+wantPayload {
					_, _ = fmt.Fprintf(server, "235 accepted\r\n")
				} else {
					_, _ = fmt.Fprintf(server, "535 denied\r\n")
				}
			}()
			return client, nil
		},
	})

	conn, err := dialer.Open("smtp.corp.example:465", false)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	code, msg, err := conn.Ehlo("probe.local")
	require.NoError(t, err)
	assert.Equal(t, 250, code)
	assert.Contains(t, msg, "AUTH PLAIN")

	code, _, err = conn.Auth("probe@corp.example", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 235, code)
}

func TestMultilineReply(t *testing.T) {
	dialer := pipeDialer("220 mock.smtp ESMTP", map[string]string{
		"EHLO": "250-mock.smtp\r\n250-SIZE 35882577\r\n250 STARTTLS",
	})

	conn, err := dialer.Open("mx.example.com:25", false)
	require.NoError(t, err)
	defer func() { _ = conn.Quit() }()

	code, msg, err := conn.Ehlo("probe.local")
	require.NoError(t, err)
	assert.Equal(t, 250, code)
	assert.Contains(t, msg, "SIZE 35882577")
	assert.Contains(t, msg, " | ")
}

func TestCommandTimeout(t *testing.T) {
	dialer := smtpconn.NewDialer(smtpconn.Config{
		ConnectTimeout: time.Second,
		CommandTimeout: 50 * time.Millisecond,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			client, server := net.Pipe()
			go func() {
				// Banner only, then go silent.
				_, _ = fmt.Fprintf(server, "220 mock.smtp ESMTP\r\n")
				buf := make([]byte, 4096)
				for {
					if _, err := server.Read(buf); err != nil {
						return
					}
				}
			}()
			return client, nil
		},
	})

	conn, err := dialer.Open("mx.example.com:25", false)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, _, err = conn.Hello("probe.local")
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestQuitAfterServerGone(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		_, _ = fmt.Fprintf(server, "220 mock.smtp ESMTP\r\n")
		_ = server.Close()
	}()

	dialer := smtpconn.NewDialer(smtpconn.Config{
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			return client, nil
		},
	})

	conn, err := dialer.Open("mx.example.com:25", false)
	require.NoError(t, err)
	assert.NoError(t, conn.Quit())
}
