// Package smtpconn speaks just enough SMTP for a delivery probe: open
// a connection, authenticate, and walk the envelope commands one reply
// at a time. Connections are single use; the caller decides the
// command sequence and ends it with QUIT.
package smtpconn

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Config configures how probe connections are opened.
type Config struct {
	ConnectTimeout time.Duration // default: 10s
	CommandTimeout time.Duration // default: 10s

	// TLSConfig is cloned for routes using implicit TLS. ServerName is
	// filled from the dialed host when unset.
	TLSConfig *tls.Config

	// Dial is injectable for testing. Defaults to net.DialTimeout.
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// Dialer opens probe connections with a shared Config.
type Dialer struct {
	cfg Config
}

// NewDialer returns a Dialer, applying defaults for unset fields.
func NewDialer(cfg Config) *Dialer {
	if cfg.Dial == nil {
		cfg.Dial = net.DialTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	return &Dialer{cfg: cfg}
}

// Conn is a live probe connection with the banner already consumed.
type Conn struct {
	cfg     Config
	netConn net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
}

// Open dials address, wraps the stream in TLS when useTLS is set, and
// consumes the server banner. A banner outside the 2xx class closes
// the connection and comes back as an error.
func (d *Dialer) Open(address string, useTLS bool) (*Conn, error) {
	netConn, err := d.cfg.Dial("tcp", address, d.cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}
	if useTLS {
		netConn = tls.Client(netConn, d.tlsConfig(address))
	}

	c := &Conn{
		cfg:     d.cfg,
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
		writer:  bufio.NewWriter(netConn),
	}
	if err := c.deadline(); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	code, msg, err := c.readReply()
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("read banner: %w", err)
	}
	if code/100 != 2 {
		_ = netConn.Close()
		return nil, fmt.Errorf("banner from %s: %d %s", address, code, msg)
	}
	return c, nil
}

func (d *Dialer) tlsConfig(address string) *tls.Config {
	cfg := d.cfg.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			cfg.ServerName = host
		}
	}
	return cfg
}

// Hello sends HELO.
func (c *Conn) Hello(domain string) (int, string, error) {
	return c.cmd("HELO %s", domain)
}

// Ehlo sends EHLO. Servers expect it before AUTH.
func (c *Conn) Ehlo(domain string) (int, string, error) {
	return c.cmd("EHLO %s", domain)
}

// Auth authenticates with a single-line AUTH PLAIN exchange and
// returns the server's verdict code, 235 on success.
func (c *Conn) Auth(username, secret string) (int, string, error) {
	payload := base64.StdEncoding.EncodeToString([]byte("\x00" + username + "\x00" + secret))
	return c.cmd("AUTH PLAIN %s", payload)
}

// Mail opens the envelope.
func (c *Conn) Mail(from string) (int, string, error) {
	return c.cmd("MAIL FROM:<%s>", from)
}

// Rcpt names the probed recipient. The reply code is the probe's
// actual payload: 250 deliverable, 550 rejected.
func (c *Conn) Rcpt(to string) (int, string, error) {
	return c.cmd("RCPT TO:<%s>", to)
}

// Quit sends a best-effort QUIT and closes the connection. Safe on
// connections the server already dropped.
func (c *Conn) Quit() error {
	_ = c.netConn.SetDeadline(time.Now().Add(2 * time.Second))
	_, _ = c.writer.WriteString("QUIT\r\n")
	_ = c.writer.Flush()
	return c.netConn.Close()
}

// Close drops the connection without the SMTP goodbye.
func (c *Conn) Close() error {
	return c.netConn.Close()
}

// cmd sends one command line and reads its reply, refreshing the I/O
// deadline first.
func (c *Conn) cmd(format string, args ...any) (int, string, error) {
	if err := c.deadline(); err != nil {
		return 0, "", fmt.Errorf("set deadline: %w", err)
	}
	if _, err := fmt.Fprintf(c.writer, format+"\r\n", args...); err != nil {
		return 0, "", err
	}
	if err := c.writer.Flush(); err != nil {
		return 0, "", err
	}
	return c.readReply()
}

func (c *Conn) deadline() error {
	return c.netConn.SetDeadline(time.Now().Add(c.cfg.CommandTimeout))
}

// readReply reads a (possibly multi-line) SMTP reply.
func (c *Conn) readReply() (code int, full string, err error) {
	var lines []string
	for {
		line, readErr := c.reader.ReadString('\n')
		if readErr != nil {
			return 0, "", fmt.Errorf("read SMTP reply: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", errors.New("SMTP reply line too short")
		}
		lines = append(lines, line)
		// If the 4th character is not '-', this is the last line
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	lastLine := lines[len(lines)-1]
	if _, err := fmt.Sscanf(lastLine[:3], "%d", &code); err != nil {
		return 0, "", fmt.Errorf("invalid SMTP reply code %q: %w", lastLine[:3], err)
	}
	return code, strings.Join(lines, " | "), nil
}
