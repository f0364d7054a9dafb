// Package nut is a client for the Network UPS Tools upsd text protocol.
package nut

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/logger"
)

// DefaultPort is the upsd listening port
const DefaultPort = 3493

// Variable holds a single NUT variable name/value pair
type Variable struct {
	Name  string
	Value string
}

// VarsToMap converts a []Variable slice into a name→value map
func VarsToMap(vars []Variable) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Name] = v.Value
	}
	return m
}

// Config holds the upsd connection settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Client holds one upsd session. Requests are serialized.
type Client struct {
	cfg  Config
	addr string
	conn net.Conn
	text *textproto.Conn
	mu   sync.Mutex
}

// Dial connects to upsd and logs in when credentials are configured
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, agenterrors.NewDeviceUnreachableError("connect", err, "", addr)
	}

	c := &Client{cfg: cfg, addr: addr, conn: conn, text: textproto.NewConn(conn)}
	logger.LogDebug("🔌 Connected to upsd at %s", addr)

	if cfg.Username != "" {
		if err := c.login(ctx); err != nil {
			c.text.Close()
			return nil, err
		}
	}
	return c, nil
}

// Address returns host:port of the upsd server
func (c *Client) Address() string {
	return c.addr
}

func (c *Client) login(ctx context.Context) error {
	if _, err := c.simple(ctx, "USERNAME "+quote(c.cfg.Username)); err != nil {
		return c.wrap("login", "", err)
	}
	if c.cfg.Password != "" {
		if _, err := c.simple(ctx, "PASSWORD "+quote(c.cfg.Password)); err != nil {
			return c.wrap("login", "", err)
		}
	}
	return nil
}

// ListDeviceNames returns the UPS names served by upsd
func (c *Client) ListDeviceNames(ctx context.Context) ([]string, error) {
	lines, err := c.list(ctx, "UPS")
	if err != nil {
		return nil, c.wrap("list devices", "", err)
	}

	names := make([]string, 0, len(lines))
	for _, fields := range lines {
		// UPS <name> "<description>"
		if len(fields) < 2 || fields[0] != "UPS" {
			return nil, c.wrap("list devices", "", fmt.Errorf("unexpected line %q", strings.Join(fields, " ")))
		}
		names = append(names, fields[1])
	}
	return names, nil
}

// ListVariables returns every variable of the named UPS in server order
func (c *Client) ListVariables(ctx context.Context, device string) ([]Variable, error) {
	lines, err := c.list(ctx, "VAR "+quote(device))
	if err != nil {
		return nil, c.wrap("list variables", device, err)
	}

	vars := make([]Variable, 0, len(lines))
	for _, fields := range lines {
		// VAR <ups> <name> "<value>"
		if len(fields) != 4 || fields[0] != "VAR" {
			return nil, c.wrap("list variables", device, fmt.Errorf("unexpected line %q", strings.Join(fields, " ")))
		}
		vars = append(vars, Variable{Name: fields[2], Value: fields[3]})
	}
	return vars, nil
}

// FetchDeviceVars returns the variables of the named UPS as a map
func (c *Client) FetchDeviceVars(ctx context.Context, device string) (map[string]string, error) {
	vars, err := c.ListVariables(ctx, device)
	if err != nil {
		return nil, err
	}
	return VarsToMap(vars), nil
}

// Close logs out and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.text == nil {
		return nil
	}
	_ = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	if err := c.send("LOGOUT"); err == nil {
		_, _ = c.text.ReadLine()
	}
	err := c.text.Close()
	c.text = nil
	logger.LogDebug("🔌 Disconnected from upsd at %s", c.addr)
	return err
}

// simple sends a command answered by a single OK line
func (c *Client) simple(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer stop()

	if err := c.send(cmd); err != nil {
		return "", err
	}
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(line, "OK") {
		return "", fmt.Errorf("unexpected reply %q", line)
	}
	return line, nil
}

// list sends LIST <query> and returns the tokenized lines between BEGIN and END
func (c *Client) list(ctx context.Context, query string) ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	if err := c.send("LIST " + query); err != nil {
		return nil, err
	}

	first, err := c.readLine()
	if err != nil {
		return nil, err
	}
	if first != "BEGIN LIST "+query {
		return nil, fmt.Errorf("unexpected reply %q", first)
	}

	var lines [][]string
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "END LIST "+query {
			return lines, nil
		}
		fields, err := splitFields(line)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fields)
	}
}

// begin arms the socket deadline for one request. Cancelling ctx expires the
// deadline at once so a blocked read returns; the returned stop must be called
// when the request is done.
func (c *Client) begin(ctx context.Context) (func() bool, error) {
	if c.text == nil {
		return nil, fmt.Errorf("connection closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	conn := c.conn
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	}), nil
}

// send writes cmd with a bare LF terminator
func (c *Client) send(cmd string) error {
	if _, err := c.text.W.WriteString(cmd + "\n"); err != nil {
		return err
	}
	return c.text.W.Flush()
}

// readLine reads one reply line and turns ERR replies into errors
func (c *Client) readLine() (string, error) {
	line, err := c.text.ReadLine()
	if err != nil {
		return "", err
	}
	logger.LogTrace("upsd < %s", line)
	if strings.HasPrefix(line, "ERR ") {
		return "", &ProtocolError{Code: strings.TrimPrefix(line, "ERR ")}
	}
	return line, nil
}

func (c *Client) wrap(op, device string, err error) error {
	return agenterrors.NewDeviceUnreachableError(op, err, device, c.addr)
}

// ProtocolError is an ERR reply from upsd, e.g. UNKNOWN-UPS or ACCESS-DENIED
type ProtocolError struct {
	Code string
}

func (e *ProtocolError) Error() string {
	return "upsd: " + e.Code
}

// splitFields tokenizes a reply line. Double-quoted fields may contain spaces
// and the escapes \" and \\.
func splitFields(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote, escaped, inField := false, false, false

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			inField = true
		case r == ' ' && !inQuote:
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}

	if inQuote || escaped {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// quote wraps s in double quotes when upsd would otherwise split it
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \"\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
