// Package munin implements the client side of the munin-node fetch
// protocol: a line-oriented text exchange over TCP that yields
// (name, value) pairs per plugin.
package munin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Metric is a single data point as reported by a plugin. The value is an
// opaque string and is never interpreted by the bridge.
type Metric struct {
	Name  string
	Value string
}

// NullValue is the sentinel stored for fields whose plugin reports itself
// faulted ("Unknown" or "Bad").
const NullValue = "NULL"

// terminator ends a plugin's output block.
const terminator = "."

// Client speaks the fetch protocol to a single munin-node.
type Client struct {
	host    string
	port    int
	timeout time.Duration
	log     *zap.Logger
}

// NewClient creates a client for the node at host:port. The timeout
// bounds dialing and every single line read/write.
func NewClient(host string, port int, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{host: host, port: port, timeout: timeout, log: log}
}

// Addr returns the node address in host:port form.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
}

// Fetch polls every plugin spec over one node session and returns the
// metrics and errors per plugin. A failure on one plugin never aborts the
// cycle: the session is re-dialed once and the remaining plugins are
// fetched on the fresh connection. Only a node that stays unreachable
// fails the rest of the cycle, and even then each plugin carries its own
// error instead of the cycle failing as a whole.
func (c *Client) Fetch(ctx context.Context, plugins []string) (map[string][]Metric, map[string]error) {
	results := make(map[string][]Metric, len(plugins))
	errs := make(map[string]error)

	sess, err := c.dial(ctx)
	if err != nil {
		for _, p := range plugins {
			errs[p] = err
		}
		return results, errs
	}

	redialed := false
	for i, spec := range plugins {
		if ctxErr := ctx.Err(); ctxErr != nil {
			for _, rest := range plugins[i:] {
				errs[rest] = ctxErr
			}
			break
		}

		if sess == nil {
			if redialed {
				errs[spec] = err
				continue
			}
			redialed = true
			if sess, err = c.dial(ctx); err != nil {
				c.log.Warn("munin re-dial failed", zap.Error(err))
				errs[spec] = err
				sess = nil
				continue
			}
		}

		metrics, eof, fetchErr := c.fetchPlugin(sess, spec)
		if fetchErr != nil {
			c.log.Warn("plugin fetch failed",
				zap.String("plugin", spec),
				zap.String("node", c.Addr()),
				zap.Error(fetchErr))
			errs[spec] = fetchErr
			// the session state is unknown after a failed exchange
			sess.close(false)
			sess = nil
			err = fetchErr
			continue
		}
		results[spec] = metrics
		if eof {
			// the node hung up after this block; a fresh session is
			// needed for any remaining plugin
			sess.close(false)
			sess = nil
		}
	}

	if sess != nil {
		sess.close(true)
	}
	return results, errs
}

type session struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial munin node %s: %w", c.Addr(), err)
	}
	c.log.Debug("munin session opened", zap.String("node", c.Addr()))
	return &session{conn: conn, reader: bufio.NewReader(conn), timeout: c.timeout}, nil
}

// fetchPlugin issues one fetch command and parses the response block. The
// spec may carry a field filter ("plugin.field"). A clean end of stream
// terminates the block like a "." but marks the session as finished.
func (c *Client) fetchPlugin(sess *session, spec string) ([]Metric, bool, error) {
	plugin, field := splitSpec(spec)

	if err := sess.writeLine("fetch " + plugin); err != nil {
		return nil, false, fmt.Errorf("send fetch %s: %w", plugin, err)
	}

	var metrics []Metric
	for {
		line, err := sess.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return metrics, true, nil
			}
			return nil, false, fmt.Errorf("read response for %s: %w", plugin, err)
		}
		if line == terminator {
			return metrics, false, nil
		}
		// node banner and "# Unknown service" style diagnostics
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		name, value, ok := parseLine(line)
		if !ok {
			return nil, false, fmt.Errorf("malformed line from plugin %s: %q", plugin, line)
		}
		if field != "" && name != field {
			continue
		}
		metrics = append(metrics, Metric{
			Name:  metricName(plugin, field, name),
			Value: value,
		})
	}
}

// splitSpec separates "plugin.field" into its parts; a bare plugin name
// returns an empty field filter.
func splitSpec(spec string) (plugin, field string) {
	if i := strings.IndexByte(spec, '.'); i >= 0 {
		return spec[:i], spec[i+1:]
	}
	return spec, ""
}

// parseLine splits "<name> <value>" and strips the trailing ".value"
// qualifier munin puts on fetch output.
func parseLine(line string) (name, value string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", "", false
	}
	name = strings.TrimSuffix(fields[0], ".value")
	value = fields[1]
	if value == "Unknown" || value == "Bad" {
		value = NullValue
	}
	return name, value, true
}

// metricName maps a fetched field to the cache-visible metric name. A
// field filter keeps the qualified spec name; an unfiltered field equal
// to its plugin collapses to the bare plugin name, anything else gets the
// plugin prefixed.
func metricName(plugin, field, fetched string) string {
	if field != "" {
		return plugin + "." + field
	}
	if fetched == plugin {
		return plugin
	}
	return plugin + "." + fetched
}

func (s *session) writeLine(line string) error {
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

func (s *session) readLine() (string, error) {
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", err
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		// a node may hang up without terminating the last line; the
		// partial line still carries data, EOF surfaces on the next read
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// close ends the session, politely when the protocol state allows it.
func (s *session) close(sendQuit bool) {
	if sendQuit {
		_ = s.writeLine("quit")
	}
	_ = s.conn.Close()
}
