// Package munintest provides a small in-process munin-node: scriptable
// plugins for tests and live host plugins for the mocknode subcommand.
package munintest

import (
	"bufio"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
)

// PluginFunc produces the response lines for one fetch of a plugin,
// without the trailing "." terminator.
type PluginFunc func() []string

// Server is a minimal munin-node. It understands fetch, list and quit and
// greets every session with a banner line.
type Server struct {
	mu         sync.Mutex
	plugins    map[string]PluginFunc
	fetchCount map[string]int
	quitCount  int
	ln         net.Listener
	closed     bool
	wg         sync.WaitGroup
}

// New creates an empty server; register plugins before Start.
func New() *Server {
	return &Server{
		plugins:    make(map[string]PluginFunc),
		fetchCount: make(map[string]int),
	}
}

// Handle registers a plugin with fixed response lines.
func (s *Server) Handle(plugin string, lines ...string) {
	s.HandleFunc(plugin, func() []string { return lines })
}

// HandleFunc registers a plugin whose lines are produced per fetch.
func (s *Server) HandleFunc(plugin string, fn PluginFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins[plugin] = fn
}

// Start listens on an ephemeral loopback port and serves until Close.
func (s *Server) Start() error {
	return s.Listen("127.0.0.1:0")
}

// Listen binds the given address and serves until Close.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Host and Port report the bound address, for pointing a client at the
// server.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

func (s *Server) Port() int {
	addr := s.ln.Addr().(*net.TCPAddr)
	return addr.Port
}

// FetchCount reports how many fetch commands arrived for a plugin.
func (s *Server) FetchCount(plugin string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCount[plugin]
}

// QuitCount reports how many sessions were closed with an explicit quit.
func (s *Server) QuitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quitCount
}

// Close stops the listener and waits for in-flight sessions.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	w := bufio.NewWriter(conn)
	_, _ = fmt.Fprintf(w, "# munin node at munintest\n")
	_ = w.Flush()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "quit", line == ".":
			s.mu.Lock()
			s.quitCount++
			s.mu.Unlock()
			return
		case line == "list":
			_, _ = fmt.Fprintf(w, "%s\n", strings.Join(s.pluginNames(), " "))
		case strings.HasPrefix(line, "fetch "):
			s.handleFetch(w, strings.TrimPrefix(line, "fetch "))
		default:
			_, _ = fmt.Fprintf(w, "# Unknown command. Try list, fetch or quit\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) handleFetch(w *bufio.Writer, plugin string) {
	s.mu.Lock()
	fn, ok := s.plugins[plugin]
	s.fetchCount[plugin]++
	s.mu.Unlock()

	if !ok {
		_, _ = fmt.Fprintf(w, "# Unknown service\n.\n")
		return
	}
	for _, line := range fn() {
		_, _ = fmt.Fprintf(w, "%s\n", line)
	}
	_, _ = fmt.Fprintf(w, ".\n")
}

func (s *Server) pluginNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.plugins))
	for name := range s.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
