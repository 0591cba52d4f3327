// Package mocks provides a scripted Altitude processor for integration
// tests. The server speaks the real automation protocol over TCP: a welcome
// banner, a full state dump in answer to get_current_state and OK/ERROR
// answers to commands.
package mocks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Welcome banner sent on every connection.
const welcomeLine = "Welcome on Trinnov Optimizer (Version 4.3.2rc1, ID 10485761)"

// stateDump is the answer a real unit produces to get_current_state,
// captured from a live session. It deliberately includes message types the
// client does not parse.
var stateDump = []string{
	"OK",
	"SOURCES_CHANGED",
	"OPTSOURCE 0 Source 1",
	"OK",
	"SOURCE 0",
	"CURRENT_SOURCE_FORMAT_NAME Atmos narrow",
	"CURRENT_SOURCE_CHANNELS_ORDER_IS_DCI 0",
	"CURRENT_SOURCE_CHANNELS_ORDER L-R-C-Ls-Rs-Lrs-Rrs-Ltm-Rtm-LFE",
	"START_RUNNING",
	"CALIBRATION_DONE",
	"STOP_COMPUTING",
	"REMAPPING_MODE none",
	"MON_VOL -40.0",
	"VOLUME -40.0",
	"DISPLAY_VOLUME -40.0",
	"BYPASS 0",
	"DIM 0",
	"MUTE 0",
	"FAV_LIGHT 0",
	"OK",
	"LABELS_CLEAR",
	"LABEL 0: Builtin",
	"LABEL 1: MLP",
	"PROFILES_CLEAR",
	"PROFILE 0: Kaleidescape",
	"PROFILE 1: Apple TV",
	"PROFILE 2: PS 5",
	"PROFILE 3: HDMI 4",
	"PROFILE 8: NETWORK",
	"PROFILE 30: ROON",
	"OK",
	"SRATE 48000",
	"AUDIOSYNC_STATUS 0",
	"DECODER NONAUDIO 1 PLAYABLE 0 DECODER none UPMIXER none",
	"AUDIOSYNC Slave",
	"CURRENT_PROFILE 1",
	"CURRENT_PRESET -1",
}

var (
	dvolumeRe = regexp.MustCompile(`^dvolume\s(-?\d+(\.\d+)?)`)
	volumeRe  = regexp.MustCompile(`^volume\s(-?\d+(\.\d+)?)`)
	idRe      = regexp.MustCompile(`^id (.*)`)
	toggleRe  = regexp.MustCompile(`^(mute|dim|bypass)\s([012])$`)
	loadpRe   = regexp.MustCompile(`^loadp\s(-?\d+)$`)
	profileRe = regexp.MustCompile(`^profile\s(-?\d+)$`)
)

// Server mimics an Altitude processor on a local TCP port.
type Server struct {
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	volume   float64
	mute     bool
	dim      bool
	bypass   bool
	stopped  bool

	wg sync.WaitGroup
}

// NewServer creates a stopped mock server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
		volume: -40,
	}
}

// Start listens on addr ("127.0.0.1:0" picks an ephemeral port) and serves
// connections until Stop.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock server listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.stopped = false
	s.mu.Unlock()

	s.logger.Info("mock server started", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr returns the listen address, usable as a dial target.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the listen port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop closes the listener and all active connections. Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
	s.logger.Info("mock server stopped")
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			return
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.logger.Debug("client disconnected")
	}()

	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String())

	if err := s.writeLine(conn, welcomeLine); err != nil {
		return
	}

	powerOff := false
	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line := strings.TrimRight(raw, "\r\n")
		s.logger.Debug("received command", "line", line)

		if line == "power_off_SECURED_FHZMCH48FE" {
			s.logger.Info("received shut down signal")
			powerOff = true
			break
		}
		if line == "bye" {
			break
		}
		for _, response := range s.handleCommand(line) {
			if err := s.writeLine(conn, response); err != nil {
				return
			}
		}
	}

	if powerOff {
		// Stop must run outside this handler's wait group.
		go s.Stop()
	}
}

// handleCommand produces the unit's answers to one command line.
func (s *Server) handleCommand(line string) []string {
	if line == "get_current_state" {
		// A real unit pauses briefly before the dump.
		time.Sleep(50 * time.Millisecond)
		return stateDump
	}
	if line == "send volume" {
		return []string{"OK"}
	}
	if m := dvolumeRe.FindStringSubmatch(line); m != nil {
		delta, _ := strconv.ParseFloat(m[1], 64)
		s.mu.Lock()
		s.volume += delta
		volume := s.volume
		s.mu.Unlock()
		return []string{"OK", "VOLUME " + formatVolume(volume)}
	}
	if m := volumeRe.FindStringSubmatch(line); m != nil {
		volume, _ := strconv.ParseFloat(m[1], 64)
		s.mu.Lock()
		s.volume = volume
		s.mu.Unlock()
		return []string{"OK", "VOLUME " + formatVolume(volume)}
	}
	if m := toggleRe.FindStringSubmatch(line); m != nil {
		s.mu.Lock()
		var value *bool
		switch m[1] {
		case "mute":
			value = &s.mute
		case "dim":
			value = &s.dim
		case "bypass":
			value = &s.bypass
		}
		switch m[2] {
		case "0":
			*value = false
		case "1":
			*value = true
		case "2":
			*value = !*value
		}
		broadcast := strings.ToUpper(m[1]) + " " + boolDigit(*value)
		s.mu.Unlock()
		return []string{"OK", broadcast}
	}
	if m := loadpRe.FindStringSubmatch(line); m != nil {
		return []string{"OK", "CURRENT_PRESET " + m[1]}
	}
	if m := profileRe.FindStringSubmatch(line); m != nil {
		return []string{"OK", "CURRENT_PROFILE " + m[1]}
	}
	if idRe.MatchString(line) {
		return []string{"OK"}
	}
	return []string{"ERROR: invalid command: " + line}
}

func (s *Server) writeLine(conn net.Conn, line string) error {
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
