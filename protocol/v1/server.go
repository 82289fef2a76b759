package v1

// This file contains the v1 protocol server: a line driven state machine that
// turns a text stream into sink events and forwards everything that is not
// a directive.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/subunit/details"
	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/protoerr"
	"github.com/perfgo/subunit/result"
)

// Mode decides how directives that do not fit the current state are handled.
type Mode uint8

const (
	// ModeLenient closes a still open test as an error when another test
	// starts, and synthesizes a zero duration test for an outcome with no
	// open test.
	ModeLenient Mode = iota
	// ModeLegacy forwards such lines to the passthrough writer.
	ModeLegacy
	// ModeStrict rejects them with ErrProtocolViolation.
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeLegacy:
		return "legacy"
	case ModeStrict:
		return "strict"
	}
	return "lenient"
}

// ParseMode parses the name of a mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "", "lenient":
		return ModeLenient, nil
	case "legacy":
		return ModeLegacy, nil
	case "strict":
		return ModeStrict, nil
	}
	return ModeLenient, fmt.Errorf("unknown mode %q (use lenient, legacy or strict)", name)
}

type state uint8

const (
	outsideTest state = iota
	inTest
	readingDetails
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPassthrough sets where non-protocol lines are written.
func WithPassthrough(w io.Writer) Option {
	return func(s *Server) {
		s.passthrough = w
	}
}

// WithForward copies every consumed protocol line to w.
func WithForward(w io.Writer) Option {
	return func(s *Server) {
		s.forward = w
	}
}

// WithMode sets the policy for out of place directives.
func WithMode(mode Mode) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// Server parses a v1 stream. Feed it with Write or LineReceived and call
// LostConnection when the input ends.
type Server struct {
	sink        result.Sink
	logger      zerolog.Logger
	passthrough io.Writer
	forward     io.Writer
	mode        Mode

	state   state
	current string
	outcome model.Outcome
	details details.Parser
	// tags is the session wide tag set; tags directives inside a test update it too
	tags    model.TagSet
	pending []byte
	line    int
}

// NewServer returns a server emitting events to sink.
func NewServer(sink result.Sink, opts ...Option) *Server {
	s := &Server{
		sink:        sink,
		logger:      zerolog.Nop(),
		passthrough: io.Discard,
		tags:        model.NewTagSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentTags returns the session tag set in sorted order.
func (s *Server) CurrentTags() []string {
	return s.tags.Sorted()
}

// Write feeds raw bytes; complete lines are processed immediately and a
// trailing partial line is kept for the next call.
func (s *Server) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	for {
		idx := bytes.IndexByte(s.pending, '\n')
		if idx < 0 {
			break
		}
		line := s.pending[:idx+1]
		s.pending = s.pending[idx+1:]
		if err := s.LineReceived(line); err != nil {
			return len(p), err
		}
	}
	s.pending = append([]byte(nil), s.pending...)
	return len(p), nil
}

// Run reads r to the end and then calls LostConnection.
func (s *Server) Run(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if lerr := s.LineReceived(line); lerr != nil {
				return lerr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read stream: %w", err)
		}
	}
	return s.LostConnection()
}

// LineReceived processes one line including its newline.
func (s *Server) LineReceived(line []byte) error {
	s.line++
	if err := s.lineReceived(line); err != nil {
		var perr *protoerr.Error
		if errors.As(err, &perr) {
			perr.Line = s.line
		}
		return err
	}
	return nil
}

func (s *Server) lineReceived(line []byte) error {
	if s.state == readingDetails {
		if err := s.forwardLine(line); err != nil {
			return err
		}
		done, err := s.details.LineReceived(line)
		if err != nil {
			return err
		}
		if done {
			d := s.details.Details(details.StyleFor(s.outcome))
			return s.finishTest(model.Result{TestID: s.current, Outcome: s.outcome, Details: d})
		}
		return nil
	}

	cmd, rest, ok := parseDirective(line)
	if !ok {
		return s.passthroughLine(line)
	}

	switch cmd {
	case "test", "testing":
		return s.startTest(line, rest)
	case "success", "successful":
		return s.handleOutcome(line, rest, model.Success)
	case "failure":
		return s.handleOutcome(line, rest, model.Failure)
	case "error":
		return s.handleOutcome(line, rest, model.Error)
	case "skip":
		return s.handleOutcome(line, rest, model.Skip)
	case "xfail":
		return s.handleOutcome(line, rest, model.XFail)
	case "uxsuccess":
		return s.handleOutcome(line, rest, model.UxSuccess)
	case "tags":
		return s.handleTags(line, rest)
	case "time":
		return s.handleTime(line, rest)
	case "progress":
		return s.handleProgress(line, rest)
	}
	return s.passthroughLine(line)
}

// parseDirective splits "keyword[:] rest\n". Indented lines and lines with
// nothing after the keyword are not directives.
func parseDirective(line []byte) (cmd, rest string, ok bool) {
	idx := bytes.IndexAny(line, " \t")
	if idx <= 0 {
		return "", "", false
	}
	rest = strings.TrimSuffix(string(line[idx+1:]), "\n")
	if strings.TrimSpace(rest) == "" {
		return "", "", false
	}
	cmd = strings.TrimRight(string(line[:idx]), ":")
	switch cmd {
	case "test", "testing", "success", "successful", "failure", "error", "skip",
		"xfail", "uxsuccess", "progress", "tags", "time":
		return cmd, rest, true
	}
	return "", "", false
}

func (s *Server) startTest(line []byte, id string) error {
	if s.state == inTest {
		switch s.mode {
		case ModeLegacy:
			return s.passthroughLine(line)
		case ModeStrict:
			return protoerr.AtLine(protoerr.ErrProtocolViolation, s.line, "test %q started while test %q is still open", id, s.current)
		}
		s.logger.Debug().Str("open", s.current).Str("test", id).Msg("Closing unfinished test")
		msg := fmt.Sprintf("test '%s' was not closed before test '%s' started", s.current, id)
		if err := s.closeWithError(msg); err != nil {
			return err
		}
	}

	if err := s.forwardLine(line); err != nil {
		return err
	}
	s.state = inTest
	s.current = id
	return s.sink.StartTest(id)
}

func (s *Server) handleOutcome(line []byte, rest string, outcome model.Outcome) error {
	if s.state == inTest {
		var block, multipart bool
		switch rest {
		case s.current:
		case s.current + " [":
			block = true
		case s.current + " [ multipart":
			block, multipart = true, true
		default:
			if s.mode == ModeStrict {
				return protoerr.AtLine(protoerr.ErrProtocolViolation, s.line, "%s for %q while test %q is open", outcome, rest, s.current)
			}
			return s.passthroughLine(line)
		}
		if err := s.forwardLine(line); err != nil {
			return err
		}
		return s.beginOutcome(outcome, block, multipart)
	}

	id, block, multipart := splitOutcome(rest)
	switch s.mode {
	case ModeLegacy:
		return s.passthroughLine(line)
	case ModeStrict:
		return protoerr.AtLine(protoerr.ErrProtocolViolation, s.line, "%s for test %q which is not open", outcome, id)
	}

	s.logger.Debug().Str("test", id).Stringer("outcome", outcome).Msg("Synthesizing test for outcome without start")
	if err := s.forwardLine(line); err != nil {
		return err
	}
	s.current = id
	s.state = inTest
	if err := s.sink.StartTest(id); err != nil {
		return err
	}
	return s.beginOutcome(outcome, block, multipart)
}

// splitOutcome separates the test id from a trailing details opener.
func splitOutcome(rest string) (id string, block, multipart bool) {
	if id, ok := strings.CutSuffix(rest, " [ multipart"); ok {
		return id, true, true
	}
	if id, ok := strings.CutSuffix(rest, " ["); ok {
		return id, true, false
	}
	return rest, false, false
}

func (s *Server) beginOutcome(outcome model.Outcome, block, multipart bool) error {
	if !block {
		return s.finishTest(model.Result{TestID: s.current, Outcome: outcome})
	}
	s.state = readingDetails
	s.outcome = outcome
	s.details = details.New(multipart)
	return nil
}

func (s *Server) finishTest(r model.Result) error {
	id := s.current
	s.state = outsideTest
	s.current = ""
	s.details = nil
	if err := s.sink.AddOutcome(r); err != nil {
		return err
	}
	return s.sink.StopTest(id)
}

func (s *Server) closeWithError(msg string) error {
	return s.finishTest(model.Result{
		TestID:  s.current,
		Outcome: model.Error,
		Details: model.Details{"traceback": model.Traceback(msg)},
	})
}

func (s *Server) handleTags(line []byte, rest string) error {
	if err := s.forwardLine(line); err != nil {
		return err
	}
	gained, lost := model.ParseTagArgs(strings.Fields(rest))
	s.tags.Apply(gained, lost)
	return s.sink.Tags(gained, lost)
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
}

// ParseTime parses the timestamp of a time directive.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func (s *Server) handleTime(line []byte, rest string) error {
	t, err := ParseTime(rest)
	if err != nil {
		e := protoerr.AtLine(protoerr.ErrProtocolViolation, s.line, "failed to parse time %q", rest)
		e.Err = err
		return e
	}
	if err := s.forwardLine(line); err != nil {
		return err
	}
	return s.sink.Time(t)
}

func (s *Server) handleProgress(line []byte, rest string) error {
	var p model.Progress
	value := strings.TrimSpace(rest)
	switch value {
	case "push":
		p.Kind = model.ProgressPush
	case "pop":
		p.Kind = model.ProgressPop
	default:
		n, err := strconv.Atoi(value)
		if err != nil {
			return protoerr.AtLine(protoerr.ErrProtocolViolation, s.line, "invalid progress %q", value)
		}
		p.Kind = model.ProgressSet
		if strings.HasPrefix(value, "+") || strings.HasPrefix(value, "-") {
			p.Kind = model.ProgressCur
		}
		p.Value = n
	}
	if err := s.forwardLine(line); err != nil {
		return err
	}
	return s.sink.Progress(p)
}

// LostConnection ends the stream. A test that is still open is reported as
// an error naming the phase that was interrupted.
func (s *Server) LostConnection() error {
	if len(s.pending) > 0 {
		line := s.pending
		s.pending = nil
		if err := s.LineReceived(line); err != nil {
			return err
		}
	}

	var msg string
	switch s.state {
	case inTest:
		msg = fmt.Sprintf("lost connection during test '%s'", s.current)
	case readingDetails:
		msg = fmt.Sprintf("lost connection during %s report of test '%s'", s.outcome, s.current)
	default:
		return nil
	}

	s.logger.Warn().Str("test", s.current).Int("line", s.line).Msg("Stream ended inside test")
	if err := s.closeWithError(msg); err != nil {
		return err
	}
	// strict mode still closes the test but also fails the run
	if s.mode == ModeStrict {
		return protoerr.AtLine(protoerr.ErrTruncatedStream, s.line, "%s", msg)
	}
	return nil
}

func (s *Server) passthroughLine(line []byte) error {
	if _, err := s.passthrough.Write(line); err != nil {
		return fmt.Errorf("failed to write passthrough: %w", err)
	}
	return nil
}

func (s *Server) forwardLine(line []byte) error {
	if s.forward == nil {
		return nil
	}
	if _, err := s.forward.Write(line); err != nil {
		return fmt.Errorf("failed to forward line: %w", err)
	}
	return nil
}
