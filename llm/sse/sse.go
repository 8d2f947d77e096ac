// ABOUTME: Server-Sent Events (SSE) stream parser per the W3C EventSource specification.
// ABOUTME: Reads from an io.Reader and yields events; shared by tests and SSE-consuming clients.

package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Event represents a single Server-Sent Event parsed from a stream.
type Event struct {
	Type  string // from "event:" line, defaults to "message"
	Data  string // from "data:" line(s), joined with newlines for multi-line
	ID    string // from "id:" line
	Retry int    // from "retry:" line, -1 if not set
}

// Parser reads SSE events from an io.Reader.
type Parser struct {
	r    *bufio.Reader
	done bool

	// Accumulation state for the event currently being built.
	eventType string
	dataLines []string
	hasData   bool
	id        string
	retry     int
}

// NewParser creates a new SSE parser that reads from the given reader.
func NewParser(reader io.Reader) *Parser {
	return &Parser{
		r:     bufio.NewReaderSize(reader, 4096),
		retry: -1,
	}
}

// Next returns the next SSE event from the stream.
// Returns io.EOF when the stream ends.
func (p *Parser) Next() (Event, error) {
	if p.done {
		return Event{}, io.EOF
	}

	for {
		line, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				p.done = true
				// Stream ended with pending data: dispatch it.
				if p.hasData {
					evt := p.buildEvent()
					p.resetState()
					return evt, nil
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		// A blank line dispatches the current event. Consecutive blank lines
		// with nothing accumulated produce no event.
		if line == "" {
			if !p.hasData {
				continue
			}
			evt := p.buildEvent()
			p.resetState()
			return evt, nil
		}

		// Comment lines start with ':'.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		p.applyField(field, value)
	}
}

// splitField splits an SSE line into field name and value. With no colon the
// entire line is the field name. A single leading space after the colon is
// stripped from the value.
func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// applyField folds a parsed field into the accumulation state.
func (p *Parser) applyField(field, value string) {
	switch field {
	case "event":
		p.eventType = value
	case "data":
		p.dataLines = append(p.dataLines, value)
		p.hasData = true
	case "id":
		p.id = value
	case "retry":
		if n, err := strconv.Atoi(value); err == nil {
			p.retry = n
		}
		// Invalid retry values are ignored per the SSE spec.
	default:
		// Unknown fields are ignored.
	}
}

func (p *Parser) buildEvent() Event {
	eventType := p.eventType
	if eventType == "" {
		eventType = "message"
	}
	return Event{
		Type:  eventType,
		Data:  strings.Join(p.dataLines, "\n"),
		ID:    p.id,
		Retry: p.retry,
	}
}

func (p *Parser) resetState() {
	p.eventType = ""
	p.dataLines = nil
	p.hasData = false
	p.id = ""
	p.retry = -1
}

// readLine reads one line, treating CR, LF, and CRLF as terminators.
// bufio.Scanner only handles LF and CRLF natively, so lines are assembled
// byte by byte.
func (p *Parser) readLine() (string, error) {
	var line strings.Builder
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			if err == io.EOF && line.Len() > 0 {
				return line.String(), nil
			}
			return "", err
		}

		if b == '\n' {
			return line.String(), nil
		}

		if b == '\r' {
			// Consume the LF of a CRLF pair if present.
			if next, err := p.r.ReadByte(); err == nil && next != '\n' {
				_ = p.r.UnreadByte()
			}
			return line.String(), nil
		}

		line.WriteByte(b)
	}
}
