package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/fisaks/m2md/internal/bridge"
)

// maxPollLineBytes matches the poll-list format's documented cap; lines
// longer than this are logged and skipped without aborting the parse.
const maxPollLineBytes = 4096

// PollEntry is one successfully parsed poll-list row: a Poll record plus
// the device address it belongs to.
type PollEntry struct {
	Host string
	Port int
	Poll bridge.Poll
}

// LoadPollFile parses the CSV poll-list at path, skipping (and warning
// about) any line that fails validation rather than aborting the whole
// load — the same "skip bad record, keep going" policy the teacher's own
// config loader uses for malformed catalog/device entries.
func LoadPollFile(path string, logger *slog.Logger) ([]PollEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open poll list: %w", err)
	}
	defer f.Close()
	return parsePollFile(f, logger)
}

func parsePollFile(r io.Reader, logger *slog.Logger) ([]PollEntry, error) {
	var entries []PollEntry

	br := bufio.NewReader(r)
	lineNo := 0
	var err error
	for err == nil {
		var raw string
		raw, err = br.ReadString('\n')
		lineNo++
		raw = strings.TrimRight(raw, "\r\n")
		if len(raw) > maxPollLineBytes {
			logger.Warn("poll-list line too long, skipping", "line", lineNo, "bytes", len(raw))
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parsePollLine(line)
		if err != nil {
			logger.Warn("poll-list line invalid, skipping", "line", lineNo, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err != io.EOF {
		return nil, fmt.Errorf("config: read poll list: %w", err)
	}
	return entries, nil
}

// parsePollLine parses one CSV row:
//
//	ipv4, port, unit_id, type, register, function, scale, poll_s, poll_ms, topic
//
// where type is a sign character (+ or -) followed by a width digit (1 or
// 2, 0 treated as an alias for 1).
func parsePollLine(line string) (PollEntry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 10 {
		return PollEntry{}, fmt.Errorf("expected 10 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	host := fields[0]
	if net.ParseIP(host) == nil || net.ParseIP(host).To4() == nil {
		return PollEntry{}, fmt.Errorf("invalid ipv4 address %q", host)
	}

	port, err := strconv.Atoi(fields[1])
	if err != nil || port < 1 || port > 65535 {
		return PollEntry{}, fmt.Errorf("port %q out of range [1,65535]", fields[1])
	}

	unit, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return PollEntry{}, fmt.Errorf("invalid unit_id %q", fields[2])
	}

	signed, width, err := parseType(fields[3])
	if err != nil {
		return PollEntry{}, err
	}

	register, err := strconv.ParseUint(fields[4], 10, 16)
	if err != nil {
		return PollEntry{}, fmt.Errorf("invalid register %q", fields[4])
	}

	fc, err := strconv.ParseUint(fields[5], 10, 8)
	if err != nil {
		return PollEntry{}, fmt.Errorf("invalid function code %q", fields[5])
	}

	scale, err := strconv.ParseFloat(fields[6], 32)
	if err != nil {
		return PollEntry{}, fmt.Errorf("invalid scale %q", fields[6])
	}

	pollS, err := strconv.ParseUint(fields[7], 10, 32)
	if err != nil {
		return PollEntry{}, fmt.Errorf("invalid poll_s %q", fields[7])
	}
	pollMS, err := strconv.ParseUint(fields[8], 10, 16)
	if err != nil || pollMS > 999 {
		return PollEntry{}, fmt.Errorf("invalid poll_ms %q", fields[8])
	}

	topic := fields[9]

	poll, err := bridge.NewPoll(
		bridge.FunctionCode(fc),
		uint16(register),
		uint8(unit),
		signed,
		width,
		float32(scale),
		bridge.Period{Seconds: uint32(pollS), Milliseconds: uint16(pollMS)},
		topic,
	)
	if err != nil {
		return PollEntry{}, err
	}

	return PollEntry{Host: host, Port: port, Poll: poll}, nil
}

func parseType(s string) (signed bool, width uint8, err error) {
	if len(s) != 2 {
		return false, 0, fmt.Errorf("invalid type %q: expected sign + width, e.g. \"+1\"", s)
	}
	switch s[0] {
	case '+':
		signed = false
	case '-':
		signed = true
	default:
		return false, 0, fmt.Errorf("invalid type %q: sign must be + or -", s)
	}
	switch s[1] {
	case '0', '1':
		width = 1
	case '2':
		width = 2
	default:
		return false, 0, fmt.Errorf("invalid type %q: width must be 0, 1 or 2", s)
	}
	return signed, width, nil
}
