package ipping

import (
	"math"
	"strconv"
	"strings"
)

// stage is the position of the parser within the ping summary.
type stage uint8

const (
	stageHeader stage = iota
	stageSkip1
	stageSkip2
	stageCounts
	stageRtt
	stageDone
)

// ResultKind says what the caller should do with a parsed line.
type ResultKind uint8

const (
	// ResultContinue means the line carried nothing to store.
	ResultContinue ResultKind = iota
	// ResultStatsUpdate carries packet counters; more lines follow.
	ResultStatsUpdate
	// ResultTerminal ends the session.
	ResultTerminal
)

// Result is the outcome of feeding one line to the Parser.
// For ResultTerminal, State is StateNone when the output was malformed.
type Result struct {
	Kind   ResultKind
	State  State
	Counts *Counts
	RTT    *RTT
}

// hostErrorMarkers identify a header line reporting an unresolvable host.
var hostErrorMarkers = []string{
	"unknown",
	"Name or service not known",
	"Temporary failure in name resolution",
	"cannot resolve",
}

// Parser consumes the quiet-mode output of ping one line at a time:
//
//	PING example.org (93.184.216.34) 56(84) bytes of data.
//
//	--- example.org ping statistics ---
//	4 packets transmitted, 4 received, 0% packet loss, time 3004ms
//	rtt min/avg/max/mdev = 10.123/12.456/15.789/2.000 ms
type Parser struct {
	stage stage
}

// NewParser returns a parser positioned at the header line.
func NewParser() *Parser {
	return &Parser{}
}

// Feed parses one line without its terminator.
func (p *Parser) Feed(line string) Result {
	switch p.stage {
	case stageHeader:
		for _, marker := range hostErrorMarkers {
			if strings.Contains(line, marker) {
				p.stage = stageDone
				return Result{Kind: ResultTerminal, State: StateErrorHostName}
			}
		}
		p.stage = stageSkip1
		return Result{Kind: ResultContinue}
	case stageSkip1:
		p.stage = stageSkip2
		return Result{Kind: ResultContinue}
	case stageSkip2:
		p.stage = stageCounts
		return Result{Kind: ResultContinue}
	case stageCounts:
		counts, ok := parseCounts(line)
		if !ok {
			p.stage = stageDone
			return Result{Kind: ResultTerminal}
		}
		if counts.Success == 0 {
			p.stage = stageDone
			return Result{Kind: ResultTerminal, State: StateComplete, Counts: &counts, RTT: &RTT{}}
		}
		p.stage = stageRtt
		return Result{Kind: ResultStatsUpdate, Counts: &counts}
	case stageRtt:
		p.stage = stageDone
		rtt, ok := parseRTT(line)
		if !ok {
			return Result{Kind: ResultTerminal}
		}
		return Result{Kind: ResultTerminal, State: StateComplete, RTT: &rtt}
	default:
		return Result{Kind: ResultTerminal}
	}
}

// parseCounts reads "<total> <word> <word> <received>".
func parseCounts(line string) (Counts, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Counts{}, false
	}
	total, ok := leadingUint(fields[0])
	if !ok {
		return Counts{}, false
	}
	received, ok := leadingUint(fields[3])
	if !ok || received > total {
		return Counts{}, false
	}
	return Counts{Success: received, Error: total - received}, true
}

// parseRTT reads the min/avg/max/mdev block that starts two characters
// after the first '='.
func parseRTT(line string) (RTT, bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 || idx+2 > len(line) {
		return RTT{}, false
	}
	parts := strings.SplitN(line[idx+2:], "/", 4)
	if len(parts) != 4 {
		return RTT{}, false
	}
	// The unit may follow the last value with or without a space.
	parts[3] = leadingFloat(parts[3])

	var vals [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return RTT{}, false
		}
		vals[i] = v
	}
	minMs, avgMs, maxMs, mdevMs := vals[0], vals[1], vals[2], vals[3]

	return RTT{
		MinMs:   truncUint32(minMs),
		AvgMs:   truncUint32(avgMs),
		MaxMs:   truncUint32(maxMs),
		StdevUs: truncUint32(mdevMs * 1000),
	}, true
}

// leadingFloat returns the unsigned decimal number at the start of s,
// skipping leading blanks.
func leadingFloat(s string) string {
	s = strings.TrimLeft(s, " \t")
	end := 0
	dot := false
	for end < len(s) {
		c := s[end]
		if c == '.' && !dot {
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	return s[:end]
}

// leadingUint parses the decimal digits at the start of s.
func leadingUint(s string) (uint32, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func truncUint32(v float64) uint32 {
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
