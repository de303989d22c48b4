package ipping

import (
	"fmt"
	"math"
	"strconv"

	"github.com/smazurov/pingnode/internal/dm"
)

// MaxHostnameLength is the longest accepted hostname in bytes.
const MaxHostnameLength = 256

// Configuration holds the probe parameters. The zero value is unset.
type Configuration struct {
	Hostname    string `json:"hostname"`
	Repetitions uint32 `json:"repetitions"`
	TimeoutMs   uint32 `json:"timeout_ms"`
	BlockSize   uint16 `json:"block_size"`
	DSCP        uint8  `json:"dscp"`
}

// Runnable reports whether every parameter needed to start a probe is set.
func (c Configuration) Runnable() bool {
	return c.Repetitions != 0 && c.TimeoutMs != 0 && c.BlockSize != 0 && c.Hostname != ""
}

// Args returns the ping arguments for this configuration.
// The TOS byte carries the DSCP in its upper six bits.
func (c Configuration) Args() []string {
	timeoutSec := c.TimeoutMs / 1000
	if timeoutSec < 1 {
		timeoutSec = 1
	}
	return []string{
		"-q",
		"-c", strconv.FormatUint(uint64(c.Repetitions), 10),
		"-Q", fmt.Sprintf("0x%x", uint32(c.DSCP)<<2),
		"-W", strconv.FormatUint(uint64(timeoutSec), 10),
		"-s", strconv.FormatUint(uint64(c.BlockSize), 10),
		c.Hostname,
	}
}

func (c *Configuration) value(rid dm.ResourceID) dm.Value {
	switch rid {
	case ResHostname:
		return dm.String(c.Hostname)
	case ResRepetitions:
		return dm.Int(int64(c.Repetitions))
	case ResTimeoutMs:
		return dm.Int(int64(c.TimeoutMs))
	case ResBlockSize:
		return dm.Int(int64(c.BlockSize))
	case ResDSCP:
		return dm.Int(int64(c.DSCP))
	}
	return dm.Value{Kind: dm.KindNone}
}

// set validates v and stores it. On error the field is left unchanged.
func (c *Configuration) set(rid dm.ResourceID, v dm.Value) error {
	switch rid {
	case ResHostname:
		s, err := v.AsString()
		if err != nil {
			return err
		}
		if len(s) > MaxHostnameLength {
			return dm.NewError(dm.CodeBadRequest, fmt.Sprintf("hostname longer than %d bytes", MaxHostnameLength))
		}
		c.Hostname = s
	case ResRepetitions:
		n, err := intInRange(v, "repetitions", 1, math.MaxUint32)
		if err != nil {
			return err
		}
		c.Repetitions = uint32(n)
	case ResTimeoutMs:
		n, err := intInRange(v, "timeout_ms", 1, math.MaxUint32)
		if err != nil {
			return err
		}
		c.TimeoutMs = uint32(n)
	case ResBlockSize:
		n, err := intInRange(v, "block_size", 1, math.MaxUint16)
		if err != nil {
			return err
		}
		c.BlockSize = uint16(n)
	case ResDSCP:
		n, err := intInRange(v, "dscp", 0, 63)
		if err != nil {
			return err
		}
		c.DSCP = uint8(n)
	default:
		return dm.NewError(dm.CodeMethodNotAllowed, fmt.Sprintf("resource %d is not writable", rid))
	}
	return nil
}

func intInRange(v dm.Value, name string, lo, hi int64) (int64, error) {
	n, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, dm.NewError(dm.CodeBadRequest, fmt.Sprintf("%s out of range [%d, %d]: %d", name, lo, hi, n))
	}
	return n, nil
}
