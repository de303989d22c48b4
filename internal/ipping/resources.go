package ipping

import "github.com/smazurov/pingnode/internal/dm"

// ObjectID is the registered id of the IP Ping object.
const ObjectID dm.ObjectID = 12359

// InstanceID is the only instance of the object.
const InstanceID dm.InstanceID = 0

// Resource ids. These are part of the wire contract.
const (
	ResHostname dm.ResourceID = iota
	ResRepetitions
	ResTimeoutMs
	ResBlockSize
	ResDSCP
	ResRun
	ResState
	ResSuccessCount
	ResErrorCount
	ResAvgRttMs
	ResMinRttMs
	ResMaxRttMs
	ResRttStdevUs
)

var resourceTable = []dm.ResourceDef{
	{ID: ResHostname, Name: "hostname", Kind: dm.KindString, Ops: dm.OpRead | dm.OpWrite},
	{ID: ResRepetitions, Name: "repetitions", Kind: dm.KindInt, Ops: dm.OpRead | dm.OpWrite},
	{ID: ResTimeoutMs, Name: "timeout_ms", Kind: dm.KindInt, Ops: dm.OpRead | dm.OpWrite},
	{ID: ResBlockSize, Name: "block_size", Kind: dm.KindInt, Ops: dm.OpRead | dm.OpWrite},
	{ID: ResDSCP, Name: "dscp", Kind: dm.KindInt, Ops: dm.OpRead | dm.OpWrite},
	{ID: ResRun, Name: "run", Kind: dm.KindNone, Ops: dm.OpExecute},
	{ID: ResState, Name: "state", Kind: dm.KindInt, Ops: dm.OpRead},
	{ID: ResSuccessCount, Name: "success_count", Kind: dm.KindInt, Ops: dm.OpRead},
	{ID: ResErrorCount, Name: "error_count", Kind: dm.KindInt, Ops: dm.OpRead},
	{ID: ResAvgRttMs, Name: "avg_rtt_ms", Kind: dm.KindInt, Ops: dm.OpRead},
	{ID: ResMinRttMs, Name: "min_rtt_ms", Kind: dm.KindInt, Ops: dm.OpRead},
	{ID: ResMaxRttMs, Name: "max_rtt_ms", Kind: dm.KindInt, Ops: dm.OpRead},
	{ID: ResRttStdevUs, Name: "rtt_stdev_us", Kind: dm.KindInt, Ops: dm.OpRead},
}

// Resources returns a copy of the static resource table.
func Resources() []dm.ResourceDef {
	out := make([]dm.ResourceDef, len(resourceTable))
	copy(out, resourceTable)
	return out
}

// ResourceByName returns the resource with the given name.
func ResourceByName(name string) (dm.ResourceDef, bool) {
	for _, def := range resourceTable {
		if def.Name == name {
			return def, true
		}
	}
	return dm.ResourceDef{}, false
}

// ResourceByID returns the resource with the given id.
func ResourceByID(rid dm.ResourceID) (dm.ResourceDef, bool) {
	return lookupResource(rid)
}

func lookupResource(rid dm.ResourceID) (dm.ResourceDef, bool) {
	if int(rid) >= len(resourceTable) {
		return dm.ResourceDef{}, false
	}
	return resourceTable[rid], true
}
