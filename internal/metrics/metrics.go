package metrics

import "sync/atomic"

var (
	cyclesStarted          int64
	callsPlaced            int64
	placementsRejected     int64
	polls                  int64
	pollWarnings           int64
	pending                int64
	classified             int64
	classificationFailures int64
	recordsPersisted       int64
)

func IncCyclesStarted()          { atomic.AddInt64(&cyclesStarted, 1) }
func IncCallsPlaced()            { atomic.AddInt64(&callsPlaced, 1) }
func IncPlacementsRejected()     { atomic.AddInt64(&placementsRejected, 1) }
func IncPolls()                  { atomic.AddInt64(&polls, 1) }
func IncPollWarnings()           { atomic.AddInt64(&pollWarnings, 1) }
func IncPending()                { atomic.AddInt64(&pending, 1) }
func IncClassified()             { atomic.AddInt64(&classified, 1) }
func IncClassificationFailures() { atomic.AddInt64(&classificationFailures, 1) }
func IncRecordsPersisted()       { atomic.AddInt64(&recordsPersisted, 1) }

func Snapshot() map[string]int64 {
	return map[string]int64{
		"cycles_started":          atomic.LoadInt64(&cyclesStarted),
		"calls_placed":            atomic.LoadInt64(&callsPlaced),
		"placements_rejected":     atomic.LoadInt64(&placementsRejected),
		"polls":                   atomic.LoadInt64(&polls),
		"poll_warnings":           atomic.LoadInt64(&pollWarnings),
		"pending":                 atomic.LoadInt64(&pending),
		"classified":              atomic.LoadInt64(&classified),
		"classification_failures": atomic.LoadInt64(&classificationFailures),
		"records_persisted":       atomic.LoadInt64(&recordsPersisted),
	}
}
