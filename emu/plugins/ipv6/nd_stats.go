package ipv6

import (
	"ndsim/emu/core"
)

type NdStats struct {
	txNsMulticast        uint64
	txNsUnicast          uint64
	txNsDad              uint64
	txNa                 uint64
	txRs                 uint64
	txRa                 uint64
	txRaSolicited        uint64
	txRaFinal            uint64
	txRedirect           uint64
	txErrLinkDown        uint64
	txErrNoSource        uint64
	rxRs                 uint64
	rxRa                 uint64
	rxNs                 uint64
	rxNa                 uint64
	rxRedirect           uint64
	rxErrMalformed       uint64
	rxErrHopLimit        uint64
	rxErrCode            uint64
	rxErrInvalid         uint64
	rxErrIfInactive      uint64
	rxRsNotRouter        uint64
	rxNsNotForUs         uint64
	rxNaNoEntry          uint64
	rxNaNoTlla           uint64
	rxNaOwnAddress       uint64
	rxRedirectIgnored    uint64
	rxRaInconsistent     uint64
	neighAdd             uint64
	neighRemove          uint64
	neighActive          uint64
	moveReachable        uint64
	moveStale            uint64
	moveDelay            uint64
	moveProbe            uint64
	arResolved           uint64
	arFailed             uint64
	nudConfirmed         uint64
	nudUnreachable       uint64
	queueAdd             uint64
	queueDropOverflow    uint64
	queueSent            uint64
	queueDropFlush       uint64
	queueRequeue         uint64
	dadStart             uint64
	dadSucceeded         uint64
	dadDuplicate         uint64
	rdStart              uint64
	rdDone               uint64
	rdExhausted          uint64
	raSolicitedDeferred  uint64
	raSolicitedCoalesced uint64
	drAdd                uint64
	drRemove             uint64
	drExpire             uint64
	prefixAdd            uint64
	prefixRemove         uint64
	prefixExpire         uint64
	autoconfAdd          uint64
	autoconfExpire       uint64
	destCacheHit         uint64
	destCacheMiss        uint64
	nextHopIndeterminate uint64
	redirectAccepted     uint64
	timerStale           uint64
}

func NewNdStatsDb(o *NdStats) *core.CCounterDb {
	db := core.NewCCounterDb("nd")
	db.Add(&core.CCounterRec{
		Counter:  &o.txNsMulticast,
		Name:     "txNsMulticast",
		Help:     "tx multicast neighbour solicitation (address resolution)",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txNsUnicast,
		Name:     "txNsUnicast",
		Help:     "tx unicast neighbour solicitation (NUD)",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txNsDad,
		Name:     "txNsDad",
		Help:     "tx DAD neighbour solicitation",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txNa,
		Name:     "txNa",
		Help:     "tx neighbour advertisement",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txRs,
		Name:     "txRs",
		Help:     "tx router solicitation",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txRa,
		Name:     "txRa",
		Help:     "tx periodic router advertisement",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txRaSolicited,
		Name:     "txRaSolicited",
		Help:     "tx solicited router advertisement",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txRaFinal,
		Name:     "txRaFinal",
		Help:     "tx final router advertisement",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txRedirect,
		Name:     "txRedirect",
		Help:     "tx redirect",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txErrLinkDown,
		Name:     "txErrLinkDown",
		Help:     "tx failed, link is down",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.txErrNoSource,
		Name:     "txErrNoSource",
		Help:     "tx skipped, no usable source address",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxRs,
		Name:     "rxRs",
		Help:     "rx router solicitation",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxRa,
		Name:     "rxRa",
		Help:     "rx router advertisement",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxNs,
		Name:     "rxNs",
		Help:     "rx neighbour solicitation",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxNa,
		Name:     "rxNa",
		Help:     "rx neighbour advertisement",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxRedirect,
		Name:     "rxRedirect",
		Help:     "rx redirect",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxErrMalformed,
		Name:     "rxErrMalformed",
		Help:     "rx malformed nd message",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxErrHopLimit,
		Name:     "rxErrHopLimit",
		Help:     "rx hop limit is not 255",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxErrCode,
		Name:     "rxErrCode",
		Help:     "rx code is not zero",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxErrInvalid,
		Name:     "rxErrInvalid",
		Help:     "rx failed validation",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxErrIfInactive,
		Name:     "rxErrIfInactive",
		Help:     "rx on an interface that is not started",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScWARNING})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxRsNotRouter,
		Name:     "rxRsNotRouter",
		Help:     "rx router solicitation, not an advertising interface",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxNsNotForUs,
		Name:     "rxNsNotForUs",
		Help:     "rx neighbour solicitation for another target",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxNaNoEntry,
		Name:     "rxNaNoEntry",
		Help:     "rx neighbour advertisement without a cache entry",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxNaNoTlla,
		Name:     "rxNaNoTlla",
		Help:     "rx neighbour advertisement for incomplete entry without tlla",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScWARNING})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxNaOwnAddress,
		Name:     "rxNaOwnAddress",
		Help:     "rx neighbour advertisement for our address",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScWARNING})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxRedirectIgnored,
		Name:     "rxRedirectIgnored",
		Help:     "rx redirect not from the first hop router",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScWARNING})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxRaInconsistent,
		Name:     "rxRaInconsistent",
		Help:     "rx router advertisement inconsistent with our prefixes",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScWARNING})
	db.Add(&core.CCounterRec{
		Counter:  &o.neighAdd,
		Name:     "neighAdd",
		Help:     "neighbour entries added",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.neighRemove,
		Name:     "neighRemove",
		Help:     "neighbour entries removed",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.neighActive,
		Name:     "neighActive",
		Help:     "neighbour entries in the cache",
		Unit:     "entries",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.moveReachable,
		Name:     "moveReachable",
		Help:     "move to REACHABLE",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.moveStale,
		Name:     "moveStale",
		Help:     "move to STALE",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.moveDelay,
		Name:     "moveDelay",
		Help:     "move to DELAY",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.moveProbe,
		Name:     "moveProbe",
		Help:     "move to PROBE",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.arResolved,
		Name:     "arResolved",
		Help:     "address resolution succeeded",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.arFailed,
		Name:     "arFailed",
		Help:     "address resolution failed",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.nudConfirmed,
		Name:     "nudConfirmed",
		Help:     "upper layer reachability confirmation",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.nudUnreachable,
		Name:     "nudUnreachable",
		Help:     "neighbour unreachable",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.queueAdd,
		Name:     "queueAdd",
		Help:     "packets queued for resolution",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.queueDropOverflow,
		Name:     "queueDropOverflow",
		Help:     "packets dropped, queue is full",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.queueSent,
		Name:     "queueSent",
		Help:     "queued packets sent after resolution",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.queueDropFlush,
		Name:     "queueDropFlush",
		Help:     "queued packets dropped with their entry",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.queueRequeue,
		Name:     "queueRequeue",
		Help:     "queued packets sent back to resolution",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.dadStart,
		Name:     "dadStart",
		Help:     "DAD started",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.dadSucceeded,
		Name:     "dadSucceeded",
		Help:     "DAD succeeded, address is permanent",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.dadDuplicate,
		Name:     "dadDuplicate",
		Help:     "DAD found a duplicate",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rdStart,
		Name:     "rdStart",
		Help:     "router discovery started",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rdDone,
		Name:     "rdDone",
		Help:     "router discovery stopped by an advertisement",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.rdExhausted,
		Name:     "rdExhausted",
		Help:     "router discovery without an answer",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScWARNING})
	db.Add(&core.CCounterRec{
		Counter:  &o.raSolicitedDeferred,
		Name:     "raSolicitedDeferred",
		Help:     "solicited advertisement delayed by the rate limit",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.raSolicitedCoalesced,
		Name:     "raSolicitedCoalesced",
		Help:     "solicitation merged into a pending advertisement",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.drAdd,
		Name:     "drAdd",
		Help:     "default router added",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.drRemove,
		Name:     "drRemove",
		Help:     "default router removed",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.drExpire,
		Name:     "drExpire",
		Help:     "default router lifetime expired",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.prefixAdd,
		Name:     "prefixAdd",
		Help:     "on-link prefix added",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.prefixRemove,
		Name:     "prefixRemove",
		Help:     "on-link prefix removed",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.prefixExpire,
		Name:     "prefixExpire",
		Help:     "on-link prefix lifetime expired",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.autoconfAdd,
		Name:     "autoconfAdd",
		Help:     "address autoconfigured",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.autoconfExpire,
		Name:     "autoconfExpire",
		Help:     "autoconfigured address expired",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.destCacheHit,
		Name:     "destCacheHit",
		Help:     "destination cache hit",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.destCacheMiss,
		Name:     "destCacheMiss",
		Help:     "destination cache miss",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.nextHopIndeterminate,
		Name:     "nextHopIndeterminate",
		Help:     "no next hop for an off-link destination",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.redirectAccepted,
		Name:     "redirectAccepted",
		Help:     "redirect accepted",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.timerStale,
		Name:     "timerStale",
		Help:     "timer of a destroyed record",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScERROR})
	return db
}
