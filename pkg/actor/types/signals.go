package types

// The control signals the node controller serializes through its single
// inbox (spec's C5). Each is its own exported, gob-friendly type so it
// can travel inside an Envelope when a signal originates on a remote
// node -- the controller decodes an incoming envelope addressed to its
// own node by trying each of these in turn against the envelope's
// fingerprint (see core.Controller.decodeRemoteSignal).

// MonitorSignal installs a monitor: watcher observes target's death,
// correlated by ref.
type MonitorSignal struct {
	Ref     MonitorRef
	Watcher ProcessId
	Target  Identifier
}

// UnmonitorSignal removes a monitor and always acknowledges to replyTo,
// even if ref was never installed.
type UnmonitorSignal struct {
	Ref     MonitorRef
	ReplyTo ProcessId
}

// LinkSignal installs a symmetric link between A and B.
type LinkSignal struct {
	A, B Identifier
}

// UnlinkSignal removes a symmetric link and, whenever ReplyTo is set,
// acknowledges to it keyed on Target (the identifier variant that was
// unlinked), even if no such link existed. A zero ReplyTo (the mirrored
// dispatch to the partner's node) gets no acknowledgement.
type UnlinkSignal struct {
	From, Target Identifier
	ReplyTo      ProcessId
}

// RegisterSignal installs or removes (when Remove is true) a registry
// entry. Installing over an existing label replaces it.
type RegisterSignal struct {
	Label  string
	Pid    ProcessId
	Remove bool
}

// WhereIsSignal asks the controller to reply to ReplyTo with a
// WhereIsReply for Label.
type WhereIsSignal struct {
	Label   string
	ReplyTo ProcessId
}

// NamedSendSignal asks the controller to look up Label locally and, if
// present, deliver Envelope to that process's mailbox. Unknown labels
// are silently dropped.
type NamedSendSignal struct {
	Label    string
	Envelope Envelope
}

// SpawnSignal asks the controller to resolve Closure, start a process,
// and reply to ReplyTo with a SpawnReply correlated by Ref.
type SpawnSignal struct {
	Closure Closure
	Ref     SpawnRef
	ReplyTo ProcessId
}

// DeathSignal is raised internally (never over the wire from a peer
// node's user code, though a node-down detection synthesizes one) when
// an entity dies, driving the supervision graph and registry walk.
type DeathSignal struct {
	Entity Identifier
	Reason Reason
}
