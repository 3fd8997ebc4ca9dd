package types

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// WireVersion generalizes the teacher's integer RPCHeader.ProtocolVersion
// / checkRPCHeader pair into a semantic version comparison performed
// during the handshake that precedes accepting remote control signals
// from another node.
type WireVersion struct {
	raw *version.Version
}

// NewWireVersion parses a semantic version string such as "1.2.0".
func NewWireVersion(s string) (WireVersion, error) {
	v, err := version.NewVersion(s)
	if err != nil {
		return WireVersion{}, fmt.Errorf("parsing wire version %q: %w", s, err)
	}
	return WireVersion{raw: v}, nil
}

// Compatible reports whether a remote node's advertised version can be
// accepted by this node: the major versions must be equal; minor and
// patch segments are not compared.
func (w WireVersion) Compatible(remote WireVersion) bool {
	if w.raw == nil || remote.raw == nil {
		return false
	}
	wSeg := w.raw.Segments()
	rSeg := remote.raw.Segments()
	if len(wSeg) == 0 || len(rSeg) == 0 {
		return false
	}
	return wSeg[0] == rSeg[0]
}

func (w WireVersion) String() string {
	if w.raw == nil {
		return "<unset>"
	}
	return w.raw.String()
}

// CheckWireVersion mirrors the teacher's checkRPCHeader: returns
// ErrUnsupportedProtocol when the remote's advertised version is not
// compatible with this node's.
func CheckWireVersion(local, remote WireVersion) error {
	if !local.Compatible(remote) {
		return fmt.Errorf("%w: local %s, remote %s", ErrUnsupportedProtocol, local, remote)
	}
	return nil
}

// RemoteSignalFrame is the envelope every control signal crosses a node
// boundary wrapped in: the sender's wire version alongside the signal's
// own encoded envelope. The receiving controller decodes the frame first
// and runs CheckWireVersion before it ever looks at Signal, so an
// incompatible peer's control signals are rejected instead of dispatched.
type RemoteSignalFrame struct {
	Version string
	Signal  Envelope
}
