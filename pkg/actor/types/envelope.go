package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"reflect"
)

// Fingerprint is a hash of a type's identity (its kind, package path and
// name). It is equality over types for routing purposes: two
// envelopes with equal fingerprints are assumed to carry the same Go
// type, and payloads are decoded only once that check passes.
type Fingerprint string

// FingerprintOf derives the Fingerprint for a Go type, deterministic and
// stable across processes built from the same type definition. It hashes
// the type's full name together with its Kind so renamed-but-identical
// struct literals do not collide with each other by accident; an unnamed
// type (such as []int) is hashed by its full type string instead.
func FingerprintOf(v interface{}) Fingerprint {
	t := reflect.TypeOf(v)
	return fingerprintOfType(t)
}

func fingerprintOfType(t reflect.Type) Fingerprint {
	var name string
	if t == nil {
		name = "<nil>"
	} else if t.Name() == "" {
		name = fmt.Sprintf("%s/%s", t.Kind(), t.String())
	} else {
		name = fmt.Sprintf("%s/%s.%s", t.Kind(), t.PkgPath(), t.Name())
	}
	sum := sha256.Sum256([]byte(name))
	return Fingerprint(fmt.Sprintf("%x", sum))
}

// Envelope is the wire-level message: an opaque payload encoding plus the
// fingerprint of the type it was built from. The fingerprint is the only
// thing a receiver inspects before attempting to decode -- there is no
// deeper runtime type introspection.
type Envelope struct {
	Fingerprint Fingerprint
	Encoding    []byte
}

// CreateMessage captures v's type fingerprint and encodes its value,
// producing an Envelope ready for mailbox insertion or transport.
func CreateMessage(v interface{}) (Envelope, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return Envelope{}, fmt.Errorf("encoding envelope payload: %w", err)
	}
	return Envelope{
		Fingerprint: FingerprintOf(v),
		Encoding:    buf.Bytes(),
	}, nil
}

// Decode produces a typed value from an Envelope, defined only when the
// envelope's fingerprint matches the fingerprint of expected. Callers
// pass a pointer to the destination, mirroring gob/json decode idiom.
func Decode(envelope Envelope, expected interface{}, out interface{}) error {
	want := FingerprintOf(expected)
	if envelope.Fingerprint != want {
		return fmt.Errorf("%w: envelope carries %s, expected %s", ErrClosureTypeMismatch, envelope.Fingerprint, want)
	}
	dec := gob.NewDecoder(bytes.NewReader(envelope.Encoding))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding envelope payload: %w", err)
	}
	return nil
}

// Matches reports whether the envelope's fingerprint is the fingerprint
// of the given zero value, without attempting to decode it.
func (e Envelope) Matches(zero interface{}) bool {
	return e.Fingerprint == FingerprintOf(zero)
}
