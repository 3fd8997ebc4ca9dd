package types

import "testing"

type envelopeFixtureA struct {
	Value int
}

type envelopeFixtureB struct {
	Value int
}

func Test_CreateMessage_RoundTrips(t *testing.T) {
	envelope, err := CreateMessage(envelopeFixtureA{Value: 42})
	if err != nil {
		t.Fatalf("failed creating message: %v", err)
	}

	var out envelopeFixtureA
	if err := Decode(envelope, envelopeFixtureA{}, &out); err != nil {
		t.Fatalf("failed decoding message: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("expected decoded value 42, got %d", out.Value)
	}
}

func Test_CreateMessage_FingerprintDistinguishesIdenticalShapes(t *testing.T) {
	envelope, err := CreateMessage(envelopeFixtureA{Value: 1})
	if err != nil {
		t.Fatalf("failed creating message: %v", err)
	}

	if envelope.Matches(envelopeFixtureB{}) {
		t.Error("expected distinct named types with identical fields to carry distinct fingerprints")
	}
	if !envelope.Matches(envelopeFixtureA{}) {
		t.Error("expected envelope to match its own originating type")
	}
}

func Test_Decode_RejectsFingerprintMismatch(t *testing.T) {
	envelope, err := CreateMessage(envelopeFixtureA{Value: 1})
	if err != nil {
		t.Fatalf("failed creating message: %v", err)
	}

	var out envelopeFixtureB
	if err := Decode(envelope, envelopeFixtureB{}, &out); err == nil {
		t.Error("expected decode to fail against a mismatched expected type")
	}
}

func Test_FingerprintOf_StableAcrossCalls(t *testing.T) {
	a := FingerprintOf(envelopeFixtureA{Value: 1})
	b := FingerprintOf(envelopeFixtureA{Value: 999})
	if a != b {
		t.Error("expected fingerprint to depend only on type, not value")
	}
}
