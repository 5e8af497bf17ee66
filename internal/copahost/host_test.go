package copahost

import (
	"errors"
	"testing"

	"github.com/ccp-copa/copa/internal/copa"
)

// stubDatapath lets a test control exactly how many times Install fails
// before succeeding, and records UpdateField calls.
type stubDatapath struct {
	installFailures int
	installCalls    int

	updateErr   error
	lastUpdates []copa.FieldUpdate
}

func (s *stubDatapath) Install(program string) (copa.Scope, error) {
	s.installCalls++
	if s.installCalls <= s.installFailures {
		return nil, errors.New("datapath not ready")
	}
	return struct{}{}, nil
}

func (s *stubDatapath) UpdateField(scope copa.Scope, updates []copa.FieldUpdate) error {
	s.lastUpdates = updates
	return s.updateErr
}

func TestInstallSucceedsImmediately(t *testing.T) {
	stub := &stubDatapath{}
	d := New(stub, nil)

	if _, err := d.Install("(def ...)"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if stub.installCalls != 1 {
		t.Errorf("installCalls = %d, want 1", stub.installCalls)
	}
}

func TestInstallRetriesOnFailure(t *testing.T) {
	stub := &stubDatapath{installFailures: 2}
	d := New(stub, nil)

	if _, err := d.Install("(def ...)"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if stub.installCalls != 3 {
		t.Errorf("installCalls = %d, want 3", stub.installCalls)
	}
}

func TestUpdateFieldForwardsBatchAndError(t *testing.T) {
	wantErr := errors.New("field update failed")
	stub := &stubDatapath{updateErr: wantErr}
	d := New(stub, nil)

	updates := []copa.FieldUpdate{{Name: copa.FieldCwnd, Value: 14480}}
	err := d.UpdateField(nil, updates)
	if !errors.Is(err, wantErr) {
		t.Errorf("UpdateField() error = %v, want %v", err, wantErr)
	}
	if len(stub.lastUpdates) != 1 || stub.lastUpdates[0] != updates[0] {
		t.Errorf("UpdateField did not forward the batch intact: %+v", stub.lastUpdates)
	}
}
