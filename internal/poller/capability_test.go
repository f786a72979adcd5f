package poller

import (
	"errors"
	"fmt"
	"testing"

	"github.com/soniclink/soniclink-core/internal/linkplay"
)

func TestProbeStartsUnknown(t *testing.T) {
	p := NewProbe()

	if got := p.State(FeatureMetadata); got != CapabilityUnknown {
		t.Errorf("State = %v, want unknown", got)
	}
	if !p.ShouldAttempt(FeatureMetadata) {
		t.Error("unknown feature must be attempted")
	}
}

func TestProbeSuccessPromotes(t *testing.T) {
	p := NewProbe()
	p.Observe(FeatureMetadata, nil)

	if got := p.State(FeatureMetadata); got != CapabilitySupported {
		t.Errorf("State = %v, want supported", got)
	}
}

func TestProbeUnsupportedIsPermanent(t *testing.T) {
	p := NewProbe()
	p.Observe(FeaturePresets, fmt.Errorf("%w: getPresetInfo", linkplay.ErrUnsupported))

	if p.ShouldAttempt(FeaturePresets) {
		t.Error("unsupported feature must not be attempted again")
	}

	// A later success observation cannot arrive for a skipped endpoint,
	// but even a transient error must not disturb the verdict.
	p.Observe(FeaturePresets, fmt.Errorf("%w: timeout", linkplay.ErrTransient))
	if got := p.State(FeaturePresets); got != CapabilityUnsupported {
		t.Errorf("State = %v, want unsupported to stick", got)
	}
}

func TestProbeSupportedNeverDowngrades(t *testing.T) {
	p := NewProbe()
	p.Observe(FeatureEqualizer, nil)

	p.Observe(FeatureEqualizer, fmt.Errorf("%w: EQGetStat", linkplay.ErrUnsupported))
	if got := p.State(FeatureEqualizer); got != CapabilitySupported {
		t.Errorf("State = %v, supported must survive a stray refusal", got)
	}

	p.Observe(FeatureEqualizer, fmt.Errorf("%w: timeout", linkplay.ErrTransient))
	if got := p.State(FeatureEqualizer); got != CapabilitySupported {
		t.Errorf("State = %v, supported must survive transient failure", got)
	}
}

func TestProbeAnyFailureWhileUnknownSettles(t *testing.T) {
	p := NewProbe()
	p.Observe(FeatureExtended, errors.New("plain failure"))

	if got := p.State(FeatureExtended); got != CapabilityUnsupported {
		t.Errorf("State = %v, want unsupported after failed first probe", got)
	}
	if p.ShouldAttempt(FeatureExtended) {
		t.Error("feature must not be attempted after a failed first probe")
	}

	p.Observe(FeatureSlaveList, fmt.Errorf("%w: timeout", linkplay.ErrTransient))
	if got := p.State(FeatureSlaveList); got != CapabilityUnsupported {
		t.Errorf("State = %v, transient first failure must settle unsupported", got)
	}
}

func TestProbeSnapshotCoversAllFeatures(t *testing.T) {
	p := NewProbe()
	p.Observe(FeatureMetadata, nil)

	snap := p.Snapshot()
	if len(snap) != len(allFeatures) {
		t.Fatalf("Snapshot has %d entries, want %d", len(snap), len(allFeatures))
	}
	if snap[FeatureMetadata] != CapabilitySupported {
		t.Errorf("metadata = %v, want supported", snap[FeatureMetadata])
	}
	if snap[FeaturePresets] != CapabilityUnknown {
		t.Errorf("presets = %v, want unknown", snap[FeaturePresets])
	}
}
