package bitcoin

import "testing"

func TestClassifyLockTimelock(t *testing.T) {
	const t1 = uint32(144)

	if got := ClassifyLockTimelock(1000, 1143, t1); got != StageNone {
		t.Fatalf("expected StageNone one block before maturity, got %v", got)
	}

	if got := ClassifyLockTimelock(1000, 1144, t1); got != StageCancel {
		t.Fatalf("expected StageCancel at maturity, got %v", got)
	}
}

func TestClassifyCancelTimelock(t *testing.T) {
	const t2 = uint32(432)

	if got := ClassifyCancelTimelock(2000, 2431, t2); got != StageCancel {
		t.Fatalf("expected StageCancel one block before maturity, got %v", got)
	}

	if got := ClassifyCancelTimelock(2000, 2432, t2); got != StagePunish {
		t.Fatalf("expected StagePunish at maturity, got %v", got)
	}
}
