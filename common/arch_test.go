package common_test

import (
	"testing"

	"github.com/crashkit/symbolic/common"
	"github.com/crashkit/symbolic/testkit"
)

func TestArchRoundTrip(t *testing.T) {
	for a := common.ArchUnknown; a <= common.ArchWasm32; a++ {
		name := a.Name()
		testkit.Equate(t, common.FromName(name), a)
		testkit.Equate(t, common.FromU32(a.U32()), a)
	}
}

func TestArchUnknownFallback(t *testing.T) {
	testkit.Equate(t, common.FromName("not-a-real-arch"), common.ArchUnknown)
	testkit.Equate(t, common.FromU32(0xffffffff), common.ArchUnknown)
}

func TestCpuFamilyProperties(t *testing.T) {
	testkit.Equate(t, common.FamilyX86_64.PointerSize(), 8)
	testkit.Equate(t, common.FamilyArm.PointerSize(), 4)
	testkit.Equate(t, common.FamilyX86.InstructionAlignment(), 0)
	testkit.Equate(t, common.FamilyArm.InstructionAlignment(), 4)
	testkit.Equate(t, common.FamilyX86_64.IPRegisterName(), "$rip")

	if name, ok := common.FamilyX86_64.CfiRegisterName(7); !ok || name != "$rsp" {
		t.Fatalf("expected $rsp for dwarf reg 7, got %q %v", name, ok)
	}
	if _, ok := common.FamilyX86_64.CfiRegisterName(999); ok {
		t.Fatal("expected unknown register to report ok=false")
	}
}
