package testutil

import (
	"strings"
	"testing"
)

func TestDBName(t *testing.T) {
	short := DBName("TestStore_Create")
	if !strings.HasPrefix(short, "fm_test_TestStore_Create_") {
		t.Errorf("DBName() = %q", short)
	}

	sub := DBName("TestStore/with spaces/and.dots")
	if strings.ContainsAny(sub, "/ .") {
		t.Errorf("DBName() = %q, contains invalid characters", sub)
	}

	long := strings.Repeat("TestSomethingVeryLong", 10)
	a, b := DBName(long+"/a"), DBName(long+"/b")
	if len(a) > 63 || len(b) > 63 {
		t.Errorf("DBName() lengths = %d, %d, want <= 63", len(a), len(b))
	}
	if a == b {
		t.Error("long names differing only in their tail should map to different databases")
	}
}
