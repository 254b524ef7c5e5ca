//go:build linux

package process_manage_linux

import (
	"os"
	"testing"

	"crashdump/process"
)

func TestParseStat(t *testing.T) {
	stat := "1234 (my (odd) game) T 1 1234 1234 0 -1 4194560 100 0 0 0 5 3 0 0 20 0 7 0 12345 1000000 200 18446744073709551615\n"

	proc, err := ParseStat(stat)
	if err != nil {
		t.Fatalf("ParseStat: %v", err)
	}
	if proc.PID != 1234 || proc.Name != "my (odd) game" || proc.State != "T" || proc.PPID != 1 || proc.Threads != 7 {
		t.Errorf("ParseStat = %+v", proc)
	}
	if !proc.Stopped() {
		t.Errorf("Stopped() = false for state T")
	}
}

func TestParseStatMalformed(t *testing.T) {
	for _, stat := range []string{"", "1234 game S 1", "x (game) S 1 2 3"} {
		if _, err := ParseStat(stat); err == nil {
			t.Errorf("ParseStat(%q) succeeded", stat)
		}
	}
}

func TestGetProcessSelf(t *testing.T) {
	pm := NewProcessManager()
	proc, err := pm.GetProcess(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("GetProcess: %v", err)
	}
	if proc.Stopped() {
		t.Errorf("running test process reported stopped: %+v", proc)
	}
	if !pm.ProcessExists(process.ProcessID(os.Getpid())) {
		t.Errorf("ProcessExists(self) = false")
	}
}
