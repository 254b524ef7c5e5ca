package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"crashdump/hexdump"
)

// ParseStackDump finds the stack dump section of a rendered report and
// returns its start address and words
func ParseStackDump(r io.Reader) (uint64, []uint32, error) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if strings.TrimRight(line, "\r\n") == StackDumpHeader {
			return hexdump.ParseWords(reader)
		}
		if err == io.EOF {
			return 0, nil, fmt.Errorf("no %q section", StackDumpHeader)
		}
		if err != nil {
			return 0, nil, err
		}
	}
}
