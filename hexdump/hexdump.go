package hexdump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WordDumpOptions defines options for customizing a word dump
type WordDumpOptions struct {
	// WordsPerLine defines the number of 32-bit words to display per line
	WordsPerLine int

	// StartAddress is the address of the first word
	StartAddress uint64

	// AddressWidth is the minimum width of the address label in hex digits
	AddressWidth int

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int
}

// DefaultOptions returns the default word dump options
func DefaultOptions() WordDumpOptions {
	return WordDumpOptions{
		WordsPerLine: 8,
		StartAddress: 0,
		AddressWidth: 8,
		MaxLines:     0,
	}
}

// DumpWords creates a word dump of the given words with specified options
func DumpWords(words []uint32, options WordDumpOptions) string {
	var buffer bytes.Buffer
	DumpWordsToWriter(&buffer, words, options)
	return buffer.String()
}

// DumpWordsToWriter writes lines of the form "ADDRESS: WORD WORD ...", every
// value in zero-padded uppercase hex. The address advances by four per word.
func DumpWordsToWriter(writer io.Writer, words []uint32, options WordDumpOptions) {
	if options.WordsPerLine <= 0 {
		options.WordsPerLine = 8
	}
	if options.AddressWidth <= 0 {
		options.AddressWidth = 8
	}

	addrFormat := "%0" + strconv.Itoa(options.AddressWidth) + "X: "
	lineCount := 0
	for i := 0; i < len(words); i += options.WordsPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more words\n", len(words)-i)
			break
		}

		end := i + options.WordsPerLine
		if end > len(words) {
			end = len(words)
		}

		fmt.Fprintf(writer, addrFormat, options.StartAddress+uint64(i)*4)
		for j, word := range words[i:end] {
			if j > 0 {
				fmt.Fprint(writer, " ")
			}
			fmt.Fprintf(writer, "%08X", word)
		}
		fmt.Fprint(writer, "\n")

		lineCount++
	}
}

// ParseWords reads lines produced by DumpWordsToWriter back into the start
// address and the word values. It stops at the first empty line.
func ParseWords(reader io.Reader) (uint64, []uint32, error) {
	var start uint64
	var words []uint32

	scanner := bufio.NewScanner(reader)
	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			break
		}
		line++

		label, rest, found := strings.Cut(text, ":")
		if !found {
			return 0, nil, fmt.Errorf("line %d: missing address label", line)
		}

		addr, err := strconv.ParseUint(label, 16, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("line %d: bad address %q: %w", line, label, err)
		}

		if line == 1 {
			start = addr
		} else if expected := start + uint64(len(words))*4; addr != expected {
			return 0, nil, fmt.Errorf("line %d: address %X, expected %X", line, addr, expected)
		}

		for _, field := range strings.Fields(rest) {
			if len(field) != 8 {
				return 0, nil, fmt.Errorf("line %d: word %q is not 8 hex digits", line, field)
			}
			value, err := strconv.ParseUint(field, 16, 32)
			if err != nil {
				return 0, nil, fmt.Errorf("line %d: bad word %q: %w", line, field, err)
			}
			words = append(words, uint32(value))
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}

	return start, words, nil
}
