package ingestion_engine

import (
	"bufio"
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// streamFragments turns stored document content into a stream of small text fragments.
//
// content:     normalized text saved with the document.
// maxFragLen:  soft cap; long lines are split into multiple fragments.
// out:         receive-only channel of fragments; closed when the content is exhausted.
func (i *DocumentIngestor) streamFragments(
	ctx context.Context,
	g *errgroup.Group,
	content string,
	maxFragLen int,
) <-chan string {
	out := make(chan string, 8)

	g.Go(func() error {
		defer close(out)

		sc := bufio.NewScanner(strings.NewReader(content))

		// Minified sources can carry very long lines.
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 4<<20)

		emit := func(frag string) error {
			select {
			case out <- frag:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), " \t\r")
			if strings.TrimSpace(line) == "" {
				continue
			}

			for maxFragLen > 0 && len(line) > maxFragLen {
				cut := safeCut(line, maxFragLen)
				if err := emit(line[:cut]); err != nil {
					return err
				}
				line = line[cut:]
			}
			if err := emit(line); err != nil {
				return err
			}
		}
		return sc.Err()
	})

	return out
}

// safeCut moves n back to a rune boundary.
func safeCut(s string, n int) int {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	if n == 0 {
		return len(s)
	}
	return n
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
