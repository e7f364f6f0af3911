package ingestion_engine

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// streamChunk groups incoming fragments into token-bounded chunks with optional overlap.
//
// frags:          upstream fragments channel.
// targetTokens:   approximate tokens per chunk.
// overlapTokens:  tokens to retain from the end of the previous chunk as seed of the next.
func (i *DocumentIngestor) streamChunk(
	ctx context.Context,
	g *errgroup.Group,
	frags <-chan string,
	targetTokens int,
	overlapTokens int,
) <-chan chunk {
	out := make(chan chunk, 8)

	g.Go(func() error {
		defer close(out)

		var (
			buf    []string
			tokSum int
			fresh  int // tokens added since the last flush
			pos    int
		)

		flush := func() error {
			if fresh == 0 {
				return nil
			}
			ch := chunk{Pos: pos, Text: strings.Join(buf, "\n"), TokenCnt: tokSum}
			pos++

			select {
			case out <- ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			i.log.Debug("chunk emitted", "pos", ch.Pos, "tokens", tokSum, "lines", len(buf))

			buf, tokSum = overlapTail(buf, overlapTokens)
			fresh = 0
			return nil
		}

		for frag := range frags {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			t := approxTokens(frag)
			buf = append(buf, frag)
			tokSum += t
			fresh += t

			if tokSum >= targetTokens {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		return flush()
	})

	return out
}

// overlapTail keeps the trailing fragments whose token sum reaches overlapTokens.
// The tail never covers the whole buffer, so every chunk adds new text.
func overlapTail(buf []string, overlapTokens int) ([]string, int) {
	if overlapTokens <= 0 || len(buf) < 2 {
		return nil, 0
	}
	start := len(buf)
	remain := overlapTokens
	for start > 1 && remain > 0 {
		start--
		remain -= approxTokens(buf[start])
	}
	keep := append([]string(nil), buf[start:]...)
	sum := 0
	for _, s := range keep {
		sum += approxTokens(s)
	}
	return keep, sum
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
