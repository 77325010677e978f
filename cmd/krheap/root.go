// Copyright 2024 The Krheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rchang/krheap/heap"
	"github.com/rchang/krheap/region"
)

// session holds the single process-wide Heap the REPL drives, plus a
// small id->allocation registry so REPL commands can refer back to
// prior allocations without exposing raw addresses to the user.
type session struct {
	h     *heap.Heap
	r     *region.Region
	slots map[int][]byte
	next  int
}

func newRootCmd() *cobra.Command {
	var arenaBytes int
	var logLevel string

	cmd := &cobra.Command{
		Use:   "krheap",
		Short: "Interactive REPL over a krheap allocator instance",
		Long: "krheap starts a read-eval-print loop over one heap.Heap, for\n" +
			"exercising malloc/free/calloc/realloc/stat/viz without writing Go.",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

			r, err := region.New(arenaBytes)
			if err != nil {
				return fmt.Errorf("reserving arena: %w", err)
			}
			defer r.Close()

			s := &session{
				h:     heap.New(r, heap.WithLogger(log)),
				r:     r,
				slots: map[int][]byte{},
			}
			return s.repl(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&arenaBytes, "arena", 64<<20, "arena reservation size in bytes")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, error, or disabled")

	return cmd
}

func (s *session) repl(in io.Reader, out io.Writer) error {
	w := func(format string, a ...interface{}) { fmt.Fprintf(out, format, a...) }
	scanner := bufio.NewScanner(bufio.NewReader(in))

	w("krheap> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if err := s.dispatch(line, w); err != nil {
				w("error: %v\n", err)
			}
		}
		w("krheap> ")
	}
	w("\n")
	return scanner.Err()
}

func (s *session) dispatch(line string, w func(string, ...interface{})) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "malloc":
		n, err := parseInt(args, 0)
		if err != nil {
			return err
		}
		b, err := s.h.Malloc(n)
		if err != nil {
			return err
		}
		id := s.store(b)
		w("#%d usable bytes=%d\n", id, len(b))
		return nil

	case "calloc":
		count, err := parseInt(args, 0)
		if err != nil {
			return err
		}
		size, err := parseInt(args, 1)
		if err != nil {
			return err
		}
		b, err := s.h.Calloc(count, size)
		if err != nil {
			return err
		}
		id := s.store(b)
		w("#%d usable bytes=%d\n", id, len(b))
		return nil

	case "free":
		id, err := parseInt(args, 0)
		if err != nil {
			return err
		}
		b, ok := s.slots[id]
		if !ok {
			return fmt.Errorf("no such allocation #%d", id)
		}
		if err := s.h.Free(b); err != nil {
			return err
		}
		delete(s.slots, id)
		w("freed #%d\n", id)
		return nil

	case "realloc":
		id, err := parseInt(args, 0)
		if err != nil {
			return err
		}
		n, err := parseInt(args, 1)
		if err != nil {
			return err
		}
		b, ok := s.slots[id]
		if !ok {
			return fmt.Errorf("no such allocation #%d", id)
		}
		newB, err := s.h.Realloc(b, n)
		if err != nil {
			return err
		}
		s.slots[id] = newB
		w("#%d usable bytes=%d\n", id, len(newB))
		return nil

	case "stat":
		w("free bytes: %d\n", s.h.GetFree())
		return nil

	case "viz":
		for _, b := range s.h.Snapshot() {
			w("  offset=%d units=%d bytes=%d\n", b.Offset, b.Units, b.Bytes)
		}
		return nil

	case "quit", "exit":
		os.Exit(0)
		return nil

	default:
		return fmt.Errorf("unknown command %q (malloc/calloc/free/realloc/stat/viz/quit)", cmd)
	}
}

func (s *session) store(b []byte) int {
	id := s.next
	s.next++
	s.slots[id] = b
	return id
}

func parseInt(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	return strconv.Atoi(args[i])
}
