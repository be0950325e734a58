// svndumpfilter3 rewrites a Subversion dump stream to include only a
// chosen slice of paths, dereferencing copies and internalizing externals
// that would otherwise dangle once the excluded paths are gone.
//
// Grounded on cutter/repocutter.go's main() (flag.FlagSet construction,
// Baton wiring, a single straight-line pass over stdin/stdout).
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gitlab.com/esr/svndumpfilter3/internal/baton"
	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
	"gitlab.com/esr/svndumpfilter3/internal/engine"
	"gitlab.com/esr/svndumpfilter3/internal/externals"
	"gitlab.com/esr/svndumpfilter3/internal/logging"
	"gitlab.com/esr/svndumpfilter3/internal/pathfilter"
	"gitlab.com/esr/svndumpfilter3/internal/svnrepo"
)

// stringList accumulates repeatable flag occurrences, the way
// cutter/repocutter.go's main() would if it had any repeatable flags of
// its own (it doesn't; this idiom is generalized from its single-valued
// flag.StringVar calls to flag.Var's multi-valued form).
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var includes, deleteProps, truncateRevs, dropActions, forceDeletes stringList
	var repo, externalsMapPath string
	var dropEmptyRevs, renumberRevs, quiet, dbg bool

	flag.Var(&includes, "include", "path-pattern to include (repeatable)")
	flag.StringVar(&repo, "repo", "", "local repository root")
	flag.StringVar(&externalsMapPath, "externals-map", "", "externals-map file; enables externals internalization")
	flag.Var(&deleteProps, "delete-property", "property name to strip from every record (repeatable)")
	flag.Var(&truncateRevs, "truncate-rev", "revision number to truncate, keeping only its header (repeatable)")
	flag.Var(&dropActions, "drop-action", "REV:PATH whose action is dropped regardless of filter (repeatable)")
	flag.Var(&forceDeletes, "force-delete", "REV:PATH to append a synthetic delete for (repeatable)")
	flag.BoolVar(&dropEmptyRevs, "drop-empty-revs", false, "omit revisions left empty by filtering")
	flag.BoolVar(&renumberRevs, "renumber-revs", false, "renumber emitted revisions to a contiguous sequence")
	flag.BoolVar(&quiet, "q", false, "disable progress messages")
	flag.BoolVar(&quiet, "quiet", false, "disable progress messages")
	flag.BoolVar(&dbg, "debug", false, "enable debug logging")
	flag.Parse()

	logging.Quiet = quiet
	logging.Debug = dbg

	filter, err := pathfilter.New(includes)
	if err != nil {
		logging.Croak("bad --include pattern: %v", err)
	}

	truncateSet, err := parseRevSet(truncateRevs)
	if err != nil {
		logging.Croak("bad --truncate-rev: %v", err)
	}

	dropActionMap, err := parseRevPathMap(dropActions)
	if err != nil {
		logging.Croak("bad --drop-action: %v", err)
	}

	forceDeleteMap, err := parseRevPathList(forceDeletes)
	if err != nil {
		logging.Croak("bad --force-delete: %v", err)
	}

	var externalsMap map[string]string
	if externalsMapPath != "" {
		f, err := os.Open(externalsMapPath)
		if err != nil {
			logging.Croak("opening externals map: %v", err)
		}
		externalsMap, err = externals.LoadMap(f)
		f.Close()
		if err != nil {
			logging.Croak("parsing externals map: %v", err)
		}
	}

	b := baton.New("filtering", "done", quiet)
	cfg := engine.Config{
		Filter:           filter,
		Repo:             repo,
		ExternalsMap:     externalsMap,
		DeleteProperties: deleteProps,
		TruncateRevs:     truncateSet,
		DropActions:      dropActionMap,
		ForceDeletes:     forceDeleteMap,
		DropEmptyRevs:    dropEmptyRevs,
		RenumberRevs:     renumberRevs,
		Tick:             func() { b.Twirl("") },
	}

	e := engine.New(cfg, svnrepo.NewExecAdapter())
	r := dumprecord.NewReader(os.Stdin)
	w := dumprecord.NewWriter(os.Stdout)
	if err := e.Run(r, w); err != nil {
		b.End("failed")
		logging.Croak("%v", err)
	}
	b.End("")
}

func parseRevSet(items []string) (map[int]bool, error) {
	out := map[int]bool{}
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("%q is not a revision number", item)
		}
		out[n] = true
	}
	return out, nil
}

func splitRevPath(item string) (int, string, error) {
	idx := strings.Index(item, ":")
	if idx < 0 {
		return 0, "", fmt.Errorf("%q is not of the form REV:PATH", item)
	}
	n, err := strconv.Atoi(item[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("%q is not of the form REV:PATH", item)
	}
	return n, item[idx+1:], nil
}

func parseRevPathMap(items []string) (map[int]map[string]bool, error) {
	out := map[int]map[string]bool{}
	for _, item := range items {
		rev, path, err := splitRevPath(item)
		if err != nil {
			return nil, err
		}
		if out[rev] == nil {
			out[rev] = map[string]bool{}
		}
		out[rev][path] = true
	}
	return out, nil
}

func parseRevPathList(items []string) (map[int][]string, error) {
	out := map[int][]string{}
	for _, item := range items {
		rev, path, err := splitRevPath(item)
		if err != nil {
			return nil, err
		}
		out[rev] = append(out[rev], path)
	}
	return out, nil
}
