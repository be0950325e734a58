package svnrepo

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
)

// execAdapter drives the real svn/svnlook binaries via os/exec, grounded
// on cutter/repocutter.go's captureFromProcess (full CombinedOutput
// draining, croak on unexpected failure).
type execAdapter struct{}

// NewExecAdapter returns an Adapter backed by the svn and svnlook
// command-line tools. repo arguments are local filesystem repository
// roots, matching the original_source/svndumpmultitool tools' usage.
func NewExecAdapter() Adapter {
	return &execAdapter{}
}

func (a *execAdapter) run(args ...string) ([]byte, error) {
	cmd := exec.Command(args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (stderr: %s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// runAllowFailure distinguishes "ran and exited non-zero" (present=false,
// err=nil) from "could not even be started" (a genuine I/O failure),
// matching spec.md §4.4's "allowed-failure call distinguishes 'does not
// exist' from 'I/O failure' via exit code only".
func (a *execAdapter) runAllowFailure(args ...string) (out []byte, present bool, err error) {
	cmd := exec.Command(args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if runErr == nil {
		return stdout.Bytes(), true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("%s: %w (stderr: %s)", strings.Join(args, " "), runErr, strings.TrimSpace(stderr.String()))
}

func fileURL(repo, path string, rev int, hasRev, quote bool) string {
	u := "file://" + escapeIf(repo, quote)
	if path != "" {
		u += "/" + escapeIf(path, quote)
	}
	if hasRev {
		u += "@" + strconv.Itoa(rev)
	}
	return u
}

func escapeIf(p string, quote bool) string {
	if !quote {
		return p
	}
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// ListTree lists a subtree via `svnlook tree --full-paths`, grounded on
// original_source/svndumpmultitool/svn_util.py's ExtractNodeKinds.
func (a *execAdapter) ListTree(repo string, rev int, path string) ([]TreeEntry, error) {
	out, err := a.run("svnlook", "tree", "--full-paths", "-r", strconv.Itoa(rev), repo, path)
	if err != nil {
		return nil, err
	}
	var entries []TreeEntry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		kind := dumprecord.KindFile
		trimmed := line
		if strings.HasSuffix(line, "/") {
			kind = dumprecord.KindDir
			trimmed = strings.TrimSuffix(line, "/")
		}
		var rel string
		switch {
		case trimmed == path:
			rel = ""
		case strings.HasPrefix(trimmed, path+"/"):
			rel = trimmed[len(path)+1:]
		default:
			rel = trimmed
		}
		entries = append(entries, TreeEntry{Path: rel, Kind: kind})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile fetches a file's content via `svnlook cat` and computes its
// MD5 locally (svnlook has no checksum-reporting mode).
func (a *execAdapter) ReadFile(repo string, rev int, path string) ([]byte, string, error) {
	out, err := a.run("svnlook", "cat", "-r", strconv.Itoa(rev), repo, path)
	if err != nil {
		return nil, "", err
	}
	sum := md5.Sum(out)
	return out, hex.EncodeToString(sum[:]), nil
}

// ReadProperties fetches a node's properties via `svnlook proplist
// --verbose`, whose output indents property names by two spaces and
// (possibly multi-line) values by four.
func (a *execAdapter) ReadProperties(repo string, rev int, path string) (*dumprecord.Properties, error) {
	out, err := a.run("svnlook", "proplist", "--verbose", "-r", strconv.Itoa(rev), repo, path)
	if err != nil {
		return nil, err
	}
	return parsePropList(out), nil
}

func parsePropList(out []byte) *dumprecord.Properties {
	props := dumprecord.NewProperties()
	var curKey string
	var curVal []string
	flush := func() {
		if curKey != "" {
			props.Set(curKey, strings.Join(curVal, "\n"))
		}
	}
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.HasPrefix(line, "    "):
			curVal = append(curVal, strings.TrimPrefix(line, "    "))
		case strings.HasPrefix(line, "  ") && strings.TrimSpace(line) != "":
			flush()
			curKey = strings.TrimSpace(line)
			curVal = nil
		}
	}
	flush()
	return props
}

// MaterializeSubtree delegates to genericMaterialize.
func (a *execAdapter) MaterializeSubtree(repo string, rev int, srcPath, dstPath string, origin dumprecord.Origin) ([]*dumprecord.Record, error) {
	return genericMaterialize(a, repo, rev, srcPath, dstPath, origin)
}

var contentsOpChars = map[byte]ContentsOp{' ': ContentsNone, 'A': ContentsAdd, 'M': ContentsModify, 'D': ContentsDelete}
var propsOpChars = map[byte]PropsOp{' ': PropsNone, 'M': PropsModify}

// DiffPaths runs `svn diff --summarize` between two (possibly differently
// located, differently revisioned) directories, grounded on
// original_source/svndumpmultitool/svn_util.py's Diff.
func (a *execAdapter) DiffPaths(repo string, oldPath string, oldRev int, newPath string, newRev int) (map[string]DiffEntry, error) {
	oldURL := fileURL(repo, oldPath, oldRev, true, true)
	newURL := fileURL(repo, newPath, newRev, true, true)
	out, err := a.run("svn", "diff", "--summarize", "--old="+oldURL, "--new="+newURL)
	if err != nil {
		return nil, err
	}
	prefix := fileURL(repo, oldPath, 0, false, false) + "/"

	deleted := map[string]DiffEntry{}
	changes := map[string]DiffEntry{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 {
			continue
		}
		contentsOp, ok1 := contentsOpChars[line[0]]
		propsOp, ok2 := propsOpChars[line[1]]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unrecognized svn diff operation in %q", line)
		}
		idx := strings.Index(line, "file://")
		if idx < 0 {
			continue
		}
		raw := line[idx:]
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(unescaped, prefix) {
			continue
		}
		rel := unescaped[len(prefix):]
		entry := DiffEntry{ContentsOp: contentsOp, PropsOp: propsOp}
		if contentsOp == ContentsDelete {
			deleted[rel] = entry
		} else if contentsOp != ContentsNone || propsOp != PropsNone {
			changes[rel] = entry
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Suppress children of deleted directories, merge the rest into changes.
	paths := make([]string, 0, len(deleted))
	for p := range deleted {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if idx := strings.LastIndex(p, "/"); idx >= 0 {
			if _, parentDeleted := deleted[p[:idx]]; parentDeleted {
				continue
			}
		}
		changes[p] = deleted[p]
	}
	return changes, nil
}

// GetExternalsProperty fetches svn:externals via `svnlook propget`, a
// missing property is not an error (spec.md §4.4).
func (a *execAdapter) GetExternalsProperty(repo string, rev int, path string) (string, error) {
	out, present, err := a.runAllowFailure("svnlook", "propget", "-r", strconv.Itoa(rev), repo, "svn:externals", path)
	if err != nil {
		return "", err
	}
	if !present {
		return "", nil
	}
	return string(out), nil
}

// SourceExists reports whether path exists at rev in repo.
func (a *execAdapter) SourceExists(repo string, rev int, path string) (bool, error) {
	_, present, err := a.runAllowFailure("svnlook", "tree", "--full-paths", "-r", strconv.Itoa(rev), repo, path)
	if err != nil {
		return false, err
	}
	return present, nil
}
