package server

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/core/errs"
)

const (
	srStateFilename = "sr-state"
	srStateVersion  = 1
	srStateBanner   = "# hsauth shared-random state -- generated file, do not hand-edit"
)

// isoLayout is the ISO-8601 UTC layout used for ValidAfter/ValidUntil.
const isoLayout = "2006-01-02T15:04:05Z"

// PersistedSRV is a shared-rand-{previous,current}-value line's decoded
// value.
type PersistedSRV struct {
	NumReveals uint64
	Value      [32]byte
}

// PersistedState is the full contents of the sr-state file.
type PersistedState struct {
	Version     int
	ValidAfter  time.Time
	ValidUntil  time.Time
	Commits     []*cell.CommitLine // RSA-fpr-only persisted form; Ed25519ID is left empty
	PreviousSRV *PersistedSRV
	CurrentSRV  *PersistedSRV

	// Extra holds unrecognized "key value" lines verbatim, preserved
	// across rewrites so a newer writer's fields survive a round-trip
	// through an older one.
	Extra [][2]string
}

// ParseSRState parses the sr-state file body. It returns a *errs.Error of
// kind Persistence for any structural problem; callers must treat that as
// non-fatal and start over with a fresh state.
func ParseSRState(data []byte) (*PersistedState, error) {
	ps := &PersistedState{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch key {
		case "Version":
			v, err := strconv.Atoi(rest)
			if err != nil {
				return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
			}
			ps.Version = v
		case "ValidAfter":
			ts, err := time.Parse(isoLayout, rest)
			if err != nil {
				return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
			}
			ps.ValidAfter = ts
		case "ValidUntil":
			ts, err := time.Parse(isoLayout, rest)
			if err != nil {
				return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
			}
			ps.ValidUntil = ts
		case "Commit":
			c, err := parsePersistedCommit(rest)
			if err != nil {
				return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
			}
			ps.Commits = append(ps.Commits, c)
		case "SharedRandPreviousValue":
			s, err := cell.ParseSRVLine(rest)
			if err != nil {
				return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
			}
			ps.PreviousSRV = &PersistedSRV{NumReveals: s.NumReveals, Value: s.Value}
		case "SharedRandCurrentValue":
			s, err := cell.ParseSRVLine(rest)
			if err != nil {
				return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
			}
			ps.CurrentSRV = &PersistedSRV{NumReveals: s.NumReveals, Value: s.Value}
		default:
			ps.Extra = append(ps.Extra, [2]string{key, rest})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.Persistence, "ParseSRState", err)
	}

	if err := validateSRState(ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// validateSRState rejects a parsed sr-state file that is stale, from a
// newer format version, or otherwise unfit to resume from.
func validateSRState(ps *PersistedState) error {
	n := time.Now().UTC()
	if ps.Version > srStateVersion {
		return errs.New(errs.Persistence, "validateSRState", "unsupported version")
	}
	if !ps.ValidUntil.IsZero() && ps.ValidUntil.Before(n) {
		return errs.New(errs.Persistence, "validateSRState", "state expired")
	}
	if !ps.ValidAfter.IsZero() && !ps.ValidUntil.IsZero() && !ps.ValidAfter.Before(ps.ValidUntil) {
		return errs.New(errs.Persistence, "validateSRState", "valid_after >= valid_until")
	}
	return nil
}

// parsePersistedCommit parses "<alg> <rsa_fpr> <commit_b64> [<reveal_b64>]"
// (the persisted form omits the Ed25519 identity carried on vote lines; a
// "-" placeholder is substituted so the decoded blobs can be reused
// through cell.ParseCommitLine's token-count-and-decode logic).
func parsePersistedCommit(rest string) (*cell.CommitLine, error) {
	fields := strings.Fields(rest)
	if len(fields) != 3 && len(fields) != 4 {
		return nil, fmt.Errorf("persistence: malformed Commit line")
	}
	voteLineFields := append([]string{fields[0], "-"}, fields[1:]...)
	c, err := cell.ParseCommitLine(strings.Join(voteLineFields, " "))
	if err != nil {
		return nil, err
	}
	c.Ed25519ID = ""
	return c, nil
}

func formatPersistedCommit(c *cell.CommitLine) string {
	if c.HasReveal {
		return fmt.Sprintf("Commit %s %s %s %s", c.Alg, c.RSAFpr, c.CommitB64, c.RevealB64)
	}
	return fmt.Sprintf("Commit %s %s %s", c.Alg, c.RSAFpr, c.CommitB64)
}

// Render serializes ps back into the sr-state file body, banner first,
// recognized keys in a fixed order, then every Extra line verbatim.
func (ps *PersistedState) Render() []byte {
	var b bytes.Buffer
	b.WriteString(srStateBanner)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Version %d\n", ps.Version)
	if !ps.ValidAfter.IsZero() {
		fmt.Fprintf(&b, "ValidAfter %s\n", ps.ValidAfter.UTC().Format(isoLayout))
	}
	if !ps.ValidUntil.IsZero() {
		fmt.Fprintf(&b, "ValidUntil %s\n", ps.ValidUntil.UTC().Format(isoLayout))
	}
	for _, c := range ps.Commits {
		b.WriteString(formatPersistedCommit(c))
		b.WriteByte('\n')
	}
	if ps.PreviousSRV != nil {
		s := &cell.SRVLine{NumReveals: ps.PreviousSRV.NumReveals, Value: ps.PreviousSRV.Value}
		fmt.Fprintf(&b, "SharedRandPreviousValue %s\n", s.String())
	}
	if ps.CurrentSRV != nil {
		s := &cell.SRVLine{NumReveals: ps.CurrentSRV.NumReveals, Value: ps.CurrentSRV.Value}
		fmt.Fprintf(&b, "SharedRandCurrentValue %s\n", s.String())
	}
	for _, kv := range ps.Extra {
		fmt.Fprintf(&b, "%s %s\n", kv[0], kv[1])
	}
	return b.Bytes()
}

// WriteSRState atomically rewrites the sr-state file under dataDir:
// write to a tmp file, fsync, then rename over the target.
func WriteSRState(dataDir string, ps *PersistedState) error {
	target := filepath.Join(dataDir, srStateFilename)
	tmp := target + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return errs.Wrap(errs.Persistence, "WriteSRState", err)
	}
	if _, err := f.Write(ps.Render()); err != nil {
		f.Close()
		return errs.Wrap(errs.Persistence, "WriteSRState", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.Wrap(errs.Persistence, "WriteSRState", err)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.Persistence, "WriteSRState", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return errs.Wrap(errs.Persistence, "WriteSRState", err)
	}
	return nil
}

// LoadSRState reads and parses the sr-state file under dataDir. A missing
// file or any validation failure is reported as a Persistence error; the
// caller's policy is to discard and start fresh, not to treat this as
// fatal.
func LoadSRState(dataDir string) (*PersistedState, error) {
	b, err := os.ReadFile(filepath.Join(dataDir, srStateFilename))
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "LoadSRState", err)
	}
	return ParseSRState(b)
}
