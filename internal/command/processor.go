package command

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/talDoFlemis/hokkaido"
)

// NoSuccessor is printed by SUC when no greater key exists.
const NoSuccessor = "INFINITO"

// Tree is the part of the persistent tree the processor drives.
type Tree interface {
	Insert(key, value int) (hokkaido.Version, error)
	QueryAt(v hokkaido.Version) ([]int, error)
	Successor(v hokkaido.Version, key int) (int, bool, error)
	LatestVersion() hokkaido.Version
}

// Summary counts what a run did.
type Summary struct {
	Lines      int // Lines read, blank ones included.
	Statements int // Lines that parsed.
	Errors     int // Malformed lines plus failed statements.
}

// Processor executes command lines against a tree and writes their output.
type Processor struct {
	tree   Tree
	logger hokkaido.Logger
	clamp  bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithClampVersions makes IMP and SUC read the latest version when asked for
// a version that does not exist yet, instead of reporting an error.
func WithClampVersions(clamp bool) Option {
	return func(p *Processor) {
		p.clamp = clamp
	}
}

// WithLogger sets the logger. A nil logger keeps the DiscardLogger.
func WithLogger(l hokkaido.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates a processor over tree.
func NewProcessor(tree Tree, options ...Option) *Processor {
	p := &Processor{
		tree:   tree,
		logger: hokkaido.DiscardLogger{},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Run reads commands from r line by line and writes their output to w.
// Errors of individual lines are written to w as "error: ..." lines and do
// not stop the run; only read and write failures are returned.
func (p *Processor) Run(r io.Reader, w io.Writer) (Summary, error) {
	var sum Summary

	out := bufio.NewWriter(w)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		sum.Lines++
		line := scanner.Text()
		if Blank(line) {
			continue
		}

		stmt, err := ParseLine(line)
		if err != nil {
			sum.Errors++
			p.logger.Warn("skipping unparsable line", "line", sum.Lines, "error", err)
			if _, err := fmt.Fprintf(out, "error: line %d: %v\n", sum.Lines, err); err != nil {
				return sum, err
			}
			continue
		}

		sum.Statements++
		failed, err := p.Execute(stmt, out)
		if err != nil {
			return sum, err
		}
		if failed {
			sum.Errors++
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read commands: %w", err)
	}

	if err := out.Flush(); err != nil {
		return sum, err
	}

	p.logger.Info("commands processed",
		"lines", sum.Lines,
		"statements", sum.Statements,
		"errors", sum.Errors,
		"latest_version", p.tree.LatestVersion())
	return sum, nil
}

// Execute runs one statement. The returned bool reports whether the
// statement failed, in which case an error line was written; the error is
// only set when writing fails.
func (p *Processor) Execute(stmt Statement, w io.Writer) (bool, error) {
	var (
		lines []string
		err   error
	)

	switch stmt.Kind {
	case Insert:
		var v hokkaido.Version
		v, err = p.tree.Insert(stmt.Key, stmt.Key)
		if err == nil {
			p.logger.Debug("inserted", "key", stmt.Key, "version", v)
			return false, nil
		}
		lines = append(lines, stmt.String())
	case Remove:
		lines = append(lines, stmt.String())
		err = fmt.Errorf("%w: deletion is not supported by a partially persistent tree", ErrUnsupported)
	case Print:
		lines = append(lines, stmt.String())
		var keys []int
		keys, err = p.query(stmt.Version)
		if err == nil {
			lines = append(lines, joinKeys(keys))
		}
	case Successor:
		lines = append(lines, stmt.String())
		var line string
		line, err = p.successor(stmt.Key, stmt.Version)
		if err == nil {
			lines = append(lines, line)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrMalformed, stmt.Kind)
	}

	if err != nil {
		p.logger.Warn("statement failed", "statement", stmt.String(), "error", err)
		lines = append(lines, "error: "+err.Error())
	}
	for _, line := range lines {
		if _, werr := io.WriteString(w, line+"\n"); werr != nil {
			return err != nil, werr
		}
	}
	return err != nil, nil
}

func (p *Processor) query(v hokkaido.Version) ([]int, error) {
	return p.tree.QueryAt(p.version(v))
}

func (p *Processor) successor(key int, v hokkaido.Version) (string, error) {
	succ, ok, err := p.tree.Successor(p.version(v), key)
	if err != nil {
		return "", err
	}
	if !ok {
		return NoSuccessor, nil
	}
	return strconv.Itoa(succ), nil
}

// version applies clamping to a requested version.
func (p *Processor) version(v hokkaido.Version) hokkaido.Version {
	if latest := p.tree.LatestVersion(); p.clamp && v > latest {
		p.logger.Debug("clamping version", "requested", v, "latest", latest)
		return latest
	}
	return v
}

func joinKeys(keys []int) string {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(k))
	}
	return b.String()
}
