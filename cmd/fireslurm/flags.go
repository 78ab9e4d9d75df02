package main

import (
	"regexp"
	"strconv"
	"strings"
)

// counter is a repeatable boolean flag: every -v adds one.
type counter int

func (c *counter) String() string {
	if c == nil {
		return "0"
	}
	return strconv.Itoa(int(*c))
}

func (c *counter) Set(s string) error {
	switch s {
	case "true":
		*c++
		return nil
	case "false":
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = counter(n)
	return nil
}

func (c *counter) IsBoolFlag() bool { return true }

// listFlag collects comma-separated values over repeated uses. The first
// use replaces the default.
type listFlag struct {
	values []string
	set    bool
}

func newListFlag(defaults []string) *listFlag {
	return &listFlag{values: append([]string(nil), defaults...)}
}

func (l *listFlag) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(l.values, ",")
}

func (l *listFlag) Set(s string) error {
	if !l.set {
		l.values = nil
		l.set = true
	}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			l.values = append(l.values, v)
		}
	}
	return nil
}

var shortVerbose = regexp.MustCompile(`^-v{2,}$`)

// expandVerbose turns "-vv" into "-v -v" so the flag package can count it.
// Words after "--" belong to the simulated command and are left alone.
func expandVerbose(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		if shortVerbose.MatchString(a) {
			for range len(a) - 1 {
				out = append(out, "-v")
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

// joinCommand folds the words after "--" into one shell command. Separate
// words become separate commands.
func joinCommand(words []string) string {
	return strings.Join(words, " ; ")
}
