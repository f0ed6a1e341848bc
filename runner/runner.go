// Package runner builds the command lines of the programs the fleet runs
// inside its containers.
package runner

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"fleet-admin/remote"
)

// ErrInvalidConfig is wrapped by every validation error of this package
var ErrInvalidConfig = errors.New("invalid runner configuration")

// Runner is a program run inside a container
type Runner interface {
	// Name returns the name of the program
	Name() string

	// Validate checks that the command can be built
	Validate() error

	// BuildCommand constructs the shell command line to run in the container
	BuildCommand() string

	// SetExecutablePath overrides the program path
	SetExecutablePath(path string)
}

// commandLine accumulates quoted words of a shell command
type commandLine struct {
	words []string
}

func newCommandLine(program string) *commandLine {
	return &commandLine{words: []string{program}}
}

func (c *commandLine) arg(values ...string) *commandLine {
	for _, v := range values {
		c.words = append(c.words, remote.Quote(v))
	}
	return c
}

func (c *commandLine) flag(name, value string) *commandLine {
	c.words = append(c.words, name, remote.Quote(value))
	return c
}

func (c *commandLine) intFlag(name string, value int64) *commandLine {
	c.words = append(c.words, name, strconv.FormatInt(value, 10))
	return c
}

func (c *commandLine) bare(name string) *commandLine {
	c.words = append(c.words, name)
	return c
}

func (c *commandLine) String() string {
	return strings.Join(c.words, " ")
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// Seconds rounds a run duration up to whole seconds
func Seconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
